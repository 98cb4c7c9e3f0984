package history

import (
	"time"

	"calltree/internal/engine/attrs"
)

const SchemaVersion = 2

// Snapshot is one stored attribute table.
type Snapshot struct {
	ID             string       `json:"id"`
	ProjectKey     string       `json:"project_key"`
	SchemaVersion  int          `json:"schema_version"`
	Timestamp      time.Time    `json:"timestamp"`
	Sources        []string     `json:"sources,omitempty"`
	ClassCount     int          `json:"class_count"`
	AttributeCount int          `json:"attribute_count"`
	Table          *attrs.Table `json:"attributes"`
}
