package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"calltree/internal/engine/attrs"

	"github.com/google/uuid"
)

func sampleTable() *attrs.Table {
	t := attrs.NewTable()
	t.Set("Solver", "tol", "maxiter")
	t.Set("Empty")
	t.Set("Solver.Options", "debug")
	return t
}

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	saved, err := store.SaveSnapshot("project-a", sampleTable(), []string{"solver.py"})
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if _, err := uuid.Parse(saved.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", saved.ID)
	}
	if saved.ClassCount != 3 || saved.AttributeCount != 3 {
		t.Fatalf("unexpected counts: classes=%d attributes=%d", saved.ClassCount, saved.AttributeCount)
	}

	got, err := store.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}
	snap := got[0]
	if snap.ID != saved.ID || snap.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	if len(snap.Sources) != 1 || snap.Sources[0] != "solver.py" {
		t.Fatalf("expected sources to roundtrip, got %v", snap.Sources)
	}

	classes := strings.Join(snap.Table.Classes(), ",")
	if classes != "Solver,Empty,Solver.Options" {
		t.Fatalf("expected class order to roundtrip, got %s", classes)
	}
	if attrsOf := strings.Join(snap.Table.Attributes("Solver"), ","); attrsOf != "maxiter,tol" {
		t.Fatalf("unexpected Solver attributes: %s", attrsOf)
	}
	if !snap.Table.Has("Empty") || len(snap.Table.Attributes("Empty")) != 0 {
		t.Fatal("expected class without attributes to survive")
	}
}

func TestStore_LatestAndDiff(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	latest, err := store.Latest("project-a")
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Fatalf("expected no snapshot yet, got %+v", latest)
	}

	if _, err := store.SaveSnapshot("project-a", sampleTable(), nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	next := sampleTable()
	next.Set("Solver", "tol", "atol")
	second, err := store.SaveSnapshot("project-a", next, nil)
	if err != nil {
		t.Fatal(err)
	}

	latest, err = store.Latest("project-a")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected latest to be the second snapshot, got %+v", latest)
	}

	all, err := store.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(all))
	}

	diff := all[1].Table.Diff(all[0].Table)
	if len(diff) != 1 || diff[0].Class != "Solver" {
		t.Fatalf("unexpected diff: %+v", diff)
	}
	if strings.Join(diff[0].Added, ",") != "atol" || strings.Join(diff[0].Removed, ",") != "maxiter" {
		t.Fatalf("unexpected Solver diff: %+v", diff[0])
	}

	since, err := store.LoadSnapshots("project-a", second.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 1 || since[0].ID != second.ID {
		t.Fatalf("expected since filter to keep only the second snapshot, got %d", len(since))
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EnsureSchema(store.db); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	var version int
	if err := store.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected version %d, got %d", SchemaVersion, version)
	}
	_ = store.Close()
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) {
		t.Fatal("nil is not corrupt")
	}
}

func TestStore_ProjectIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	a := attrs.NewTable()
	a.Set("A", "x")
	b := attrs.NewTable()
	b.Set("B", "y")
	if _, err := store.SaveSnapshot("project-a", a, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveSnapshot("", b, nil); err != nil {
		t.Fatal(err)
	}

	aRows, err := store.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aRows) != 1 || !aRows[0].Table.Has("A") {
		t.Fatalf("unexpected project-a rows: %+v", aRows)
	}

	defRows, err := store.LoadSnapshots("default", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(defRows) != 1 || !defRows[0].Table.Has("B") {
		t.Fatalf("unexpected default rows: %+v", defRows)
	}
}
