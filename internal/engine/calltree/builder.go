package calltree

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calltree/internal/core/errors"
	"calltree/internal/engine/parser"
	"calltree/internal/engine/pymodel"
	"calltree/internal/shared/observability"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stats summarises one Build.
type Stats struct {
	Expanded int
	Edges    int
	Dropped  int
	Excluded int
}

type Options struct {
	// Exclude holds globs over "Class.method"; matching callees are left
	// out of the graph entirely.
	Exclude []string
}

type Builder struct {
	parser  *parser.Parser
	exclude []glob.Glob
}

func NewBuilder(p *parser.Parser, opts Options) (*Builder, error) {
	if p == nil {
		p = parser.NewParser()
	}
	b := &Builder{parser: p}
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid exclude pattern %q", pattern))
		}
		b.exclude = append(b.exclude, g)
	}
	return b, nil
}

type workItem struct {
	node   QualifiedMethod
	owner  *pymodel.Class
	method string
}

// Build discovers every method reachable from start.method through calls on
// self, explicit ancestor calls and super(). Each owning method is expanded
// at most once, so recursive call chains terminate. When the starting method
// cannot be found the returned graph is empty and the error is NOT_FOUND.
func (b *Builder) Build(ctx context.Context, start *pymodel.Class, method string) (*CallGraph, Stats, error) {
	ctx, span := observability.Tracer.Start(ctx, "calltree.Build", trace.WithAttributes(
		attribute.String("class", start.String()),
		attribute.String("method", method),
	))
	defer span.End()

	began := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("calltree").Observe(time.Since(began).Seconds())
	}()

	g := NewCallGraph()
	var stats Stats

	mro, err := start.MRO()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "linearization failed")
		return g, stats, err
	}

	first, owner, ok := FindOwner(mro, method)
	if !ok {
		return g, stats, errors.Newf(errors.CodeNotFound, "can't find function '%s' in class '%s'", method, start.Name).
			WithContext(errors.CtxClass, start.String()).
			WithContext(errors.CtxMethod, method)
	}
	g.AddEdge(Root, first)

	visited := make(map[QualifiedMethod]bool)
	queue := []workItem{{node: first, owner: owner, method: method}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return g, stats, err
		}
		item := queue[0]
		queue = queue[1:]
		if visited[item.node] {
			continue
		}
		visited[item.node] = true

		calls, err := b.expand(item, mro)
		if err != nil {
			slog.Debug("method kept as leaf", "method", item.node.String(), "reason", err)
			continue
		}
		stats.Expanded++
		observability.MethodsExpanded.Inc()

		for _, dropped := range calls.Unresolved {
			stats.Dropped++
			observability.UnresolvedCalls.Inc()
			slog.Debug("unresolved call dropped", "caller", item.node.String(), "call", dropped)
		}
		for _, key := range calls.Starts() {
			order := lookupOrder(mro, key)
			for _, name := range calls.Names(key) {
				callee, calleeOwner, ok := FindOwner(order, name)
				if !ok {
					stats.Dropped++
					observability.UnresolvedCalls.Inc()
					slog.Debug("unresolved call dropped", "caller", item.node.String(), "lookup", key.Name, "call", name)
					continue
				}
				if b.excluded(callee) {
					stats.Excluded++
					continue
				}
				g.AddEdge(item.node, callee)
				if !visited[callee] {
					queue = append(queue, workItem{node: callee, owner: calleeOwner, method: name})
				}
			}
		}
	}

	stats.Edges = g.EdgeCount()
	observability.GraphEdges.Set(float64(stats.Edges))
	span.SetAttributes(
		attribute.Int("expanded", stats.Expanded),
		attribute.Int("edges", stats.Edges),
	)
	return g, stats, nil
}

func (b *Builder) expand(item workItem, mro []*pymodel.Class) (*Calls, error) {
	src, err := item.owner.MethodSource(item.method)
	if err != nil {
		return nil, err
	}
	tree, err := b.parser.Parse(item.node.String(), []byte(src))
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return CollectCalls(tree, mro, item.owner), nil
}

func (b *Builder) excluded(q QualifiedMethod) bool {
	name := q.String()
	for _, g := range b.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}
