package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// PoolStats reports parser usage for a ParserPool.
type PoolStats struct {
	Active  int64 // leased and not yet returned
	Peak    int64 // highest Active seen
	Created int64 // parsers allocated by the pool
}

// ParserPool hands out tree-sitter parsers bound to one grammar. A leased
// parser must go back through Put and must not be used afterwards.
type ParserPool struct {
	lang *sitter.Language
	free sync.Pool

	active  atomic.Int64
	peak    atomic.Int64
	created atomic.Int64
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.free.New = func() any {
		p.created.Add(1)
		sp := sitter.NewParser()
		_ = sp.SetLanguage(lang)
		return sp
	}
	return p
}

func (p *ParserPool) Get() *sitter.Parser {
	sp := p.free.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)

	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return sp
}

// Put resets sp and makes it available again. Put(nil) is a no-op.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.active.Add(-1)
	sp.Reset()
	p.free.Put(sp)
}

func (p *ParserPool) Stats() PoolStats {
	return PoolStats{
		Active:  p.active.Load(),
		Peak:    p.peak.Load(),
		Created: p.created.Load(),
	}
}
