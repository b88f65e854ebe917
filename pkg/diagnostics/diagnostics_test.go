package diagnostics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := UnreachableBlock
			if i%2 == 1 {
				kind = DeadHandler
			}
			c.Report(Diagnostic{Kind: kind, Block: i})
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.Diagnostics(), 8)
	assert.Equal(t, 4, c.Count(UnreachableBlock))
	assert.Equal(t, 4, c.Count(DeadHandler))
	assert.Equal(t, 0, c.Count(InvalidMethodBody))
}

func TestFilter(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Main.as")
	assert.NoError(t, os.WriteFile(src, []byte("package {}"), 0o644))

	c := NewCollector()
	sink := Filter(c, OfKind(UnreachableBlock), SourceExists())

	sink.Report(Diagnostic{Kind: UnreachableBlock, SourcePath: src})
	sink.Report(Diagnostic{Kind: UnreachableBlock, SourcePath: filepath.Join(dir, "Missing.as")})
	sink.Report(Diagnostic{Kind: UnreachableBlock})
	sink.Report(Diagnostic{Kind: DeadHandler, SourcePath: src})

	got := c.Diagnostics()
	if assert.Len(t, got, 1) {
		assert.Equal(t, src, got[0].SourcePath)
	}
}

func TestTeeAndHasSource(t *testing.T) {
	all, withSource := NewCollector(), NewCollector()
	sink := Tee(all, Filter(withSource, HasSource()), Discard)

	sink.Report(Diagnostic{Kind: UnreachableBlock, SourcePath: "a.as"})
	sink.Report(Diagnostic{Kind: UnreachableBlock})

	assert.Len(t, all.Diagnostics(), 2)
	assert.Len(t, withSource.Diagnostics(), 1)
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Kind: UnreachableBlock, Method: "run", Block: 3, SourcePath: "Main.as", Line: 12}
	assert.Equal(t, "Main.as:12: unreachable-block in run (block 3)", d.String())

	d = Diagnostic{Kind: DeadHandler, Method: "run", Block: 1, Line: -1, Message: "handler never entered"}
	assert.Equal(t, "<unknown>: handler never entered in run (block 1)", d.String())
}
