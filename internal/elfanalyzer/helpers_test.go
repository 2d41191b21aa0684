package elfanalyzer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/isseis/go-manifest-producer/internal/dwarflang"
	"github.com/isseis/go-manifest-producer/internal/elfimage"
	"github.com/isseis/go-manifest-producer/internal/elftest"
)

func newTestImage(t *testing.T, b *elftest.Builder) *elfimage.Image {
	t.Helper()
	if len(b.Languages) == 0 {
		b.Languages = []uint16{elftest.LangC99}
	}
	data := b.Build()
	img, err := elfimage.NewImage(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = img.Close() })
	return img
}

// testEngine wires the pipeline stages for one synthetic image.
type testEngine struct {
	engine   *FlowEngine
	resolver *RegionResolver
	funcs    []Function
	byName   map[string]Function
}

func newTestEngine(t *testing.T, b *elftest.Builder) *testEngine {
	t.Helper()
	img := newTestImage(t, b)

	lang, err := dwarflang.Classify(img.File())
	require.NoError(t, err)

	funcs, err := DiscoverFunctions(img.File(), lang)
	require.NoError(t, err)

	resolver, err := NewRegionResolver(img)
	require.NoError(t, err)

	te := &testEngine{
		engine:   NewFlowEngine(resolver, funcs, FlowConfig{Language: lang}),
		resolver: resolver,
		funcs:    funcs,
		byName:   make(map[string]Function, len(funcs)),
	}
	for _, fn := range funcs {
		te.byName[fn.Name] = fn
	}
	return te
}

func (te *testEngine) analyze(t *testing.T, name string) FunctionAnalysis {
	t.Helper()
	fn, ok := te.byName[name]
	require.True(t, ok, "function %s not discovered", name)
	return te.engine.Analyze(fn)
}

func edgesOfKind(fa FunctionAnalysis, kind ResolutionKind) []CallEdge {
	var out []CallEdge
	for _, e := range fa.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
