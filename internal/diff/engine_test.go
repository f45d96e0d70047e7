package diff

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

func parsed(t *testing.T, name string, data []byte, side domain.Side) domain.Font {
	t.Helper()
	f, err := fontset.ParseFont(domain.RawFile{Name: name, Data: data}, side)
	require.NoError(t, err)
	return f
}

func decode(t *testing.T, raw json.RawMessage) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestSFNTEngine_IdenticalFontsHaveNoDifferences(t *testing.T) {
	e := NewSFNTEngine()
	before := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)
	after := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideAfter)

	for _, view := range e.Views() {
		t.Run(view, func(t *testing.T) {
			raw, err := e.ComputeDiff(context.Background(), before, after, view)
			require.NoError(t, err)

			p := decode(t, raw)
			assert.Equal(t, view, p.View)
			assert.Zero(t, p.Count)
			assert.Empty(t, p.Items)
		})
	}
}

func TestSFNTEngine_MetricsDifferBetweenWeights(t *testing.T) {
	e := NewSFNTEngine()
	before := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)
	after := parsed(t, "Go-Bold.ttf", gobold.TTF, domain.SideAfter)

	raw, err := e.ComputeDiff(context.Background(), before, after, ViewMetrics)
	require.NoError(t, err)

	p := decode(t, raw)
	require.NotZero(t, p.Count)
	assert.Len(t, p.Items, p.Count)
	for _, item := range p.Items {
		assert.NotEqual(t, item.Before, item.After)
		assert.Equal(t, item.After-item.Before, item.Delta)
		assert.Regexp(t, `^U\+[0-9A-F]{4}$`, item.Codepoint)
	}
}

func TestSFNTEngine_OutlinesDifferBetweenWeights(t *testing.T) {
	e := NewSFNTEngine()
	before := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)
	after := parsed(t, "Go-Bold.ttf", gobold.TTF, domain.SideAfter)

	raw, err := e.ComputeDiff(context.Background(), before, after, ViewGlyphsModified)
	require.NoError(t, err)

	assert.NotZero(t, decode(t, raw).Count)
}

func TestSFNTEngine_UnsupportedView(t *testing.T) {
	e := NewSFNTEngine()
	f := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)

	_, err := e.ComputeDiff(context.Background(), f, f, "colr")
	assert.ErrorIs(t, err, domain.ErrUnsupportedView)
}

func TestSFNTEngine_MissingContent(t *testing.T) {
	e := NewSFNTEngine()
	f := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)
	stripped := f
	stripped.Content = nil

	_, err := e.ComputeDiff(context.Background(), f, stripped, ViewMetrics)
	assert.Error(t, err)
}

func TestSFNTEngine_CancelledDuringScan(t *testing.T) {
	e := NewSFNTEngine()
	f := parsed(t, "Go-Regular.ttf", goregular.TTF, domain.SideBefore)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ComputeDiff(ctx, f, f, ViewGlyphsNew)
	assert.ErrorIs(t, err, context.Canceled)
}
