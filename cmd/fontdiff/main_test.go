package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestLoadDir_KeepsFontFilesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Go-Regular.ttf", goregular.TTF)
	writeFile(t, dir, "Go-Bold.TTF", gobold.TTF)
	writeFile(t, dir, "README.md", []byte("notes"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.ttf"), 0o700))

	files, err := loadDir(dir)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "Go-Bold.TTF", files[0].Name)
	assert.Equal(t, "Go-Regular.ttf", files[1].Name)
	assert.Equal(t, goregular.TTF, files[1].Data)
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, err := loadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestSplitViews(t *testing.T) {
	assert.Equal(t, []string{"glyphs_new", "metrics"}, splitViews(" glyphs_new, ,metrics,glyphs_new "))
	assert.Empty(t, splitViews(""))
}

func TestNewLocalService_RejectsUnknownView(t *testing.T) {
	_, err := newLocalService([]string{"glyphs_new", "bogus"}, 10, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bogus"`)

	_, err = newLocalService(nil, 10, 1)
	assert.Error(t, err)
}

func TestNewLocalService_AllowsReservedViews(t *testing.T) {
	svc, err := newLocalService([]string{"metrics", "editor"}, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics", "editor"}, svc.Views())
}

func TestCompare_EndToEnd(t *testing.T) {
	before := domain.RawCollection{
		{Name: "Go-Regular.ttf", Data: goregular.TTF},
		{Name: "Go-Bold.ttf", Data: gobold.TTF},
	}
	after := domain.RawCollection{{Name: "Go-Regular.ttf", Data: goregular.TTF}}

	views := []string{"glyphs_new", "metrics", "waterfall"}
	svc, err := newLocalService(views, 10, 2)
	require.NoError(t, err)

	res, err := svc.Submit(context.Background(), domain.DirectCompare{Before: before, After: after})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 2)

	pairs := pairRows(res.Pairs)
	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"#", "before", "after"}, pairs[0])
	for i, p := range res.Pairs {
		assert.Equal(t, p.Before.FullName, pairs[i+1][1])
	}
	assert.Contains(t, []string{pairs[1][2], pairs[2][2]}, "-")

	rows := viewRows(res.Batch, views)
	require.Len(t, rows, 3, "reserved views have no row")
	assert.Equal(t, []string{"view", "computed", "missing_before", "missing_after", "failed"}, rows[0])
	for _, row := range rows[1:] {
		assert.Equal(t, []string{"1", "0", "1", "0"}, row[1:], "view %s", row[0])
	}
}

func TestViewRows_EmptyBatch(t *testing.T) {
	rows := viewRows(domain.DiffBatch{}, []string{"kerns"})
	assert.Equal(t, [][]string{
		{"view", "computed", "missing_before", "missing_after", "failed"},
		{"kerns", "0", "0", "0", "0"},
	}, rows)
}

func TestInspectRows(t *testing.T) {
	rows, err := inspectRows(domain.RawFile{Name: "Go-Bold.ttf", Data: gobold.TTF})
	require.NoError(t, err)

	got := make(map[string]string, len(rows))
	for _, r := range rows {
		got[r[0]] = r[1]
	}
	assert.Equal(t, "Go", got["family"])
	assert.Equal(t, "Bold", got["style"])
	assert.Contains(t, got["full name"], "Go")
	assert.Len(t, got["content ref"], 64)
	assert.NotEqual(t, "0", got["glyphs"])
}

func TestInspectRows_RejectsGarbage(t *testing.T) {
	_, err := inspectRows(domain.RawFile{Name: "broken.ttf", Data: []byte("not a font")})
	assert.Error(t, err)
}
