package kit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLiteral(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "page.kit", "")

	c := &Compiler{}
	got, err := c.resolve(dir, "page.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveAddsUnderscore(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "_footer.kit", "")

	c := &Compiler{}
	got, err := c.resolve(dir, "footer.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveStripsUnderscore(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "footer.kit", "")

	c := &Compiler{}
	got, err := c.resolve(dir, "_footer.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolvePrefersLiteral(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "footer.kit", "plain")
	writeFile(t, dir, "_footer.kit", "partial")

	c := &Compiler{}
	got, err := c.resolve(dir, "footer.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveTogglesInsideSubdir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "partials"), 0755))
	want := writeFile(t, filepath.Join(dir, "partials"), "_footer.kit", "")

	c := &Compiler{}
	got, err := c.resolve(dir, filepath.Join("partials", "footer.kit"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveSearchFolders(t *testing.T) {
	base := t.TempDir()
	first := t.TempDir()
	second := t.TempDir()
	want := writeFile(t, second, "_nav.kit", "")

	c := &Compiler{Folders: []string{first, second}}
	got, err := c.resolve(base, "nav.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveSearchFolderOrder(t *testing.T) {
	base := t.TempDir()
	first := t.TempDir()
	second := t.TempDir()
	want := writeFile(t, first, "nav.kit", "1")
	writeFile(t, second, "nav.kit", "2")

	c := &Compiler{Folders: []string{first, second}}
	got, err := c.resolve(base, "nav.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveBaseBeatsSearchFolders(t *testing.T) {
	base := t.TempDir()
	folder := t.TempDir()
	want := writeFile(t, base, "nav.kit", "near")
	writeFile(t, folder, "nav.kit", "far")

	c := &Compiler{Folders: []string{folder}}
	got, err := c.resolve(base, "nav.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveAbsoluteSpec(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "page.kit", "")

	c := &Compiler{}
	got, err := c.resolve(t.TempDir(), want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "footer.kit"), 0755))
	want := writeFile(t, dir, "_footer.kit", "")

	c := &Compiler{}
	got, err := c.resolve(dir, "footer.kit")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveMissing(t *testing.T) {
	c := &Compiler{Folders: []string{t.TempDir()}}
	_, err := c.resolve(t.TempDir(), "missing.kit")
	require.ErrorIs(t, err, ErrMissingFile)
	assert.Contains(t, err.Error(), "missing.kit")
}

func TestToggleUnderscore(t *testing.T) {
	assert.Equal(t, "_footer.kit", toggleUnderscore("footer.kit"))
	assert.Equal(t, "footer.kit", toggleUnderscore("_footer.kit"))
	assert.Equal(t, filepath.Join("a", "b", "_c.kit"), toggleUnderscore(filepath.Join("a", "b", "c.kit")))
}
