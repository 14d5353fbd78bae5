package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cpp2puml/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestCrawler(t *testing.T, opts Options) *Crawler {
	t.Helper()
	ext, err := extractor.NewExtractor(extractor.EngineNative)
	require.NoError(t, err)
	return NewCrawler(ext, opts, nil)
}

func sampleTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.hpp"), "class B {};")
	writeFile(t, filepath.Join(root, "a.cpp"), "class A { B* b; };")
	writeFile(t, filepath.Join(root, "sub", "c.hh"), "struct C {};")
	writeFile(t, filepath.Join(root, "sub", "notes.txt"), "class NotCpp {};")
	writeFile(t, filepath.Join(root, "third_party", "d.h"), "struct D {};")
	writeFile(t, filepath.Join(root, ".git", "e.h"), "struct E {};")
	return root
}

func TestCrawler_Discover(t *testing.T) {
	root := sampleTree(t)

	t.Run("Walks source extensions", func(t *testing.T) {
		files, err := newTestCrawler(t, Options{}).Discover([]string{root})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.cpp"),
			filepath.Join(root, "b.hpp"),
			filepath.Join(root, "sub", "c.hh"),
			filepath.Join(root, "third_party", "d.h"),
		}, files)
	})

	t.Run("Excludes", func(t *testing.T) {
		files, err := newTestCrawler(t, Options{Excludes: []string{"third_party", "*.cpp"}}).Discover([]string{root})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "b.hpp"),
			filepath.Join(root, "sub", "c.hh"),
		}, files)
	})

	t.Run("Explicit files and duplicates", func(t *testing.T) {
		notes := filepath.Join(root, "sub", "notes.txt")
		files, err := newTestCrawler(t, Options{}).Discover([]string{notes, filepath.Join(root, "sub"), notes})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "sub", "c.hh"),
			notes,
		}, files)
	})

	t.Run("Missing input", func(t *testing.T) {
		_, err := newTestCrawler(t, Options{}).Discover([]string{filepath.Join(root, "nope.hpp")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, extractor.ErrInputUnavailable))
	})
}

func TestCrawler_ScanProject(t *testing.T) {
	root := sampleTree(t)
	c := newTestCrawler(t, Options{Workers: 2})

	var classes []string
	err := c.ScanProject(context.Background(), []string{root}, func(m *extractor.FileModel) {
		for _, cls := range m.Classes {
			classes = append(classes, cls.Name)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, classes, "sorted path order regardless of worker scheduling")
}

func TestCrawler_ScanFilesCanceled(t *testing.T) {
	root := sampleTree(t)
	c := newTestCrawler(t, Options{Workers: 1})
	files, err := c.Discover([]string{root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ScanFiles(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawler_ScanFilesReusesUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.hpp")
	writeFile(t, path, "class A {};")
	c := newTestCrawler(t, Options{})

	first, err := c.ScanFiles(context.Background(), []string{path})
	require.NoError(t, err)
	again, err := c.ScanFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Same(t, first[0], again[0])

	writeFile(t, path, "class A {}; class B {};")
	changed, err := c.ScanFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.NotSame(t, first[0], changed[0])
	assert.Len(t, changed[0].Classes, 2)

	_, err = c.ScanFiles(context.Background(), []string{filepath.Join(dir, "gone.hpp")})
	assert.ErrorIs(t, err, extractor.ErrInputUnavailable)
}

func TestIsSource(t *testing.T) {
	for _, name := range []string{"a.h", "a.HPP", "a.cc", "a.cxx", "a.inl", "a.ipp"} {
		assert.True(t, IsSource(name), name)
	}
	for _, name := range []string{"a.c", "a.go", "Makefile", "a.hpp.bak"} {
		assert.False(t, IsSource(name), name)
	}
}
