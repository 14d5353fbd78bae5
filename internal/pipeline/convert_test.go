package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cpp2puml/internal/crawler"
	"cpp2puml/internal/extractor"
	"cpp2puml/internal/generator"
	"cpp2puml/internal/index"
	"cpp2puml/internal/retrieval"
	"cpp2puml/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, store storage.CatalogStore) (*Converter, *crawler.Crawler, *bytes.Buffer) {
	t.Helper()
	ext, err := extractor.NewExtractor(extractor.EngineNative)
	require.NoError(t, err)
	cr := crawler.NewCrawler(ext, crawler.Options{Workers: 2}, nil)
	var stdout bytes.Buffer
	return NewConverter(index.NewIndexer(cr, nil), store, &stdout, nil), cr, &stdout
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shapes.hpp")
	writeSource(t, src, "class A {}; class B : public A { A* peer; };")
	out := filepath.Join(dir, "out.puml")

	conv, _, _ := setup(t, nil)
	res, err := conv.Convert(context.Background(), Options{Inputs: []string{src}, Output: out})
	require.NoError(t, err)
	assert.Equal(t, &Result{Files: 1, Classes: 2, Edges: 2, Output: out}, res)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "B --|> A\n")
	assert.Contains(t, string(data), "B --> A\n")

	t.Run("Existing output needs force", func(t *testing.T) {
		_, err := conv.Convert(context.Background(), Options{Inputs: []string{src}, Output: out})
		assert.ErrorIs(t, err, ErrOutputExists)

		_, err = conv.Convert(context.Background(), Options{Inputs: []string{src}, Output: out, Force: true})
		assert.NoError(t, err)
	})

	t.Run("Directory output", func(t *testing.T) {
		_, err := conv.Convert(context.Background(), Options{Inputs: []string{src}, Output: dir, Force: true})
		assert.ErrorIs(t, err, ErrOutputIsDir)
	})

	t.Run("Output checked before input", func(t *testing.T) {
		_, err := conv.Convert(context.Background(), Options{Inputs: []string{filepath.Join(dir, "missing.hpp")}, Output: out})
		assert.ErrorIs(t, err, ErrOutputExists)
	})

	t.Run("Missing input", func(t *testing.T) {
		_, err := conv.Convert(context.Background(), Options{Inputs: []string{filepath.Join(dir, "missing.hpp")}, Output: filepath.Join(dir, "new.puml")})
		assert.ErrorIs(t, err, extractor.ErrInputUnavailable)
		assert.NoFileExists(t, filepath.Join(dir, "new.puml"))
	})
}

func TestConverter_Stdout(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.hpp")
	writeSource(t, src, "struct A { int x; };")

	conv, _, stdout := setup(t, nil)
	_, err := conv.Convert(context.Background(), Options{
		Inputs: []string{src},
		Output: Stdout,
		Render: generator.Options{Title: "T", CStyle: true},
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "title T\n")
	assert.Contains(t, stdout.String(), "\t+ int x\n")
}

func TestConverter_Focus(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.hpp")
	writeSource(t, src, "class A {}; class B : public A {}; class C { B b; }; class Lone {};")

	conv, _, stdout := setup(t, nil)
	res, err := conv.Convert(context.Background(), Options{
		Inputs:     []string{src},
		Output:     Stdout,
		Focus:      []string{"A", "Missing"},
		FocusDepth: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Classes)

	text := stdout.String()
	assert.Contains(t, text, "class A {")
	assert.Contains(t, text, "class B {")
	assert.Contains(t, text, "B --|> A\n")
	assert.NotContains(t, text, "class C {")
	assert.NotContains(t, text, "class Lone")
}

func TestConverter_FocusKinds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.hpp")
	writeSource(t, src, "class A {}; class B : public A {}; class C { B b; };")

	t.Run("Composition only", func(t *testing.T) {
		conv, _, stdout := setup(t, nil)
		_, err := conv.Convert(context.Background(), Options{
			Inputs:     []string{src},
			Output:     Stdout,
			Focus:      []string{"B"},
			FocusDepth: 1,
			FocusKinds: []string{"Composition"},
		})
		require.NoError(t, err)

		text := stdout.String()
		assert.Contains(t, text, "class C {")
		assert.Contains(t, text, "C *-- B\n")
		assert.NotContains(t, text, "class A {")
		assert.NotContains(t, text, "--|>")
	})

	t.Run("Unknown kind", func(t *testing.T) {
		conv, _, stdout := setup(t, nil)
		_, err := conv.Convert(context.Background(), Options{
			Inputs:     []string{src},
			Output:     Stdout,
			Focus:      []string{"B"},
			FocusKinds: []string{"friendship"},
		})
		assert.ErrorIs(t, err, retrieval.ErrUnknownKind)
		assert.Empty(t, stdout.String())
	})
}

func TestConverter_DumpModelAndStore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.hpp")
	writeSource(t, src, "namespace n { struct A {}; struct B { A a; }; }")

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	conv, _, stdout := setup(t, store)
	dump := filepath.Join(dir, "model.json")
	_, err = conv.Convert(context.Background(), Options{Inputs: []string{src}, Output: Stdout, DumpModel: dump})
	require.NoError(t, err)
	assert.FileExists(t, dump)

	t.Run("Render from catalog", func(t *testing.T) {
		g, err := store.LoadGraph(context.Background())
		require.NoError(t, err)

		var fromStore bytes.Buffer
		conv.stdout = &fromStore
		res, err := conv.RenderGraph(context.Background(), g, Options{Output: Stdout})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Classes)
		assert.Equal(t, stdout.String(), fromStore.String())
	})

	t.Run("Render from snapshot", func(t *testing.T) {
		g, _, err := conv.indexer.LoadSnapshot(dump)
		require.NoError(t, err)

		var fromDump bytes.Buffer
		conv.stdout = &fromDump
		_, err = conv.RenderGraph(context.Background(), g, Options{Output: Stdout})
		require.NoError(t, err)
		assert.Equal(t, stdout.String(), fromDump.String())
	})
}

func TestIncrementalSync(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.hpp")
	b := filepath.Join(dir, "b.hpp")
	writeSource(t, a, "class A { B* b; };")
	writeSource(t, b, "class B {};")
	out := filepath.Join(t.TempDir(), "out.puml")

	conv, cr, _ := setup(t, nil)
	sync := NewIncrementalSync(conv, cr, Options{Inputs: []string{dir}, Output: out})

	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Classes)
	assert.Equal(t, 2, sync.Cached())

	read := func() string {
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return string(data)
	}
	assert.Contains(t, read(), "A --> B\n")

	t.Run("Changed file", func(t *testing.T) {
		writeSource(t, b, "class B {}; class C : public B {};")
		res, err := sync.Refresh(context.Background(), []string{b})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Classes)
		assert.Contains(t, read(), "C --|> B\n")
	})

	t.Run("Unchanged files come from the cache", func(t *testing.T) {
		// a.hpp is rewritten but not reported as changed.
		writeSource(t, a, "class A {};")
		_, err := sync.Refresh(context.Background(), nil)
		require.NoError(t, err)
		assert.Contains(t, read(), "A --> B\n")
	})

	t.Run("New and deleted files", func(t *testing.T) {
		require.NoError(t, os.Remove(b))
		writeSource(t, filepath.Join(dir, "d.hpp"), "class D {};")
		res, err := sync.Refresh(context.Background(), []string{b})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Classes)
		assert.Equal(t, 2, sync.Cached())
		assert.NotContains(t, read(), "class B")
		assert.Contains(t, read(), "class D")
	})

	t.Run("First run honors output policy", func(t *testing.T) {
		again := NewIncrementalSync(conv, cr, Options{Inputs: []string{dir}, Output: out})
		_, err := again.Run(context.Background())
		assert.ErrorIs(t, err, ErrOutputExists)
	})
}
