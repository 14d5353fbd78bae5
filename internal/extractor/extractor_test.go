package extractor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_ExtractFromFile(t *testing.T) {
	testFile := filepath.Join("testdata", "shapes.hpp")

	ext, err := NewExtractor(EngineNative)
	require.NoError(t, err)

	model, err := ext.ExtractFromFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, testFile, model.Path)

	// Group classes by name for easier lookup
	classesByName := make(map[string]*ClassEntity)
	for _, c := range model.Classes {
		classesByName[c.Name] = c
	}

	t.Run("Overall Count", func(t *testing.T) {
		assert.Len(t, model.Classes, 6, "Color, Drawable, Point, Shape, Polygon, Edge")
		assert.Empty(t, model.Diagnostics)
	})

	t.Run("Namespace", func(t *testing.T) {
		for _, c := range model.Classes {
			assert.Equal(t, []string{"geo"}, c.Namespace, c.Name)
		}
	})

	t.Run("Enum", func(t *testing.T) {
		c, ok := classesByName["Color"]
		require.True(t, ok)
		assert.Equal(t, KindEnum, c.Kind)
		assert.Equal(t, []string{"Red", "Green", "Blue"}, c.Enumerators)
	})

	t.Run("Interface", func(t *testing.T) {
		c, ok := classesByName["Drawable"]
		require.True(t, ok)
		require.Len(t, c.Members, 2)
		assert.True(t, c.Members[0].Destructor)
		assert.Equal(t, "~Drawable", c.Members[0].Name)
		draw := c.Members[1]
		assert.Equal(t, "draw", draw.Name)
		assert.Equal(t, "void", draw.Type)
		assert.True(t, draw.Abstract)
		assert.True(t, draw.Const)
		assert.True(t, c.IsInterface())
	})

	t.Run("Multiple Declarators", func(t *testing.T) {
		c, ok := classesByName["Point"]
		require.True(t, ok)
		assert.Equal(t, KindStruct, c.Kind)
		require.Len(t, c.Fields(), 2)
		assert.Equal(t, "x", c.Fields()[0].Name)
		assert.Equal(t, "y", c.Fields()[1].Name)
		assert.Equal(t, "double", c.Fields()[1].Type)
		assert.Equal(t, AccessPublic, c.Fields()[1].Access)
	})

	t.Run("Shape Members", func(t *testing.T) {
		c, ok := classesByName["Shape"]
		require.True(t, ok)
		assert.Equal(t, []BaseSpec{{Type: "Drawable", Access: AccessPublic}}, c.Bases)

		methods := c.Methods()
		require.Len(t, methods, 3)
		assert.True(t, methods[0].Constructor)
		assert.Equal(t, []string{"const char* name"}, methods[0].Params)
		assert.Equal(t, "draw", methods[1].Name)
		assert.True(t, methods[1].Virtual)
		assert.True(t, methods[2].Static)

		fields := c.Fields()
		require.Len(t, fields, 3)
		assert.Equal(t, Member{Name: "color", Type: "Color", Kind: MemberField, Access: AccessProtected, Line: 30}, fields[0])
		assert.Equal(t, "const char*", fields[1].Type)
		assert.Equal(t, AccessPrivate, fields[2].Access)
	})

	t.Run("Template", func(t *testing.T) {
		c, ok := classesByName["Polygon"]
		require.True(t, ok)
		assert.Equal(t, []string{"T", "N"}, c.TemplateParams)
		fieldTypes := map[string]string{}
		for _, f := range c.Fields() {
			fieldTypes[f.Name] = f.Type
		}
		assert.Equal(t, map[string]string{
			"points":  "std::vector<Point>",
			"payload": "std::unique_ptr<T>",
			"anchor":  "Point*",
			"edge":    "Edge",
		}, fieldTypes)
	})

	t.Run("Nested", func(t *testing.T) {
		c, ok := classesByName["Edge"]
		require.True(t, ok)
		assert.Equal(t, "geo::Polygon", c.Outer)
		assert.Equal(t, "geo::Polygon::Edge", c.QualifiedName())
		assert.Len(t, c.Fields(), 2)
	})

	t.Run("Lines", func(t *testing.T) {
		c := classesByName["Drawable"]
		assert.Equal(t, 14, c.StartLine)
		assert.Equal(t, 18, c.EndLine)
	})
}

func TestExtractor_InputUnavailable(t *testing.T) {
	ext, err := NewExtractor("")
	require.NoError(t, err)

	_, err = ext.ExtractFromFile(filepath.Join(t.TempDir(), "missing.hpp"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputUnavailable))
	assert.Contains(t, err.Error(), "missing.hpp")
}

func TestExtractor_UnsupportedEngine(t *testing.T) {
	_, err := NewExtractor("clang")
	assert.Error(t, err)
}

func TestExtractor_Decoding(t *testing.T) {
	ext, err := NewExtractor(EngineNative)
	require.NoError(t, err)

	t.Run("UTF-8 BOM", func(t *testing.T) {
		model, err := ext.ExtractFromFile(filepath.Join("testdata", "bom.hpp"))
		require.NoError(t, err)
		require.Len(t, model.Classes, 1)
		assert.Equal(t, "Bom", model.Classes[0].Name)
	})

	t.Run("UTF-16 BOM", func(t *testing.T) {
		model, err := ext.ExtractFromFile(filepath.Join("testdata", "utf16.hpp"))
		require.NoError(t, err)
		require.Len(t, model.Classes, 1)
		assert.Equal(t, "Wide", model.Classes[0].Name)
	})

	t.Run("Invalid bytes", func(t *testing.T) {
		model, err := ext.ExtractFromSource("bad.hpp", []byte("struct \xff\xfeOk {};\nstruct Fine {};"))
		require.NoError(t, err)
		require.NotNil(t, model.Find("Fine"))
	})
}

func TestBuildClassID(t *testing.T) {
	a := &ClassEntity{Name: "Foo", Namespace: []string{"ns"}, Kind: KindClass, File: "a.hpp", StartLine: 1}
	b := &ClassEntity{Name: "Foo", Namespace: []string{"ns"}, Kind: KindClass, File: "b.hpp", StartLine: 40}
	c := &ClassEntity{Name: "Foo", Namespace: []string{"other"}, Kind: KindClass}

	assert.Equal(t, BuildClassID(a), BuildClassID(b), "location does not change identity")
	assert.NotEqual(t, BuildClassID(a), BuildClassID(c))
	assert.Regexp(t, `^class/ns:Foo:[0-9a-f]{16}$`, BuildClassID(a))
	assert.Empty(t, BuildClassID(nil))
}
