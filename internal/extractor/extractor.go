package extractor

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInputUnavailable is returned when a source file cannot be read.
var ErrInputUnavailable = errors.New("input unavailable")

const (
	EngineNative     = "native"
	EngineTreeSitter = "treesitter"
)

// Engine turns decoded C++ source into a FileModel.
type Engine interface {
	Name() string
	Extract(path string, src []byte) (*FileModel, error)
}

// NativeEngine runs the built-in Scanner and Parser.
type NativeEngine struct{}

func (NativeEngine) Name() string { return EngineNative }

func (NativeEngine) Extract(path string, src []byte) (*FileModel, error) {
	return Parse(path, string(src)), nil
}

// Extractor reads source files and hands them to an engine.
type Extractor struct {
	engine Engine
}

// NewExtractor creates an extractor for the named engine. An empty name
// selects the native engine.
func NewExtractor(engine string) (*Extractor, error) {
	switch engine {
	case "", EngineNative:
		return &Extractor{engine: NativeEngine{}}, nil
	case EngineTreeSitter:
		return &Extractor{engine: &CppTreeSitterEngine{}}, nil
	default:
		return nil, fmt.Errorf("unsupported engine: %s", engine)
	}
}

// Engine returns the engine in use.
func (e *Extractor) Engine() Engine {
	return e.engine
}

// ExtractFromFile reads and parses a single source file.
func (e *Extractor) ExtractFromFile(path string) (*FileModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInputUnavailable, path, err)
	}
	return e.ExtractFromSource(path, raw)
}

// ExtractFromSource parses raw file contents attributed to path.
func (e *Extractor) ExtractFromSource(path string, raw []byte) (*FileModel, error) {
	model, err := e.engine.Extract(path, Decode(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	return model, nil
}

// Decode converts file bytes to UTF-8. A UTF-8 or UTF-16 byte order mark
// selects the encoding and is removed; invalid sequences become U+FFFD.
func Decode(raw []byte) []byte {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return raw
	}
	return out
}
