package facts

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxDocumentSize bounds the size of a decoded case document.
const MaxDocumentSize = 1 << 20

// Decode reads a single case document in YAML or JSON form.
func Decode(r io.Reader) (*Fact, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read fact document: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("fact document exceeds %d bytes", MaxDocumentSize)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fact document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("fact document is empty")
	}

	id, err := takeID(raw)
	if err != nil {
		return nil, err
	}

	if v, nested := raw["attributes"]; nested {
		attrs, ok := v.(map[string]any)
		if !ok && v != nil {
			return nil, fmt.Errorf("fact attributes must be a mapping, got %T", v)
		}
		return New(id, attrs)
	}

	// Flat form: every key except id is an attribute.
	return New(id, raw)
}

// takeID removes and returns the document's id, which must be a string in
// either form.
func takeID(raw map[string]any) (string, error) {
	v, ok := raw["id"]
	if !ok {
		return "", nil
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("fact id must be a string, got %T", v)
	}
	delete(raw, "id")
	return s, nil
}

// DecodeFile reads a case document from disk.
func DecodeFile(path string) (*Fact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fact, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fact, nil
}
