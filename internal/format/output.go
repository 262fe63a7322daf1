package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format names an encoding for command results.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
)

// Parse maps a --format value to a Format. Empty selects JSON.
func Parse(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", JSON:
		return JSON, nil
	case JSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s (want json or jsonl)", name)
	}
}

// Write encodes v to w followed by a newline. JSONL output is always compact, one value
// per line, so --pretty only affects JSON.
func Write(w io.Writer, v any, name string, pretty bool) error {
	f, err := Parse(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if f == JSON && pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
