package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"
)

// DecodeJSON parses a JSON dependency document. The decoder walks the token
// stream so that key order survives and the first violation can be reported
// with the job and entry it occurred in.
func DecodeJSON(data []byte) (*Document, error) {
	// encoding/json would silently turn bad bytes into U+FFFD
	if offset := invalidUTF8(data); offset >= 0 {
		return nil, malformed("invalid UTF-8 at byte %d", offset)
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, malformed("document is empty")
	}
	if err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, malformed("top level must be an object mapping job names to lists of job names, got %s", describeToken(tok))
	}

	doc := &Document{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("invalid JSON: %v", err)
		}
		// Object keys are always strings in well-formed JSON
		key, _ := tok.(string)
		if key == "" {
			return nil, malformed("job names must be non-empty strings")
		}

		downstream, err := decodeJobList(dec, key)
		if err != nil {
			return nil, err
		}
		doc.Set(key, downstream)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("unexpected data after the top-level object")
	}

	return doc, nil
}

// decodeJobList reads the value of key, which must be a list of strings
func decodeJobList(dec *json.Decoder, key string) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, malformedKey(key, "invalid JSON: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, malformedKey(key, "value must be a list of job names, got %s", describeToken(tok))
	}

	downstream := []string{}
	for i := 0; dec.More(); i++ {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformedEntry(key, i, "invalid JSON: %v", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, malformedEntry(key, i, "must be a job name string, got %s", describeToken(tok))
		}
		if name == "" {
			return nil, malformedEntry(key, i, "job name must be non-empty")
		}
		downstream = append(downstream, name)
	}

	// closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, malformedKey(key, "invalid JSON: %v", err)
	}
	return downstream, nil
}

// invalidUTF8 returns the offset of the first invalid UTF-8 sequence in
// data, or -1
func invalidUTF8(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for offset := 0; offset < len(data); {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			return offset
		}
		offset += size
	}
	return -1
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{', '}':
			return "object"
		default:
			return "list"
		}
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unexpected value"
	}
}
