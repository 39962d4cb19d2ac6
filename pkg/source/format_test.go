package source

import (
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/lineage/pkg/graph"
)

func TestDecode(t *testing.T) {
	want := []graph.Entry{
		{Name: "extract", Downstream: []string{"transform", "transform"}},
		{Name: "transform", Downstream: []string{"load"}},
		{Name: "load", Downstream: []string{}},
	}

	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{
			name:    "json",
			format:  FormatJSON,
			content: `{"extract": ["transform", "transform"], "transform": ["load"], "load": []}`,
		},
		{
			name:   "jsonc with comments and trailing commas",
			format: FormatJSONC,
			content: `{
				// nightly extract
				"extract": ["transform", "transform",],
				/* hourly */
				"transform": ["load"],
				"load": [],
			}`,
		},
		{
			name:   "yaml",
			format: FormatYAML,
			content: `
extract: [transform, transform]
transform:
  - load
load: []
`,
		},
		{
			name:   "yaml with anchors",
			format: FormatYAML,
			content: `
extract: [&t transform, *t]
transform: [load]
load: []
`,
		},
		{
			name:   "cue",
			format: FormatCUE,
			content: `
let t = "transform"
extract: [t, t]
transform: ["load"]
load: []
`,
		},
		{
			name:    "sniffed json",
			format:  "",
			content: `{"extract": ["transform", "transform"], "transform": ["load"], "load": []}`,
		},
		{
			name:    "sniffed yaml",
			format:  "",
			content: "extract: [transform, transform]\ntransform: [load]\nload: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.format, []byte(tt.content))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(doc.Entries, want) {
				t.Errorf("Entries = %#v, want %#v", doc.Entries, want)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
		wantKey string
		wantIdx int
	}{
		{name: "json scalar value", format: FormatJSON, content: `{"a": "b"}`, wantKey: "a", wantIdx: -1},
		{name: "json comment without jsonc", format: FormatJSON, content: "{// x\n}", wantIdx: -1},
		{name: "yaml scalar value", format: FormatYAML, content: "a: b\n", wantKey: "a", wantIdx: -1},
		{name: "yaml nested mapping", format: FormatYAML, content: "a:\n  b: [c]\n", wantKey: "a", wantIdx: -1},
		{name: "yaml number entry", format: FormatYAML, content: "a: [b, 3]\n", wantKey: "a", wantIdx: 1},
		{name: "yaml null entry", format: FormatYAML, content: "a: [~]\n", wantKey: "a", wantIdx: 0},
		{name: "yaml top level list", format: FormatYAML, content: "- a\n- b\n", wantIdx: -1},
		{name: "yaml numeric key", format: FormatYAML, content: "1: [a]\n", wantIdx: -1},
		{name: "yaml empty", format: FormatYAML, content: "", wantIdx: -1},
		{name: "yaml syntax", format: FormatYAML, content: "a: [b\n", wantIdx: -1},
		{name: "cue scalar value", format: FormatCUE, content: `a: "b"`, wantKey: "a", wantIdx: -1},
		{name: "cue number entry", format: FormatCUE, content: `a: ["b", 1]`, wantKey: "a", wantIdx: 1},
		{name: "cue incomplete", format: FormatCUE, content: `a: [string]`, wantIdx: -1},
		{name: "cue conflict", format: FormatCUE, content: "a: [\"b\"]\na: [\"c\"]\n", wantIdx: -1},
		{name: "cue top level list", format: FormatCUE, content: `["a"]`, wantIdx: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.format, []byte(tt.content))
			var malformed *graph.MalformedGraphError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedGraphError, got %v", err)
			}
			if malformed.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", malformed.Key, tt.wantKey)
			}
			if malformed.Index != tt.wantIdx {
				t.Errorf("Index = %d, want %d", malformed.Index, tt.wantIdx)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "json", want: FormatJSON},
		{in: "JSONC", want: FormatJSONC},
		{in: "yml", want: FormatYAML},
		{in: "cue", want: FormatCUE},
		{in: "toml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatDetection(t *testing.T) {
	if got := FormatFromName("deps/graph.YML"); got != FormatYAML {
		t.Errorf("FormatFromName() = %q", got)
	}
	if got := FormatFromName("graph.txt"); got != "" {
		t.Errorf("FormatFromName() = %q", got)
	}
	if got := FormatFromContentType("application/json; charset=utf-8"); got != FormatJSON {
		t.Errorf("FormatFromContentType() = %q", got)
	}
	if got := FormatFromContentType("multipart/form-data; boundary=x"); got != "" {
		t.Errorf("FormatFromContentType() = %q", got)
	}
	if got := DetectFormat(FormatCUE, "graph.json", "application/json"); got != FormatCUE {
		t.Errorf("DetectFormat() with hint = %q", got)
	}
	if got := DetectFormat("", "graph.yaml", "application/json"); got != FormatYAML {
		t.Errorf("DetectFormat() by name = %q", got)
	}
	if got := DetectFormat("", "upload", "text/yaml"); got != FormatYAML {
		t.Errorf("DetectFormat() by content type = %q", got)
	}
	if got := Sniff([]byte("  \n{}")); got != FormatJSONC {
		t.Errorf("Sniff() = %q", got)
	}
}
