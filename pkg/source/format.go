package source

import (
	"bytes"
	"fmt"
	"mime"
	"path"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/chazu/lineage/pkg/graph"
)

// Format is a dependency document encoding
type Format string

const (
	// FormatJSON is strict JSON
	FormatJSON Format = "json"

	// FormatJSONC is JSON with comments and trailing commas
	FormatJSONC Format = "jsonc"

	// FormatYAML is a YAML mapping of job names to sequences
	FormatYAML Format = "yaml"

	// FormatCUE is a CUE struct of job names to lists, evaluated to concrete values
	FormatCUE Format = "cue"
)

// ParseFormat parses a format name. An empty string returns an empty
// Format, which means "detect".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "json":
		return FormatJSON, nil
	case "jsonc":
		return FormatJSONC, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported document format %q (expected json, jsonc, yaml or cue)", s)
	}
}

// FormatFromName returns the format implied by a file extension, or ""
func FormatFromName(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".jsonc":
		return FormatJSONC
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return ""
	}
}

// FormatFromContentType returns the format implied by a MIME type, or ""
func FormatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/json", "text/json":
		return FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML
	case "application/cue", "text/x-cue":
		return FormatCUE
	default:
		return ""
	}
}

// DetectFormat picks a format from an explicit hint, then the file
// extension of name, then the content type. It returns "" when none of them
// names a format.
func DetectFormat(hint Format, name, contentType string) Format {
	if hint != "" {
		return hint
	}
	if f := FormatFromName(name); f != "" {
		return f
	}
	return FormatFromContentType(contentType)
}

// Sniff guesses the format of content: anything that starts like a JSON
// object is read as JSONC, everything else as YAML.
func Sniff(content []byte) Format {
	if bytes.HasPrefix(bytes.TrimSpace(content), []byte("{")) {
		return FormatJSONC
	}
	return FormatYAML
}

// Decode parses content in the given format into a validated document. An
// empty format is sniffed from the content.
func Decode(format Format, content []byte) (*graph.Document, error) {
	if format == "" {
		format = Sniff(content)
	}

	switch format {
	case FormatJSON:
		return graph.DecodeJSON(content)
	case FormatJSONC:
		return graph.DecodeJSON(jsonc.ToJSON(content))
	case FormatYAML:
		return decodeYAML(content)
	case FormatCUE:
		return decodeCUE(content)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

func malformedDoc(format string, args ...any) error {
	return &graph.MalformedGraphError{Index: -1, Reason: fmt.Sprintf(format, args...)}
}

func malformedJob(key string, format string, args ...any) error {
	return &graph.MalformedGraphError{Key: key, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

func malformedItem(key string, index int, format string, args ...any) error {
	return &graph.MalformedGraphError{Key: key, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// decodeYAML walks the node tree so mapping order is kept
func decodeYAML(content []byte) (*graph.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, malformedDoc("invalid YAML: %v", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, malformedDoc("document is empty")
	}

	top := resolveAlias(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, malformedDoc("top level must be a mapping of job names to lists of job names, got %s", describeNode(top))
	}

	doc := &graph.Document{}
	for i := 0; i+1 < len(top.Content); i += 2 {
		keyNode := resolveAlias(top.Content[i])
		if keyNode.Kind != yaml.ScalarNode || keyNode.ShortTag() != "!!str" || keyNode.Value == "" {
			return nil, malformedDoc("job names must be non-empty strings (line %d)", keyNode.Line)
		}
		key := keyNode.Value

		valueNode := resolveAlias(top.Content[i+1])
		if valueNode.Kind != yaml.SequenceNode {
			return nil, malformedJob(key, "value must be a list of job names, got %s", describeNode(valueNode))
		}

		downstream := make([]string, 0, len(valueNode.Content))
		for j, item := range valueNode.Content {
			item = resolveAlias(item)
			if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
				return nil, malformedItem(key, j, "must be a job name string, got %s", describeNode(item))
			}
			if item.Value == "" {
				return nil, malformedItem(key, j, "job name must be non-empty")
			}
			downstream = append(downstream, item.Value)
		}
		doc.Set(key, downstream)
	}

	return doc, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str":
			return "string"
		case "!!int", "!!float":
			return "number"
		case "!!bool":
			return "boolean"
		case "!!null":
			return "null"
		default:
			return n.ShortTag()
		}
	default:
		return "unexpected node"
	}
}

// decodeCUE evaluates content and reads the struct fields in declaration order
func decodeCUE(content []byte) (*graph.Document, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(content, cue.Filename("dependencies.cue"))
	if err := value.Err(); err != nil {
		return nil, malformedDoc("invalid CUE: %v", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, malformedDoc("CUE document is not concrete: %v", err)
	}
	if value.Kind() != cue.StructKind {
		return nil, malformedDoc("top level must be a struct of job names to lists of job names, got %s", value.Kind())
	}

	fields, err := value.Fields()
	if err != nil {
		return nil, malformedDoc("failed to iterate CUE fields: %v", err)
	}

	doc := &graph.Document{}
	for fields.Next() {
		key := fields.Selector().Unquoted()
		if key == "" {
			return nil, malformedDoc("job names must be non-empty strings")
		}

		field := fields.Value()
		if field.Kind() != cue.ListKind {
			return nil, malformedJob(key, "value must be a list of job names, got %s", field.Kind())
		}

		items, err := field.List()
		if err != nil {
			return nil, malformedJob(key, "failed to read list: %v", err)
		}

		downstream := []string{}
		for j := 0; items.Next(); j++ {
			item := items.Value()
			if item.Kind() != cue.StringKind {
				return nil, malformedItem(key, j, "must be a job name string, got %s", item.Kind())
			}
			name, err := item.String()
			if err != nil {
				return nil, malformedItem(key, j, "%v", err)
			}
			if name == "" {
				return nil, malformedItem(key, j, "job name must be non-empty")
			}
			downstream = append(downstream, name)
		}
		doc.Set(key, downstream)
	}

	return doc, nil
}
