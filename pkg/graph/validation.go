package graph

import "sort"

// Validate checks the shape of a Document that was built in code rather
// than decoded. Decoders run the same checks while parsing.
func (d *Document) Validate() error {
	if d == nil {
		return malformed("document is nil")
	}

	for _, e := range d.Entries {
		if e.Name == "" {
			return malformed("job names must be non-empty strings")
		}
		for i, child := range e.Downstream {
			if child == "" {
				return malformedEntry(e.Name, i, "job name must be non-empty")
			}
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
