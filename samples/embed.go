// Package samples provides the dependency documents bundled with the binary.
package samples

import "embed"

// FS contains the embedded sample documents.
//
//go:embed *.json
var FS embed.FS

// Default is the document served when nothing else has been loaded.
const Default = "default.json"
