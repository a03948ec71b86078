// Package web embeds the bundled single-page browser client.
package web

import _ "embed"

// IndexHTML is the single-page chat client served at the root path. It
// speaks the same wire protocol as any other client.
//
//go:embed index.html
var IndexHTML []byte
