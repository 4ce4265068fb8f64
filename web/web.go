// Package web holds the embedded static capture page served at the root
// route, so the binary ships self-contained.
package web

import _ "embed"

//go:embed index.html
var IndexPage []byte
