// Package stepdiff provides embedded runtime resources.
package stepdiff

import _ "embed"

// ExampleConfig is the annotated example configuration written by
// "stepdiff init".
//
//go:embed config.example.yaml
var ExampleConfig []byte
