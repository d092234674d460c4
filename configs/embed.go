// Package configs provides the embedded configuration template for partfuse.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution, whether installed from source or a binary release.
// `partfuse config init` writes it as partfuse.yaml in the working
// directory; every value in the template matches the built-in defaults
// from internal/config.NewConfig.
//
// To change the template, edit partfuse.example.yaml and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the commented project configuration template written
// by `partfuse config init`.
//
//go:embed partfuse.example.yaml
var ConfigTemplate string
