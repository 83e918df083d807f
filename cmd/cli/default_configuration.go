package cli

import _ "embed"

// defaultConfigurationYAML seeds every key the loader understands, so
// environment variables can override keys no configuration file mentions.
//
//go:embed default_config.yaml
var defaultConfigurationYAML string

// EmbeddedDefaultConfiguration returns a fresh copy of the built-in
// protected-push.yaml and its configuration type.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return []byte(defaultConfigurationYAML), configurationTypeConstant
}
