// Package githubauth resolves the token used to call the hosting API.
package githubauth

import (
	"os"
	"strings"
)

const configurationTokenSourceConstant = "configuration"

// Environment variable names consulted for GitHub authentication, in preference order.
const (
	EnvGitAppToken    = "GIT_APP_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubCLIToken = "GH_TOKEN"
)

var tokenPreference = []string{
	EnvGitAppToken,
	EnvGitHubToken,
	EnvGitHubCLIToken,
}

// TokenEnvironmentVariables lists the consulted variables in preference order.
func TokenEnvironmentVariables() []string {
	return append([]string{}, tokenPreference...)
}

// ResolveToken returns the configured token when set, otherwise the first
// non-blank token found in the process environment. The second return value
// names the source; the third reports whether any token was found.
func ResolveToken(configuredToken string) (string, string, bool) {
	if trimmed := strings.TrimSpace(configuredToken); len(trimmed) > 0 {
		return trimmed, configurationTokenSourceConstant, true
	}
	for _, key := range tokenPreference {
		if value := strings.TrimSpace(os.Getenv(key)); len(value) > 0 {
			return value, key, true
		}
	}
	return "", "", false
}
