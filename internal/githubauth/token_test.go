package githubauth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/protected-push/internal/githubauth"
)

func TestResolveTokenPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name            string
		configured      string
		processEnv      map[string]string
		expectedToken   string
		expectedSource  string
		expectedPresent bool
	}{
		{
			name:            "configured_value_wins",
			configured:      " configured ",
			processEnv:      map[string]string{githubauth.EnvGitAppToken: "app"},
			expectedToken:   "configured",
			expectedSource:  "configuration",
			expectedPresent: true,
		},
		{
			name:            "app_token_preferred_over_github_token",
			processEnv:      map[string]string{githubauth.EnvGitHubToken: "github", githubauth.EnvGitAppToken: "app"},
			expectedToken:   "app",
			expectedSource:  githubauth.EnvGitAppToken,
			expectedPresent: true,
		},
		{
			name:            "cli_token_as_last_resort",
			processEnv:      map[string]string{githubauth.EnvGitHubCLIToken: "cli"},
			expectedToken:   "cli",
			expectedSource:  githubauth.EnvGitHubCLIToken,
			expectedPresent: true,
		},
		{
			name:            "blank_values_skipped",
			processEnv:      map[string]string{githubauth.EnvGitAppToken: "   ", githubauth.EnvGitHubToken: "github"},
			expectedToken:   "github",
			expectedSource:  githubauth.EnvGitHubToken,
			expectedPresent: true,
		},
		{
			name:            "nothing_configured",
			expectedPresent: false,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for _, key := range githubauth.TokenEnvironmentVariables() {
				testInstance.Setenv(key, "")
			}
			for environmentKey, environmentValue := range testCase.processEnv {
				testInstance.Setenv(environmentKey, environmentValue)
			}

			token, source, present := githubauth.ResolveToken(testCase.configured)
			require.Equal(testInstance, testCase.expectedPresent, present)
			require.Equal(testInstance, testCase.expectedToken, token)
			require.Equal(testInstance, testCase.expectedSource, source)
		})
	}
}

func TestTokenEnvironmentVariablesReturnsCopy(testInstance *testing.T) {
	variables := githubauth.TokenEnvironmentVariables()
	require.Equal(testInstance, []string{"GIT_APP_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"}, variables)

	variables[0] = "MUTATED"
	require.Equal(testInstance, githubauth.EnvGitAppToken, githubauth.TokenEnvironmentVariables()[0])
}
