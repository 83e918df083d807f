package tests

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	integrationCommandTimeoutConstant       = 30 * time.Second
	integrationOwnerConstant                = "org"
	integrationRepositoryConstant           = "sample"
	integrationBranchConstant               = "main"
	integrationTokenConstant                = "integration-token"
	integrationProtectionPathConstant       = "/repos/org/sample/branches/main/protection"
	integrationRepositoryPathConstant       = "/repos/org/sample"
	integrationProtectionResponseConstant   = `{"required_pull_request_reviews":{"dismiss_stale_reviews":true,"require_code_owner_reviews":false,"required_approving_review_count":2,"dismissal_restrictions":{"users":[{"login":"alice"}],"teams":[]}}}`
	integrationOrganizationResponseConstant = `{"full_name":"org/sample","organization":{"login":"org"}}`
	integrationExpectedRestoreBodyConstant  = `{"dismiss_stale_reviews":true,"require_code_owner_reviews":false,"required_approving_review_count":2,"dismissal_restrictions":{"users":["alice"],"teams":[]}}`
	fixtureAuthorNameConstant               = "Fixture Author"
	fixtureAuthorEmailConstant              = "fixture@example.com"
)

type integrationRequest struct {
	method        string
	path          string
	authorization string
	body          string
}

type integrationAPIServer struct {
	mutex    sync.Mutex
	requests []integrationRequest
}

func (server *integrationAPIServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	requestBody, _ := io.ReadAll(request.Body)
	server.mutex.Lock()
	server.requests = append(server.requests, integrationRequest{
		method:        request.Method,
		path:          request.URL.Path,
		authorization: request.Header.Get("Authorization"),
		body:          strings.TrimSpace(string(requestBody)),
	})
	server.mutex.Unlock()

	responseWriter.Header().Set("Content-Type", "application/json")
	switch {
	case request.Method == http.MethodGet && request.URL.Path == integrationProtectionPathConstant:
		_, _ = io.WriteString(responseWriter, integrationProtectionResponseConstant)
	case request.Method == http.MethodGet && request.URL.Path == integrationRepositoryPathConstant:
		_, _ = io.WriteString(responseWriter, integrationOrganizationResponseConstant)
	case request.Method == http.MethodDelete && request.URL.Path == integrationProtectionPathConstant:
		responseWriter.WriteHeader(http.StatusNoContent)
	case request.Method == http.MethodPut && request.URL.Path == integrationProtectionPathConstant:
		_, _ = io.WriteString(responseWriter, `{}`)
	default:
		responseWriter.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(responseWriter, `{"message":"Not Found"}`)
	}
}

func (server *integrationAPIServer) recorded() []integrationRequest {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return append([]integrationRequest{}, server.requests...)
}

func startIntegrationAPIServer(testInstance *testing.T) (*integrationAPIServer, string) {
	testInstance.Helper()
	server := &integrationAPIServer{}
	httpServer := httptest.NewServer(server)
	testInstance.Cleanup(httpServer.Close)
	return server, httpServer.URL
}

// gitEnvironment isolates git from user and system configuration.
func gitEnvironment(homeDirectory string) []string {
	environment := []string{}
	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, "GIT_") || strings.HasPrefix(entry, "GITHUB_") || strings.HasPrefix(entry, "INPUT_") || strings.HasPrefix(entry, "PROTECTEDPUSH_") || strings.HasPrefix(entry, "HOME=") || strings.HasPrefix(entry, "GH_TOKEN=") {
			continue
		}
		environment = append(environment, entry)
	}
	return append(environment,
		"HOME="+homeDirectory,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
	)
}

func runGit(testInstance *testing.T, workingDirectory string, homeDirectory string, arguments ...string) string {
	testInstance.Helper()

	command := exec.Command("git", arguments...)
	command.Dir = workingDirectory
	command.Env = append(gitEnvironment(homeDirectory),
		"GIT_AUTHOR_NAME="+fixtureAuthorNameConstant,
		"GIT_AUTHOR_EMAIL="+fixtureAuthorEmailConstant,
		"GIT_COMMITTER_NAME="+fixtureAuthorNameConstant,
		"GIT_COMMITTER_EMAIL="+fixtureAuthorEmailConstant,
	)
	output, runError := command.CombinedOutput()
	require.NoError(testInstance, runError, string(output))
	return strings.TrimSpace(string(output))
}

type repositoryFixture struct {
	homeDirectory    string
	remoteDirectory  string
	workingDirectory string
}

// newRepositoryFixture creates a bare origin and a working tree tracking main.
func newRepositoryFixture(testInstance *testing.T) repositoryFixture {
	testInstance.Helper()

	rootDirectory := testInstance.TempDir()
	fixture := repositoryFixture{
		homeDirectory:    filepath.Join(rootDirectory, "home"),
		remoteDirectory:  filepath.Join(rootDirectory, "origin.git"),
		workingDirectory: filepath.Join(rootDirectory, "work"),
	}
	require.NoError(testInstance, os.MkdirAll(fixture.homeDirectory, 0o755))
	require.NoError(testInstance, os.MkdirAll(fixture.workingDirectory, 0o755))

	runGit(testInstance, rootDirectory, fixture.homeDirectory, "init", "--bare", fixture.remoteDirectory)
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "init")
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "checkout", "-b", integrationBranchConstant)
	require.NoError(testInstance, os.WriteFile(filepath.Join(fixture.workingDirectory, "README.md"), []byte("sample\n"), 0o644))
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "add", ".")
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "commit", "-m", "initial")
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "remote", "add", "origin", fixture.remoteDirectory)
	runGit(testInstance, fixture.workingDirectory, fixture.homeDirectory, "push", "origin", integrationBranchConstant)

	return fixture
}

type binaryOutcome struct {
	exitCode       int
	standardOutput string
	standardError  string
}

func runProtectedPushBinary(testInstance *testing.T, fixture repositoryFixture, extraEnvironment []string, arguments ...string) binaryOutcome {
	testInstance.Helper()

	executionContext, cancel := context.WithTimeout(context.Background(), integrationCommandTimeoutConstant)
	defer cancel()

	command := exec.CommandContext(executionContext, integrationBinaryPath, arguments...)
	command.Dir = filepath.Dir(fixture.workingDirectory)
	command.Env = append(gitEnvironment(fixture.homeDirectory), extraEnvironment...)

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	command.Stdout = &standardOutput
	command.Stderr = &standardError

	runError := command.Run()
	outcome := binaryOutcome{standardOutput: standardOutput.String(), standardError: standardError.String()}
	if runError != nil {
		var exitError *exec.ExitError
		require.True(testInstance, errors.As(runError, &exitError), runError)
		outcome.exitCode = exitError.ExitCode()
	}
	return outcome
}
