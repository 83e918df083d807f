package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/protected-push/internal/execshell"
)

const (
	gitRemoteCommandNameConstant      = "remote"
	gitGetURLSubcommandConstant       = "get-url"
	originRemoteNameConstant          = "origin"
	gitExecutorMissingMessageConstant = "git executor not configured"
	originLookupErrorTemplateConstant = "unable to read origin remote: %w"
	originParseErrorTemplateConstant  = "unable to parse origin remote: %w"
)

var errGitExecutorMissing = errors.New(gitExecutorMissingMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// OriginResolver reads the origin remote of a working tree.
type OriginResolver struct {
	executor GitExecutor
}

// NewOriginResolver constructs an OriginResolver.
func NewOriginResolver(executor GitExecutor) (*OriginResolver, error) {
	if executor == nil {
		return nil, errGitExecutorMissing
	}
	return &OriginResolver{executor: executor}, nil
}

// Resolve returns the hosted repository origin points to.
func (resolver *OriginResolver) Resolve(executionContext context.Context, workingDirectory string) (RemoteURL, error) {
	executionResult, executionError := resolver.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteCommandNameConstant, gitGetURLSubcommandConstant, originRemoteNameConstant},
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return RemoteURL{}, fmt.Errorf(originLookupErrorTemplateConstant, executionError)
	}

	remote, parseError := ParseRemoteURL(strings.TrimSpace(executionResult.StandardOutput))
	if parseError != nil {
		return RemoteURL{}, fmt.Errorf(originParseErrorTemplateConstant, parseError)
	}
	return remote, nil
}
