package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/protected-push/internal/execshell"
)

const (
	// DefaultCommitEmail is the author and committer email used when none is configured.
	DefaultCommitEmail = "github-actions[bot]@users.noreply.github.com"
	// DefaultCommitName is the author and committer name used when none is configured.
	DefaultCommitName = "github-actions[bot]"
	// DefaultCommitMessage is the commit message used when none is configured.
	DefaultCommitMessage = "Updated by Github Actions :)"

	gitAddCommandNameConstant         = "add"
	gitAllChangesPathspecConstant     = "."
	gitCommitCommandNameConstant      = "commit"
	gitMessageFlagConstant            = "-m"
	gitPushCommandNameConstant        = "push"
	gitRemoteNameConstant             = "origin"
	authorNameEnvironmentConstant     = "GIT_AUTHOR_NAME"
	authorEmailEnvironmentConstant    = "GIT_AUTHOR_EMAIL"
	committerNameEnvironmentConstant  = "GIT_COMMITTER_NAME"
	committerEmailEnvironmentConstant = "GIT_COMMITTER_EMAIL"
	gitExecutorMissingMessageConstant = "git executor not configured"
	branchMissingMessageConstant      = "branch is required"
	operationErrorTemplateConstant    = "unable to %s: %v"
	publishingLogMessageConstant      = "Committing and pushing changes"
	publishedLogMessageConstant       = "Pushed changes"
	logFieldBranchConstant            = "branch"
	logFieldWorkingDirectoryConstant  = "working_directory"
	logFieldAuthorConstant            = "author"
)

// Step identifies a git step of the publish operation.
type Step string

// Publish steps.
const (
	StepStage  Step = "stage changes"
	StepCommit Step = "commit changes"
	StepPush   Step = "push changes"
)

var (
	errGitExecutorMissing = errors.New(gitExecutorMissingMessageConstant)
	// ErrBranchMissing indicates CommitAndPush was called without a branch.
	ErrBranchMissing = errors.New(branchMissingMessageConstant)
)

// OperationError reports the git step that failed.
type OperationError struct {
	Step  Step
	Cause error
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Step, operationError.Cause)
}

// Unwrap exposes the underlying execshell error.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CommitIdentity names the author, committer, and message of the commit.
type CommitIdentity struct {
	Email   string
	Name    string
	Message string
}

// WithDefaults fills blank fields with the bot identity.
func (identity CommitIdentity) WithDefaults() CommitIdentity {
	resolved := CommitIdentity{
		Email:   strings.TrimSpace(identity.Email),
		Name:    strings.TrimSpace(identity.Name),
		Message: identity.Message,
	}
	if len(resolved.Email) == 0 {
		resolved.Email = DefaultCommitEmail
	}
	if len(resolved.Name) == 0 {
		resolved.Name = DefaultCommitName
	}
	if len(strings.TrimSpace(resolved.Message)) == 0 {
		resolved.Message = DefaultCommitMessage
	}
	return resolved
}

func (identity CommitIdentity) environment() map[string]string {
	return map[string]string{
		authorNameEnvironmentConstant:     identity.Name,
		authorEmailEnvironmentConstant:    identity.Email,
		committerNameEnvironmentConstant:  identity.Name,
		committerEmailEnvironmentConstant: identity.Email,
	}
}

// Publisher commits everything in a working directory and pushes it to origin.
type Publisher struct {
	executor         GitExecutor
	workingDirectory string
	logger           *zap.Logger
}

// NewPublisher constructs a Publisher operating in workingDirectory. An empty
// working directory means the process working directory.
func NewPublisher(executor GitExecutor, workingDirectory string, logger *zap.Logger) (*Publisher, error) {
	if executor == nil {
		return nil, errGitExecutorMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{executor: executor, workingDirectory: workingDirectory, logger: logger}, nil
}

// CommitAndPush runs git add, git commit, and git push in order and stops at
// the first failure. The identity applies to this commit only; no git
// configuration is written.
func (publisher *Publisher) CommitAndPush(executionContext context.Context, identity CommitIdentity, branch string) error {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return ErrBranchMissing
	}
	resolvedIdentity := identity.WithDefaults()

	publisher.logger.Info(publishingLogMessageConstant,
		zap.String(logFieldBranchConstant, trimmedBranch),
		zap.String(logFieldWorkingDirectoryConstant, publisher.workingDirectory),
		zap.String(logFieldAuthorConstant, resolvedIdentity.Name+" <"+resolvedIdentity.Email+">"),
	)

	steps := []struct {
		step    Step
		details execshell.CommandDetails
	}{
		{
			step: StepStage,
			details: execshell.CommandDetails{
				Arguments:        []string{gitAddCommandNameConstant, gitAllChangesPathspecConstant},
				WorkingDirectory: publisher.workingDirectory,
			},
		},
		{
			step: StepCommit,
			details: execshell.CommandDetails{
				Arguments:            []string{gitCommitCommandNameConstant, gitMessageFlagConstant, resolvedIdentity.Message},
				WorkingDirectory:     publisher.workingDirectory,
				EnvironmentVariables: resolvedIdentity.environment(),
			},
		},
		{
			step: StepPush,
			details: execshell.CommandDetails{
				Arguments:        []string{gitPushCommandNameConstant, gitRemoteNameConstant, trimmedBranch},
				WorkingDirectory: publisher.workingDirectory,
			},
		},
	}

	for _, gitStep := range steps {
		if _, executionError := publisher.executor.ExecuteGit(executionContext, gitStep.details); executionError != nil {
			return OperationError{Step: gitStep.step, Cause: executionError}
		}
	}

	publisher.logger.Info(publishedLogMessageConstant, zap.String(logFieldBranchConstant, trimmedBranch))
	return nil
}
