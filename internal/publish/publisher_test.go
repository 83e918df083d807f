package publish_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/protected-push/internal/execshell"
	"github.com/temirov/protected-push/internal/publish"
)

const (
	publisherWorkingDirectoryConstant = "/workspace/site"
	publisherBranchConstant           = "main"
	publisherEmailConstant            = "release@example.com"
	publisherNameConstant             = "Release Bot"
	publisherMessageConstant          = "Regenerate docs"
)

type recordingGitExecutor struct {
	invocations []execshell.CommandDetails
	failures    map[string]error
}

func (executor *recordingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.invocations = append(executor.invocations, details)
	if failure, exists := executor.failures[details.Arguments[0]]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{}, nil
}

func TestCommitAndPushRunsGitStepsInOrder(testInstance *testing.T) {
	executor := &recordingGitExecutor{}
	publisher, constructionError := publish.NewPublisher(executor, publisherWorkingDirectoryConstant, zap.NewNop())
	require.NoError(testInstance, constructionError)

	identity := publish.CommitIdentity{Email: publisherEmailConstant, Name: publisherNameConstant, Message: publisherMessageConstant}
	require.NoError(testInstance, publisher.CommitAndPush(context.Background(), identity, publisherBranchConstant))

	require.Len(testInstance, executor.invocations, 3)
	require.Equal(testInstance, []string{"add", "."}, executor.invocations[0].Arguments)
	require.Equal(testInstance, []string{"commit", "-m", publisherMessageConstant}, executor.invocations[1].Arguments)
	require.Equal(testInstance, []string{"push", "origin", publisherBranchConstant}, executor.invocations[2].Arguments)

	for _, invocation := range executor.invocations {
		require.Equal(testInstance, publisherWorkingDirectoryConstant, invocation.WorkingDirectory)
	}

	require.Equal(testInstance, map[string]string{
		"GIT_AUTHOR_NAME":     publisherNameConstant,
		"GIT_AUTHOR_EMAIL":    publisherEmailConstant,
		"GIT_COMMITTER_NAME":  publisherNameConstant,
		"GIT_COMMITTER_EMAIL": publisherEmailConstant,
	}, executor.invocations[1].EnvironmentVariables)
	require.Empty(testInstance, executor.invocations[0].EnvironmentVariables)
	require.Empty(testInstance, executor.invocations[2].EnvironmentVariables)
}

func TestCommitAndPushAppliesDefaultIdentity(testInstance *testing.T) {
	executor := &recordingGitExecutor{}
	publisher, constructionError := publish.NewPublisher(executor, "", zap.NewNop())
	require.NoError(testInstance, constructionError)

	require.NoError(testInstance, publisher.CommitAndPush(context.Background(), publish.CommitIdentity{}, publisherBranchConstant))

	commitInvocation := executor.invocations[1]
	require.Equal(testInstance, []string{"commit", "-m", publish.DefaultCommitMessage}, commitInvocation.Arguments)
	require.Equal(testInstance, publish.DefaultCommitName, commitInvocation.EnvironmentVariables["GIT_AUTHOR_NAME"])
	require.Equal(testInstance, publish.DefaultCommitEmail, commitInvocation.EnvironmentVariables["GIT_COMMITTER_EMAIL"])
}

func TestCommitAndPushStopsAtFirstFailure(testInstance *testing.T) {
	testInstance.Parallel()

	nothingToCommit := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: []string{"commit", "-m", publisherMessageConstant}}},
		Result:  execshell.ExecutionResult{ExitCode: 1, StandardOutput: "nothing to commit, working tree clean"},
	}
	rejectedPush := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: []string{"push", "origin", publisherBranchConstant}}},
		Result:  execshell.ExecutionResult{ExitCode: 1, StandardError: "! [rejected] main -> main (non-fast-forward)"},
	}
	missingGit := execshell.CommandExecutionError{Cause: errors.New("executable file not found in $PATH")}

	testCases := []struct {
		name                string
		failures            map[string]error
		expectedStep        publish.Step
		expectedInvocations int
		expectedCause       error
	}{
		{
			name:                "stage_failure",
			failures:            map[string]error{"add": missingGit},
			expectedStep:        publish.StepStage,
			expectedInvocations: 1,
			expectedCause:       missingGit,
		},
		{
			name:                "nothing_to_commit",
			failures:            map[string]error{"commit": nothingToCommit},
			expectedStep:        publish.StepCommit,
			expectedInvocations: 2,
			expectedCause:       nothingToCommit,
		},
		{
			name:                "push_rejected",
			failures:            map[string]error{"push": rejectedPush},
			expectedStep:        publish.StepPush,
			expectedInvocations: 3,
			expectedCause:       rejectedPush,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			subtest.Parallel()

			executor := &recordingGitExecutor{failures: testCase.failures}
			publisher, constructionError := publish.NewPublisher(executor, publisherWorkingDirectoryConstant, zap.NewNop())
			require.NoError(subtest, constructionError)

			publishError := publisher.CommitAndPush(context.Background(), publish.CommitIdentity{}, publisherBranchConstant)

			var operationError publish.OperationError
			require.True(subtest, errors.As(publishError, &operationError))
			require.Equal(subtest, testCase.expectedStep, operationError.Step)
			require.Equal(subtest, testCase.expectedCause, operationError.Cause)
			require.Len(subtest, executor.invocations, testCase.expectedInvocations)
		})
	}
}

func TestCommitAndPushRequiresBranch(testInstance *testing.T) {
	executor := &recordingGitExecutor{}
	publisher, constructionError := publish.NewPublisher(executor, publisherWorkingDirectoryConstant, zap.NewNop())
	require.NoError(testInstance, constructionError)

	require.ErrorIs(testInstance, publisher.CommitAndPush(context.Background(), publish.CommitIdentity{}, "  "), publish.ErrBranchMissing)
	require.Empty(testInstance, executor.invocations)
}

func TestNewPublisherRequiresExecutor(testInstance *testing.T) {
	_, constructionError := publish.NewPublisher(nil, publisherWorkingDirectoryConstant, zap.NewNop())
	require.Error(testInstance, constructionError)
}
