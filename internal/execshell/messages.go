package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	outputSuffixTemplateConstant            = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	allChangesLabelConstant                 = "all changes"
	currentDirectoryPathspecConstant        = "."
	referenceSeparatorConstant              = ", "
	gitMessageFlagConstant                  = "-m"
	gitRemoteGetURLActionConstant           = "get-url"
)

const (
	pushSubjectTemplateConstant      = "%s to %s from %s"
	stageSubjectTemplateConstant     = "%s in %s"
	commitSubjectTemplateConstant    = "commit in %s with message %q"
	remoteURLSubjectTemplateConstant = "URL of remote %s in %s"
)

// lifecycleTemplates holds one sentence per stage. Every template takes the
// subject first; failure templates add the exit code and output suffix, and
// execution-failure templates add the cause.
type lifecycleTemplates struct {
	started         string
	succeeded       string
	failed          string
	executionFailed string
	describeSubject func(formatter CommandMessageFormatter, command ShellCommand) string
}

var gitLifecycleTemplates = map[string]lifecycleTemplates{
	"push": {
		started:         "Pushing %s",
		succeeded:       "Pushed %s",
		failed:          "Failed to push %s (exit code %d%s)",
		executionFailed: "Unable to push %s: %s",
		describeSubject: CommandMessageFormatter.describePushSubject,
	},
	"add": {
		started:         "Staging %s",
		succeeded:       "Staged %s",
		failed:          "Failed to stage %s (exit code %d%s)",
		executionFailed: "Unable to stage %s: %s",
		describeSubject: CommandMessageFormatter.describeStageSubject,
	},
	"commit": {
		started:         "Creating %s",
		succeeded:       "Created %s",
		failed:          "Failed to create %s (exit code %d%s)",
		executionFailed: "Unable to create %s: %s",
		describeSubject: CommandMessageFormatter.describeCommitSubject,
	},
	"remote": {
		started:         "Reading %s",
		succeeded:       "Read %s",
		failed:          "Failed to read %s (exit code %d%s)",
		executionFailed: "Unable to read %s: %s",
		describeSubject: CommandMessageFormatter.describeRemoteURLSubject,
	},
}

// CommandMessageFormatter turns git invocations into sentences for CI job logs.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a command that exited with zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that could not run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	templates, known := formatter.lookupTemplates(command)
	if !known {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subject := templates.describeSubject(formatter, command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.started, subject)
	case messageStageSuccess:
		return fmt.Sprintf(templates.succeeded, subject)
	case messageStageFailure:
		return fmt.Sprintf(templates.failed, subject, result.ExitCode, formatter.formatOutputSuffix(result))
	default:
		return fmt.Sprintf(templates.executionFailed, subject, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) lookupTemplates(command ShellCommand) (lifecycleTemplates, bool) {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return lifecycleTemplates{}, false
	}
	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	templates, known := gitLifecycleTemplates[subcommand]
	if !known {
		return lifecycleTemplates{}, false
	}
	if subcommand == "remote" {
		positional := formatter.positionalArguments(command.Details.Arguments[1:])
		if len(positional) == 0 || positional[0] != gitRemoteGetURLActionConstant {
			return lifecycleTemplates{}, false
		}
	}
	return templates, true
}

func (formatter CommandMessageFormatter) describePushSubject(command ShellCommand) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	remoteName := ""
	references := []string{}
	if len(positional) > 0 {
		remoteName = positional[0]
		references = positional[1:]
	}
	return fmt.Sprintf(pushSubjectTemplateConstant,
		formatter.ensureValue(strings.Join(references, referenceSeparatorConstant)),
		formatter.ensureValue(remoteName),
		formatter.describeWorkingDirectory(command),
	)
}

func (formatter CommandMessageFormatter) describeStageSubject(command ShellCommand) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	target := fallbackUnknownValueLabelConstant
	if len(positional) > 0 {
		target = positional[0]
	}
	if target == currentDirectoryPathspecConstant {
		target = allChangesLabelConstant
	}
	return fmt.Sprintf(stageSubjectTemplateConstant, target, formatter.describeWorkingDirectory(command))
}

func (formatter CommandMessageFormatter) describeCommitSubject(command ShellCommand) string {
	commitMessage := fallbackUnknownValueLabelConstant
	arguments := command.Details.Arguments
	for index := 0; index+1 < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == gitMessageFlagConstant {
			commitMessage = strings.TrimSpace(arguments[index+1])
			break
		}
	}
	return fmt.Sprintf(commitSubjectTemplateConstant, formatter.describeWorkingDirectory(command), commitMessage)
}

func (formatter CommandMessageFormatter) describeRemoteURLSubject(command ShellCommand) string {
	positional := formatter.positionalArguments(command.Details.Arguments[1:])
	remoteName := ""
	if len(positional) > 1 {
		remoteName = positional[1]
	}
	return fmt.Sprintf(remoteURLSubjectTemplateConstant, formatter.ensureValue(remoteName), formatter.describeWorkingDirectory(command))
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := describeCommand(command)
	if trimmedDirectory := strings.TrimSpace(command.Details.WorkingDirectory); len(trimmedDirectory) > 0 {
		commandLabel += fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedDirectory)
	}
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatOutputSuffix(result))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

// formatOutputSuffix prefers stderr; git reports "nothing to commit" on stdout.
func (formatter CommandMessageFormatter) formatOutputSuffix(result ExecutionResult) string {
	output := strings.TrimSpace(result.StandardError)
	if len(output) == 0 {
		output = strings.TrimSpace(result.StandardOutput)
	}
	if len(output) == 0 {
		return ""
	}
	return fmt.Sprintf(outputSuffixTemplateConstant, output)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := []string{}
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}
