package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/protected-push/internal/execshell"
	"github.com/temirov/protected-push/internal/githubauth"
	"github.com/temirov/protected-push/internal/gitrepo"
	"github.com/temirov/protected-push/internal/protection"
	"github.com/temirov/protected-push/internal/publish"
	"github.com/temirov/protected-push/internal/utils"
	"github.com/temirov/protected-push/internal/workflow"
)

const (
	applicationNameConstant                  = "protected-push"
	applicationShortDescriptionConstant      = "Push to a protected branch by lifting its protection for the duration of the push"
	applicationLongDescriptionConstant       = "protected-push removes the branch protection rule of the target branch, commits and pushes the working tree, and restores the captured protection settings."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	environmentFileFlagNameConstant          = "env-file"
	environmentFileFlagUsageConstant         = "Optional dotenv file loaded into the environment before configuration is resolved."
	workingDirectoryFlagNameConstant         = "cwd"
	workingDirectoryFlagUsageConstant        = "Directory to commit from, relative to the current directory."
	emailFlagNameConstant                    = "email"
	emailFlagUsageConstant                   = "Author and committer email."
	nameFlagNameConstant                     = "name"
	nameFlagUsageConstant                    = "Author and committer name."
	messageFlagNameConstant                  = "message"
	messageFlagUsageConstant                 = "Commit message."
	repositoryFlagNameConstant               = "repository"
	repositoryFlagUsageConstant              = "Target repository as owner/name."
	branchFlagNameConstant                   = "branch"
	branchFlagUsageConstant                  = "Target branch."
	apiURLFlagNameConstant                   = "api-url"
	apiURLFlagUsageConstant                  = "GitHub REST API base URL."
	restoreOnFailureFlagNameConstant         = "restore-on-failure"
	restoreOnFailureFlagUsageConstant        = "Restore branch protection when the push fails (false leaves it removed)."
	timeoutFlagNameConstant                  = "timeout"
	timeoutFlagUsageConstant                 = "Upper bound for the whole run (0 disables the bound)."
	versionFlagNameConstant                  = "version"
	versionFlagUsageConstant                 = "Print the application version and exit."
	versionOutputTemplateConstant            = "%s version: %s\n"
	unknownVersionConstant                   = "dev"
	develVersionConstant                     = "(devel)"
	commonLogLevelConfigKeyConstant          = "common.log_level"
	commonLogFormatConfigKeyConstant         = "common.log_format"
	commonTimeoutConfigKeyConstant           = "common.timeout"
	githubRepositoryConfigKeyConstant        = "github.repository"
	githubBranchConfigKeyConstant            = "github.branch"
	githubTokenConfigKeyConstant             = "github.token"
	githubAPIURLConfigKeyConstant            = "github.api_url"
	commitWorkingDirectoryConfigKeyConstant  = "commit.cwd"
	commitEmailConfigKeyConstant             = "commit.email"
	commitNameConfigKeyConstant              = "commit.name"
	commitMessageConfigKeyConstant           = "commit.message"
	restoreOnFailureConfigKeyConstant        = "protection.restore_on_failure"
	repositoryEnvironmentConstant            = "GITHUB_REPOSITORY"
	branchEnvironmentConstant                = "GITHUB_REF_NAME"
	workingDirectoryInputEnvironmentConstant = "INPUT_CWD"
	emailInputEnvironmentConstant            = "INPUT_EMAIL"
	nameInputEnvironmentConstant             = "INPUT_NAME"
	messageInputEnvironmentConstant          = "INPUT_MESSAGE"
	environmentPrefixConstant                = "PROTECTEDPUSH"
	configurationNameConstant                = "protected-push"
	configurationTypeConstant                = "yaml"
	defaultConfigurationSearchPathConstant   = "."
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	tokenSourceFieldConstant                 = "token_source"
	tokenVariablesFieldConstant              = "consulted_variables"
	tokenMissingMessageConstant              = "No GitHub token configured or found in the environment"
	workingDirectoryFieldConstant            = "working_directory"
	restoreOnFailureFieldConstant            = "restore_on_failure"
	finalStateFieldConstant                  = "final_state"
	failedStateFieldConstant                 = "failed_state"
	compensatingRestoreFieldConstant         = "compensating_restore"
	originRepositoryMessageConstant          = "Using repository from origin remote"
	originUnavailableMessageConstant         = "origin remote unavailable"
	repositoryFieldConstant                  = "repository"
	runStartingMessageConstant               = "protected push starting"
	runFinishedMessageConstant               = "protected push finished"
	runFailedMessageConstant                 = "protected push failed"
	environmentFileErrorTemplateConstant     = "unable to load environment file: %w"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	workingDirectoryErrorTemplateConstant    = "unable to resolve working directory: %w"
	clientCreationErrorTemplateConstant      = "unable to create GitHub client: %w"
	executorCreationErrorTemplateConstant    = "unable to create git executor: %w"
	publisherCreationErrorTemplateConstant   = "unable to create publisher: %w"
	serviceCreationErrorTemplateConstant     = "unable to create workflow service: %w"
	loggerNotInitializedMessageConstant      = "logger not initialized"
	negativeTimeoutMessageConstant           = "timeout must not be negative"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common     ApplicationCommonConfiguration     `mapstructure:"common"`
	GitHub     ApplicationGitHubConfiguration     `mapstructure:"github"`
	Commit     ApplicationCommitConfiguration     `mapstructure:"commit"`
	Protection ApplicationProtectionConfiguration `mapstructure:"protection"`
}

// ApplicationCommonConfiguration stores logging and run bounds.
type ApplicationCommonConfiguration struct {
	LogLevel  utils.LogLevel  `mapstructure:"log_level"`
	LogFormat utils.LogFormat `mapstructure:"log_format"`
	Timeout   time.Duration   `mapstructure:"timeout"`
}

// ApplicationGitHubConfiguration addresses the target repository.
type ApplicationGitHubConfiguration struct {
	Repository string `mapstructure:"repository"`
	Branch     string `mapstructure:"branch"`
	Token      string `mapstructure:"token"`
	APIURL     string `mapstructure:"api_url"`
}

// ApplicationCommitConfiguration describes the commit created by the run.
type ApplicationCommitConfiguration struct {
	WorkingDirectory string `mapstructure:"cwd"`
	Email            string `mapstructure:"email"`
	Name             string `mapstructure:"name"`
	Message          string `mapstructure:"message"`
}

// ApplicationProtectionConfiguration controls failure handling.
type ApplicationProtectionConfiguration struct {
	RestoreOnFailure bool `mapstructure:"restore_on_failure"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	environmentFilePath   string
	logLevelFlagValue     string
	logFormatFlagValue    string
	flagValues            ApplicationConfiguration
	commandRunner         execshell.CommandRunner
	versionResolver       func(context.Context) string
	exitFunction          func(int)
	lastResult            workflow.Result
}

// Version is set at build time with -ldflags "-X".
var Version = ""

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	configurationLoader.BindEnvironment(githubRepositoryConfigKeyConstant, repositoryEnvironmentConstant)
	configurationLoader.BindEnvironment(githubBranchConfigKeyConstant, branchEnvironmentConstant)
	configurationLoader.BindEnvironment(commitWorkingDirectoryConfigKeyConstant, workingDirectoryInputEnvironmentConstant)
	configurationLoader.BindEnvironment(commitEmailConfigKeyConstant, emailInputEnvironmentConstant)
	configurationLoader.BindEnvironment(commitNameConfigKeyConstant, nameInputEnvironmentConstant)
	configurationLoader.BindEnvironment(commitMessageConfigKeyConstant, messageInputEnvironmentConstant)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		commandRunner:       execshell.NewOSCommandRunner(),
		versionResolver:     resolveVersion,
		exitFunction:        os.Exit,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if application.persistentFlagChanged(command, versionFlagNameConstant) {
				application.printVersion(command)
				return nil
			}
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runProtectedPush(command)
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	persistentFlags.StringVar(&application.environmentFilePath, environmentFileFlagNameConstant, "", environmentFileFlagUsageConstant)
	persistentFlags.Bool(versionFlagNameConstant, false, versionFlagUsageConstant)

	runFlags := cobraCommand.Flags()
	runFlags.StringVar(&application.flagValues.Commit.WorkingDirectory, workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.Commit.Email, emailFlagNameConstant, "", emailFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.Commit.Name, nameFlagNameConstant, "", nameFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.Commit.Message, messageFlagNameConstant, "", messageFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.GitHub.Repository, repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.GitHub.Branch, branchFlagNameConstant, "", branchFlagUsageConstant)
	runFlags.StringVar(&application.flagValues.GitHub.APIURL, apiURLFlagNameConstant, "", apiURLFlagUsageConstant)
	runFlags.BoolVar(&application.flagValues.Protection.RestoreOnFailure, restoreOnFailureFlagNameConstant, true, restoreOnFailureFlagUsageConstant)
	runFlags.DurationVar(&application.flagValues.Common.Timeout, timeoutFlagNameConstant, 0, timeoutFlagUsageConstant)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, applicationNameConstant, application.versionResolver(command.Context()))
	application.exitFunction(0)
}

func resolveVersion(context.Context) string {
	if len(strings.TrimSpace(Version)) > 0 {
		return Version
	}
	if buildInformation, available := debug.ReadBuildInfo(); available {
		mainVersion := buildInformation.Main.Version
		if len(mainVersion) > 0 && mainVersion != develVersionConstant {
			return mainVersion
		}
	}
	return unknownVersionConstant
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if environmentFileError := utils.LoadEnvironmentFile(application.environmentFilePath); environmentFileError != nil {
		return fmt.Errorf(environmentFileErrorTemplateConstant, environmentFileError)
	}

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:   string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:  string(utils.LogFormatConsole),
		commonTimeoutConfigKeyConstant:    "0s",
		githubBranchConfigKeyConstant:     workflow.DefaultBranch,
		githubTokenConfigKeyConstant:      "",
		githubAPIURLConfigKeyConstant:     protection.DefaultAPIURL,
		commitEmailConfigKeyConstant:      publish.DefaultCommitEmail,
		commitNameConfigKeyConstant:       publish.DefaultCommitName,
		commitMessageConfigKeyConstant:    publish.DefaultCommitMessage,
		restoreOnFailureConfigKeyConstant: true,
	}

	application.configuration = ApplicationConfiguration{}
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration
	application.applyFlagOverrides(command)

	if application.configuration.Common.Timeout < 0 {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, errors.New(negativeTimeoutMessageConstant))
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		application.configuration.Common.LogLevel,
		application.configuration.Common.LogFormat,
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, string(application.configuration.Common.LogLevel)),
		zap.String(configurationLogFormatFieldConstant, string(application.configuration.Common.LogFormat)),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) applyFlagOverrides(command *cobra.Command) {
	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = utils.LogLevel(application.logLevelFlagValue)
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = utils.LogFormat(application.logFormatFlagValue)
	}

	stringOverrides := []struct {
		flagName string
		source   string
		target   *string
	}{
		{flagName: workingDirectoryFlagNameConstant, source: application.flagValues.Commit.WorkingDirectory, target: &application.configuration.Commit.WorkingDirectory},
		{flagName: emailFlagNameConstant, source: application.flagValues.Commit.Email, target: &application.configuration.Commit.Email},
		{flagName: nameFlagNameConstant, source: application.flagValues.Commit.Name, target: &application.configuration.Commit.Name},
		{flagName: messageFlagNameConstant, source: application.flagValues.Commit.Message, target: &application.configuration.Commit.Message},
		{flagName: repositoryFlagNameConstant, source: application.flagValues.GitHub.Repository, target: &application.configuration.GitHub.Repository},
		{flagName: branchFlagNameConstant, source: application.flagValues.GitHub.Branch, target: &application.configuration.GitHub.Branch},
		{flagName: apiURLFlagNameConstant, source: application.flagValues.GitHub.APIURL, target: &application.configuration.GitHub.APIURL},
	}
	for _, override := range stringOverrides {
		if application.flagChanged(command, override.flagName) {
			*override.target = override.source
		}
	}

	if application.flagChanged(command, restoreOnFailureFlagNameConstant) {
		application.configuration.Protection.RestoreOnFailure = application.flagValues.Protection.RestoreOnFailure
	}
	if application.flagChanged(command, timeoutFlagNameConstant) {
		application.configuration.Common.Timeout = application.flagValues.Common.Timeout
	}
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(string(application.configuration.Common.LogFormat))
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runProtectedPush(command *cobra.Command) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	configuration := application.configuration

	workingDirectory, workingDirectoryError := resolveWorkingDirectory(configuration.Commit.WorkingDirectory)
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
	}

	executionContext := command.Context()
	if configuration.Common.Timeout > 0 {
		var cancel context.CancelFunc
		executionContext, cancel = context.WithTimeout(executionContext, configuration.Common.Timeout)
		defer cancel()
	}

	executor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	repository := strings.TrimSpace(configuration.GitHub.Repository)
	if len(repository) == 0 {
		originRepository, originError := application.resolveOriginRepository(executionContext, executor, workingDirectory)
		if originError != nil {
			return originError
		}
		repository = originRepository
	}

	token, tokenSource, tokenFound := githubauth.ResolveToken(configuration.GitHub.Token)
	if !tokenFound {
		application.logger.Warn(tokenMissingMessageConstant, zap.Strings(tokenVariablesFieldConstant, githubauth.TokenEnvironmentVariables()))
	}
	repositoryContext, contextError := workflow.NewRepositoryContext(repository, configuration.GitHub.Branch, token)
	if contextError != nil {
		return contextError
	}

	service, serviceError := application.buildService(repositoryContext, executor, workingDirectory)
	if serviceError != nil {
		return serviceError
	}

	application.logger.Debug(
		runStartingMessageConstant,
		zap.String(tokenSourceFieldConstant, tokenSource),
		zap.String(workingDirectoryFieldConstant, workingDirectory),
		zap.Bool(restoreOnFailureFieldConstant, configuration.Protection.RestoreOnFailure),
	)

	identity := publish.CommitIdentity{
		Email:   configuration.Commit.Email,
		Name:    configuration.Commit.Name,
		Message: configuration.Commit.Message,
	}

	result, executionError := service.Execute(executionContext, repositoryContext, identity)
	application.lastResult = result
	if executionError != nil {
		application.logger.Error(
			runFailedMessageConstant,
			zap.String(failedStateFieldConstant, string(result.FailedState)),
			zap.Bool(compensatingRestoreFieldConstant, result.CompensatingRestore),
			zap.Error(executionError),
		)
		return executionError
	}

	application.logger.Debug(runFinishedMessageConstant, zap.String(finalStateFieldConstant, string(result.FinalState)))
	return nil
}

// resolveOriginRepository derives owner/name from the origin remote when no
// repository is configured. A working tree without a parsable origin yields
// an empty repository, which NewRepositoryContext then rejects.
func (application *Application) resolveOriginRepository(executionContext context.Context, executor *execshell.ShellExecutor, workingDirectory string) (string, error) {
	resolver, resolverError := gitrepo.NewOriginResolver(executor)
	if resolverError != nil {
		return "", resolverError
	}

	remote, resolveError := resolver.Resolve(executionContext, workingDirectory)
	if resolveError != nil {
		application.logger.Debug(originUnavailableMessageConstant, zap.Error(resolveError))
		return "", nil
	}

	application.logger.Info(originRepositoryMessageConstant, zap.String(repositoryFieldConstant, remote.FullName()))
	return remote.FullName(), nil
}

func (application *Application) buildService(repositoryContext workflow.RepositoryContext, executor *execshell.ShellExecutor, workingDirectory string) (*workflow.Service, error) {
	client, clientError := protection.NewClient(application.logger, protection.ClientConfiguration{
		Token:  repositoryContext.Token,
		APIURL: application.configuration.GitHub.APIURL,
	})
	if clientError != nil {
		return nil, fmt.Errorf(clientCreationErrorTemplateConstant, clientError)
	}

	publisher, publisherError := publish.NewPublisher(executor, workingDirectory, application.logger)
	if publisherError != nil {
		return nil, fmt.Errorf(publisherCreationErrorTemplateConstant, publisherError)
	}

	service, serviceError := workflow.NewService(workflow.ServiceDependencies{
		Logger:    application.logger,
		Remover:   protection.NewRemover(client, application.logger),
		Restorer:  protection.NewRestorer(client, application.logger),
		Publisher: publisher,
	}, workflow.ServiceOptions{RestoreOnFailure: application.configuration.Protection.RestoreOnFailure})
	if serviceError != nil {
		return nil, fmt.Errorf(serviceCreationErrorTemplateConstant, serviceError)
	}

	return service, nil
}

// resolveWorkingDirectory joins relative paths onto the process working directory.
func resolveWorkingDirectory(configuredDirectory string) (string, error) {
	processDirectory, getwdError := os.Getwd()
	if getwdError != nil {
		return "", getwdError
	}

	trimmedDirectory := strings.TrimSpace(configuredDirectory)
	if len(trimmedDirectory) == 0 {
		return processDirectory, nil
	}
	if filepath.IsAbs(trimmedDirectory) {
		return filepath.Clean(trimmedDirectory), nil
	}
	return filepath.Join(processDirectory, trimmedDirectory), nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	if command.Flags().Changed(flagName) {
		return true
	}
	return application.persistentFlagChanged(command, flagName)
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
