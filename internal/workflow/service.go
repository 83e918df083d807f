package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/protected-push/internal/protection"
	"github.com/temirov/protected-push/internal/publish"
)

const (
	compensatingRestoreTimeout                 = 30 * time.Second
	removerMissingMessageConstant              = "protection remover not configured"
	restorerMissingMessageConstant             = "protection restorer not configured"
	publisherMissingMessageConstant            = "change publisher not configured"
	compensatingRestoreErrorTemplateConstant   = "compensating restore failed: %w"
	stateTransitionLogMessageConstant          = "state transition"
	completedLogMessageConstant                = "successfully"
	protectionLeftRemovedLogMessageConstant    = "Push failed; branch protection remains removed"
	compensatingRestoreLogMessageConstant      = "Push failed; restoring branch protection"
	compensatingRestoreDoneLogMessageConstant  = "Branch protection restored after failed push"
	compensatingRestoreErrorLogMessageConstant = "Branch protection could not be restored; restore it manually"
	logFieldFromStateConstant                  = "from"
	logFieldToStateConstant                    = "to"
	logFieldRepositoryConstant                 = "repository"
	logFieldBranchConstant                     = "branch"
)

var (
	errRemoverMissing   = errors.New(removerMissingMessageConstant)
	errRestorerMissing  = errors.New(restorerMissingMessageConstant)
	errPublisherMissing = errors.New(publisherMissingMessageConstant)
)

// ProtectionRemover captures and deletes a branch protection rule.
type ProtectionRemover interface {
	Remove(executionContext context.Context, target protection.Target) (protection.Settings, error)
}

// ProtectionRestorer re-applies captured protection settings.
type ProtectionRestorer interface {
	Restore(executionContext context.Context, settings protection.Settings, target protection.Target) error
}

// ChangePublisher commits and pushes the working tree.
type ChangePublisher interface {
	CommitAndPush(executionContext context.Context, identity publish.CommitIdentity, branch string) error
}

// ServiceDependencies describes required collaborators.
type ServiceDependencies struct {
	Logger    *zap.Logger
	Remover   ProtectionRemover
	Restorer  ProtectionRestorer
	Publisher ChangePublisher
}

// ServiceOptions configures run behavior.
type ServiceOptions struct {
	// RestoreOnFailure re-applies the captured protection when the push step
	// fails, and runs every restore outside the run's cancellation. When false
	// the rule stays removed and the run fails immediately.
	RestoreOnFailure bool
}

// Result captures the observable outcome of a run.
type Result struct {
	FinalState          State
	FailedState         State
	Transitions         []State
	Settings            protection.Settings
	CompensatingRestore bool
}

// Service orchestrates remove, publish, and restore.
type Service struct {
	logger    *zap.Logger
	remover   ProtectionRemover
	restorer  ProtectionRestorer
	publisher ChangePublisher
	options   ServiceOptions
}

// NewService constructs a Service.
func NewService(dependencies ServiceDependencies, options ServiceOptions) (*Service, error) {
	if dependencies.Remover == nil {
		return nil, errRemoverMissing
	}
	if dependencies.Restorer == nil {
		return nil, errRestorerMissing
	}
	if dependencies.Publisher == nil {
		return nil, errPublisherMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:    logger,
		remover:   dependencies.Remover,
		restorer:  dependencies.Restorer,
		publisher: dependencies.Publisher,
		options:   options,
	}, nil
}

type runTracker struct {
	logger *zap.Logger
	result Result
}

func (tracker *runTracker) advance(next State) {
	tracker.logger.Debug(stateTransitionLogMessageConstant,
		zap.String(logFieldFromStateConstant, string(tracker.result.FinalState)),
		zap.String(logFieldToStateConstant, string(next)),
	)
	tracker.result.FinalState = next
	tracker.result.Transitions = append(tracker.result.Transitions, next)
}

func (tracker *runTracker) fail() {
	tracker.result.FailedState = tracker.result.FinalState
	tracker.advance(StateFailed)
}

// Execute runs the protected push. Steps run strictly in order; the first
// failure ends the run and is returned as a StepError.
func (service *Service) Execute(executionContext context.Context, repositoryContext RepositoryContext, identity publish.CommitIdentity) (Result, error) {
	tracker := &runTracker{
		logger: service.logger,
		result: Result{FinalState: StateStart, Transitions: []State{StateStart}},
	}

	if validationError := repositoryContext.validate(); validationError != nil {
		tracker.fail()
		return tracker.result, validationError
	}

	target := repositoryContext.Target()
	runLogger := service.logger.With(
		zap.String(logFieldRepositoryConstant, repositoryContext.Repository),
		zap.String(logFieldBranchConstant, repositoryContext.Branch),
	)

	capturedSettings, removeError := service.remover.Remove(executionContext, target)
	if removeError != nil {
		tracker.fail()
		return tracker.result, StepError{State: StateStart, Cause: removeError}
	}
	tracker.result.Settings = capturedSettings
	tracker.advance(StateProtectionRemoved)

	if publishError := service.publisher.CommitAndPush(executionContext, identity, repositoryContext.Branch); publishError != nil {
		tracker.fail()
		failure := StepError{State: StateProtectionRemoved, Cause: publishError}
		if !service.options.RestoreOnFailure {
			runLogger.Warn(protectionLeftRemovedLogMessageConstant, zap.Error(publishError))
			return tracker.result, failure
		}
		tracker.result.CompensatingRestore = true
		return tracker.result, service.compensate(executionContext, runLogger, capturedSettings, target, failure)
	}
	tracker.advance(StateCommittedAndPushed)

	restoreContext, cancelRestore := service.restoreContext(executionContext)
	restoreError := service.restorer.Restore(restoreContext, capturedSettings, target)
	cancelRestore()
	if restoreError != nil {
		tracker.fail()
		return tracker.result, StepError{State: StateCommittedAndPushed, Cause: restoreError}
	}
	tracker.advance(StateProtectionRestored)
	tracker.advance(StateDone)

	runLogger.Info(completedLogMessageConstant)
	return tracker.result, nil
}

// restoreContext detaches the restore from the run's cancellation when
// RestoreOnFailure is set, so an expired run timeout cannot leave the branch
// unprotected. The restore is still bounded by compensatingRestoreTimeout.
func (service *Service) restoreContext(executionContext context.Context) (context.Context, context.CancelFunc) {
	if !service.options.RestoreOnFailure {
		return executionContext, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(executionContext), compensatingRestoreTimeout)
}

// compensate restores protection after a failed push and returns the push
// failure, joined with the restore failure when both fail. The restore runs
// even when the run context is already done.
func (service *Service) compensate(executionContext context.Context, runLogger *zap.Logger, settings protection.Settings, target protection.Target, failure StepError) error {
	runLogger.Warn(compensatingRestoreLogMessageConstant, zap.Error(failure.Cause))

	restoreContext, cancel := service.restoreContext(executionContext)
	defer cancel()

	if restoreError := service.restorer.Restore(restoreContext, settings, target); restoreError != nil {
		runLogger.Error(compensatingRestoreErrorLogMessageConstant, zap.Error(restoreError))
		return errors.Join(failure, fmt.Errorf(compensatingRestoreErrorTemplateConstant, restoreError))
	}

	runLogger.Info(compensatingRestoreDoneLogMessageConstant)
	return failure
}
