package protection

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

const (
	readingProtectionLogMessageConstant  = "Looking for current branch protection rules"
	capturedSettingsLogMessageConstant   = "Captured branch protection settings"
	removingProtectionLogMessageConstant = "Removing branch protection"
	removedProtectionLogMessageConstant  = "Removed branch protection"
	logFieldRepositoryConstant           = "repository"
	logFieldBranchConstant               = "branch"
	logFieldPayloadConstant              = "payload"
	logFieldOrganizationOwnedConstant    = "organization_owned"
)

// Remover captures and deletes a branch protection rule.
type Remover struct {
	client *Client
	logger *zap.Logger
}

// NewRemover constructs a Remover.
func NewRemover(client *Client, logger *zap.Logger) *Remover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remover{client: client, logger: logger}
}

// Remove reads the protection rule of the target branch, captures its
// restorable settings, and deletes the rule. Settings are returned only when
// every call succeeded.
func (remover *Remover) Remove(executionContext context.Context, target Target) (Settings, error) {
	if validationError := target.validate(); validationError != nil {
		return Settings{}, validationError
	}

	targetFields := []zap.Field{
		zap.String(logFieldRepositoryConstant, target.FullName()),
		zap.String(logFieldBranchConstant, target.Branch),
	}
	remover.logger.Info(readingProtectionLogMessageConstant, targetFields...)

	document, readError := remover.readProtection(executionContext, target)
	if readError != nil {
		return Settings{}, readError
	}

	organizationOwned, ownershipError := remover.organizationOwned(executionContext, target)
	if ownershipError != nil {
		return Settings{}, ownershipError
	}

	capturedSettings := document.settings(organizationOwned)
	remover.logger.Info(capturedSettingsLogMessageConstant,
		append(targetFields,
			zap.Bool(logFieldOrganizationOwnedConstant, organizationOwned),
			zap.Object(logFieldPayloadConstant, capturedSettings),
		)...,
	)

	remover.logger.Info(removingProtectionLogMessageConstant, targetFields...)
	response, removeError := remover.client.api.Repositories.RemoveBranchProtection(executionContext, target.Owner, target.Name, target.Branch)
	if removeError != nil {
		return Settings{}, newOperationError(OperationRemoveProtection, target, removeError)
	}
	remover.logger.Info(removedProtectionLogMessageConstant, append(targetFields, zap.Int(logFieldStatusConstant, responseStatus(response)))...)

	return capturedSettings, nil
}

func (remover *Remover) readProtection(executionContext context.Context, target Target) (protectionDocument, error) {
	request, requestError := remover.client.api.NewRequest(http.MethodGet, target.protectionPath(), nil)
	if requestError != nil {
		return protectionDocument{}, newOperationError(OperationReadProtection, target, requestError)
	}

	var document protectionDocument
	if _, doError := remover.client.api.Do(executionContext, request, &document); doError != nil {
		return protectionDocument{}, newOperationError(OperationReadProtection, target, doError)
	}
	return document, nil
}

func (remover *Remover) organizationOwned(executionContext context.Context, target Target) (bool, error) {
	repository, _, getError := remover.client.api.Repositories.Get(executionContext, target.Owner, target.Name)
	if getError != nil {
		return false, newOperationError(OperationReadRepository, target, getError)
	}
	return repository.Organization != nil, nil
}
