package protection

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	restoringProtectionLogMessageConstant = "Restoring branch protection"
	restoredProtectionLogMessageConstant  = "Restored branch protection"
	logFieldResponseConstant              = "response"
)

// Restorer writes captured settings back as the branch protection rule.
type Restorer struct {
	client *Client
	logger *zap.Logger
}

// NewRestorer constructs a Restorer.
func NewRestorer(client *Client, logger *zap.Logger) *Restorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Restorer{client: client, logger: logger}
}

// Restore replaces the protection rule of the target branch with settings.
// The payload is sent as-is without reading the current rule first.
func (restorer *Restorer) Restore(executionContext context.Context, settings Settings, target Target) error {
	if validationError := target.validate(); validationError != nil {
		return validationError
	}

	relativePath := target.protectionPath()
	restorer.logger.Info(restoringProtectionLogMessageConstant,
		zap.String(logFieldURLConstant, restorer.client.endpoint(relativePath)),
		zap.String(logFieldRepositoryConstant, target.FullName()),
		zap.String(logFieldBranchConstant, target.Branch),
	)

	request, requestError := restorer.client.api.NewRequest(http.MethodPut, relativePath, settings)
	if requestError != nil {
		return newOperationError(OperationRestoreProtection, target, requestError)
	}

	var responseBody bytes.Buffer
	response, doError := restorer.client.api.Do(executionContext, request, &responseBody)
	if doError != nil {
		return newOperationError(OperationRestoreProtection, target, doError)
	}

	restorer.logger.Info(restoredProtectionLogMessageConstant,
		zap.Int(logFieldStatusConstant, responseStatus(response)),
		zap.String(logFieldResponseConstant, strings.TrimSpace(responseBody.String())),
	)
	return nil
}
