package protection

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v81/github"
)

const (
	operationErrorTemplateConstant    = "%s failed for %s (branch %s): %v"
	invalidInputErrorTemplateConstant = "invalid protection input: %s"
)

// OperationName identifies a hosting API call made by this package.
type OperationName string

// Hosting API operations.
const (
	OperationReadProtection    OperationName = "read branch protection"
	OperationReadRepository    OperationName = "read repository metadata"
	OperationRemoveProtection  OperationName = "remove branch protection"
	OperationRestoreProtection OperationName = "restore branch protection"
)

// OperationError reports a failed hosting API call.
type OperationError struct {
	Operation  OperationName
	Repository string
	Branch     string
	Cause      error
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Repository, operationError.Branch, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// StatusCode returns the HTTP status of the failed call, or zero when the call
// never produced a response.
func (operationError OperationError) StatusCode() int {
	var responseError *github.ErrorResponse
	if errors.As(operationError.Cause, &responseError) && responseError.Response != nil {
		return responseError.Response.StatusCode
	}
	return 0
}

// InvalidInputError reports a target that cannot be addressed.
type InvalidInputError struct {
	Message string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.Message)
}

func newOperationError(operation OperationName, target Target, cause error) OperationError {
	return OperationError{
		Operation:  operation,
		Repository: target.FullName(),
		Branch:     target.Branch,
		Cause:      cause,
	}
}

func responseStatus(response *github.Response) int {
	if response == nil || response.Response == nil {
		return 0
	}
	return response.StatusCode
}
