package workflow

import (
	"fmt"
	"strings"

	"github.com/temirov/protected-push/internal/protection"
)

const (
	// DefaultBranch is used when no branch is configured.
	DefaultBranch                     = "master"
	repositorySeparatorConstant       = "/"
	repositoryFieldNameConstant       = "repository"
	branchFieldNameConstant           = "branch"
	tokenFieldNameConstant            = "token"
	requiredValueMessageConstant      = "value is required"
	repositoryFormatMessageConstant   = "expected owner/name, got %q"
	invalidInputErrorTemplateConstant = "%s: %s"
)

// InvalidInputError describes configuration that cannot address a repository.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryContext identifies the repository, branch, and credentials of a
// run. It is built once at program entry and passed by value.
type RepositoryContext struct {
	Repository string
	Owner      string
	Name       string
	Branch     string
	Token      string
}

// NewRepositoryContext parses an owner/name repository reference. A blank
// branch resolves to DefaultBranch.
func NewRepositoryContext(repository string, branch string, token string) (RepositoryContext, error) {
	trimmedRepository := strings.TrimSpace(repository)
	if len(trimmedRepository) == 0 {
		return RepositoryContext{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	repositorySegments := strings.Split(trimmedRepository, repositorySeparatorConstant)
	if len(repositorySegments) != 2 || len(repositorySegments[0]) == 0 || len(repositorySegments[1]) == 0 {
		return RepositoryContext{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: fmt.Sprintf(repositoryFormatMessageConstant, trimmedRepository)}
	}

	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		trimmedBranch = DefaultBranch
	}

	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		return RepositoryContext{}, InvalidInputError{FieldName: tokenFieldNameConstant, Message: requiredValueMessageConstant}
	}

	return RepositoryContext{
		Repository: trimmedRepository,
		Owner:      repositorySegments[0],
		Name:       repositorySegments[1],
		Branch:     trimmedBranch,
		Token:      trimmedToken,
	}, nil
}

func (repositoryContext RepositoryContext) validate() error {
	switch {
	case len(repositoryContext.Owner) == 0 || len(repositoryContext.Name) == 0:
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	case len(repositoryContext.Branch) == 0:
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return nil
}

// Target converts the context into a protection API target.
func (repositoryContext RepositoryContext) Target() protection.Target {
	return protection.Target{
		Owner:  repositoryContext.Owner,
		Name:   repositoryContext.Name,
		Branch: repositoryContext.Branch,
	}
}
