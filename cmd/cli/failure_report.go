package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	githubActionsEnvironmentConstant     = "GITHUB_ACTIONS"
	githubActionsEnabledValueConstant    = "true"
	workflowErrorCommandTemplateConstant = "::error::%s\n"
	failureOutputTemplateConstant        = "%v\n"
)

var workflowCommandEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

// ReportFailure writes failure to standardError and, inside a GitHub Actions
// job, emits an ::error:: workflow command on standardOutput so the job
// failure carries the message.
func ReportFailure(standardOutput io.Writer, standardError io.Writer, failure error) {
	if failure == nil {
		return
	}
	fmt.Fprintf(standardError, failureOutputTemplateConstant, failure)
	if os.Getenv(githubActionsEnvironmentConstant) == githubActionsEnabledValueConstant {
		fmt.Fprintf(standardOutput, workflowErrorCommandTemplateConstant, workflowCommandEscaper.Replace(failure.Error()))
	}
}
