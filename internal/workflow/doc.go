// Package workflow runs the protected push: it removes the branch protection
// rule, commits and pushes the working tree, and restores the rule.
//
// Service tracks the run as a state machine
// (start, protection_removed, committed_and_pushed, protection_restored, done)
// and, depending on its restoration policy, re-applies the captured protection
// when the push step fails.
package workflow
