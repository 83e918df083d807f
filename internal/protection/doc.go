// Package protection reads, removes, and restores classic branch protection
// rules through the GitHub REST API.
//
// Remover captures the restorable subset of a rule as Settings before deleting
// it; Restorer writes a Settings snapshot back verbatim. Both share a Client
// built on go-github with token authentication.
package protection
