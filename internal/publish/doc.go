// Package publish stages, commits, and pushes working tree changes with git.
package publish
