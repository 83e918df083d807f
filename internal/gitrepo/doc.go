// Package gitrepo derives the hosting repository of a working tree from its
// origin remote, for runs where the repository is not configured explicitly.
package gitrepo
