package gitrepo

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	scpUserDelimiterConstant            = "@"
	scpPathDelimiterConstant            = ":"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	requiredValueMessageConstant        = "remote url is required"
	invalidRemoteURLMessageConstant     = "remote url does not name owner/repository"
	unsupportedSchemeMessageConstant    = "unsupported remote scheme"
)

var supportedSchemes = map[string]struct{}{
	"https": {},
	"http":  {},
	"ssh":   {},
	"git":   {},
}

// RemoteURL is a git remote reduced to the parts that address a hosted repository.
type RemoteURL struct {
	Host       string
	Owner      string
	Repository string
}

// FullName returns owner/repository.
func (remote RemoteURL) FullName() string {
	return remote.Owner + pathSeparatorConstant + remote.Repository
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL accepts URL-style remotes (https://host/owner/repo.git,
// ssh://git@host/owner/repo) and scp-style remotes (git@host:owner/repo.git).
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	if strings.Contains(trimmedRemote, "://") {
		return parseURLRemote(trimmedRemote)
	}
	return parseSCPRemote(trimmedRemote)
}

func parseURLRemote(remote string) (RemoteURL, error) {
	parsedURL, parseError := url.Parse(remote)
	if parseError != nil {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: parseError.Error()}
	}
	if _, supported := supportedSchemes[strings.ToLower(parsedURL.Scheme)]; !supported {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: unsupportedSchemeMessageConstant}
	}
	return buildRemoteURL(remote, parsedURL.Hostname(), parsedURL.Path)
}

func parseSCPRemote(remote string) (RemoteURL, error) {
	hostAndPath := remote
	if userSplitIndex := strings.Index(remote, scpUserDelimiterConstant); userSplitIndex >= 0 {
		hostAndPath = remote[userSplitIndex+1:]
	}

	pathSplitIndex := strings.Index(hostAndPath, scpPathDelimiterConstant)
	if pathSplitIndex <= 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return buildRemoteURL(remote, hostAndPath[:pathSplitIndex], hostAndPath[pathSplitIndex+1:])
}

func buildRemoteURL(input string, host string, path string) (RemoteURL, error) {
	segments := strings.Split(strings.Trim(path, pathSeparatorConstant), pathSeparatorConstant)
	if len(segments) != 2 {
		return RemoteURL{}, RemoteURLParseError{Input: input, Message: invalidRemoteURLMessageConstant}
	}

	owner := segments[0]
	repository := strings.TrimSuffix(segments[1], gitSuffixConstant)
	if len(host) == 0 || len(owner) == 0 || len(repository) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: input, Message: invalidRemoteURLMessageConstant}
	}

	return RemoteURL{Host: host, Owner: owner, Repository: repository}, nil
}
