package protection

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL                          = "https://api.github.com/"
	tokenAuthorizationTypeConstant         = "token"
	urlPathSeparatorConstant               = "/"
	protectionPathTemplateConstant         = "repos/%s/%s/branches/%s/protection"
	apiURLParseErrorTemplateConstant       = "invalid api url %q: %w"
	requestLogMessageConstant              = "github api request"
	responseLogMessageConstant             = "github api response"
	requestFailureLogMessageConstant       = "github api request failed"
	logFieldMethodConstant                 = "method"
	logFieldURLConstant                    = "url"
	logFieldStatusConstant                 = "status"
	logFieldDurationConstant               = "duration"
	missingTokenMessageConstant            = "github token not configured"
	missingRepositoryOwnerMessageConstant  = "repository owner is required"
	missingRepositoryNameMessageConstant   = "repository name is required"
	missingRepositoryBranchMessageConstant = "branch is required"
	incompleteAPIURLMessageConstant        = "scheme and host are required"
	repositoryFullNameTemplateConstant     = "%s/%s"
)

var (
	// ErrTokenNotConfigured indicates a client was requested without credentials.
	ErrTokenNotConfigured = errors.New(missingTokenMessageConstant)
	errIncompleteAPIURL   = errors.New(incompleteAPIURLMessageConstant)
)

// Target addresses a single branch of a repository.
type Target struct {
	Owner  string
	Name   string
	Branch string
}

// FullName returns owner/name.
func (target Target) FullName() string {
	return fmt.Sprintf(repositoryFullNameTemplateConstant, target.Owner, target.Name)
}

func (target Target) validate() error {
	switch {
	case len(strings.TrimSpace(target.Owner)) == 0:
		return InvalidInputError{Message: missingRepositoryOwnerMessageConstant}
	case len(strings.TrimSpace(target.Name)) == 0:
		return InvalidInputError{Message: missingRepositoryNameMessageConstant}
	case len(strings.TrimSpace(target.Branch)) == 0:
		return InvalidInputError{Message: missingRepositoryBranchMessageConstant}
	}
	return nil
}

func (target Target) protectionPath() string {
	return fmt.Sprintf(protectionPathTemplateConstant, target.Owner, target.Name, url.PathEscape(target.Branch))
}

// ClientConfiguration describes how to reach the hosting API.
type ClientConfiguration struct {
	Token     string
	APIURL    string
	Transport http.RoundTripper
}

// Client is an authenticated go-github client shared by Remover and Restorer.
type Client struct {
	api *github.Client
}

// NewClient builds a client that sends "Authorization: token <secret>" on every
// request and logs each exchange at debug level.
func NewClient(logger *zap.Logger, configuration ClientConfiguration) (*Client, error) {
	if len(strings.TrimSpace(configuration.Token)) == 0 {
		return nil, ErrTokenNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL, parseError := resolveAPIURL(configuration.APIURL)
	if parseError != nil {
		return nil, parseError
	}

	transport := configuration.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	transport = &loggingRoundTripper{base: transport, logger: logger}
	transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: configuration.Token, TokenType: tokenAuthorizationTypeConstant}),
		Base:   transport,
	}

	api := github.NewClient(&http.Client{Transport: transport})
	api.BaseURL = baseURL

	return &Client{api: api}, nil
}

func resolveAPIURL(rawURL string) (*url.URL, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if len(trimmedURL) == 0 {
		trimmedURL = DefaultAPIURL
	}
	if !strings.HasSuffix(trimmedURL, urlPathSeparatorConstant) {
		trimmedURL += urlPathSeparatorConstant
	}
	parsedURL, parseError := url.Parse(trimmedURL)
	if parseError != nil {
		return nil, fmt.Errorf(apiURLParseErrorTemplateConstant, rawURL, parseError)
	}
	if len(parsedURL.Scheme) == 0 || len(parsedURL.Host) == 0 {
		return nil, fmt.Errorf(apiURLParseErrorTemplateConstant, rawURL, errIncompleteAPIURL)
	}
	return parsedURL, nil
}

func (client *Client) endpoint(relativePath string) string {
	return client.api.BaseURL.String() + relativePath
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (roundTripper *loggingRoundTripper) RoundTrip(request *http.Request) (*http.Response, error) {
	startedAt := time.Now()
	roundTripper.logger.Debug(requestLogMessageConstant,
		zap.String(logFieldMethodConstant, request.Method),
		zap.String(logFieldURLConstant, request.URL.String()),
	)

	response, roundTripError := roundTripper.base.RoundTrip(request)
	elapsed := time.Since(startedAt)
	if roundTripError != nil {
		roundTripper.logger.Debug(requestFailureLogMessageConstant,
			zap.String(logFieldMethodConstant, request.Method),
			zap.String(logFieldURLConstant, request.URL.String()),
			zap.Duration(logFieldDurationConstant, elapsed),
			zap.Error(roundTripError),
		)
		return nil, roundTripError
	}

	roundTripper.logger.Debug(responseLogMessageConstant,
		zap.String(logFieldMethodConstant, request.Method),
		zap.String(logFieldURLConstant, request.URL.String()),
		zap.Int(logFieldStatusConstant, response.StatusCode),
		zap.Duration(logFieldDurationConstant, elapsed),
	)
	return response, nil
}
