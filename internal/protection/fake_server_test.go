package protection_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/protected-push/internal/protection"
)

const (
	fakeServerOwnerConstant          = "octo"
	fakeServerRepositoryConstant     = "widgets"
	fakeServerBranchConstant         = "main"
	fakeServerTokenConstant          = "secret-token"
	fakeServerAuthorizationConstant  = "token secret-token"
	fakeServerProtectionPathConstant = "/repos/octo/widgets/branches/main/protection"
	fakeServerRepositoryPathConstant = "/repos/octo/widgets"
	fakeServerOrganizationJSON       = `{"id":1,"name":"widgets","full_name":"octo/widgets","organization":{"login":"octo"}}`
	fakeServerPersonalJSON           = `{"id":1,"name":"widgets","full_name":"octo/widgets"}`
	fakeServerNotProtectedJSON       = `{"message":"Branch not protected","documentation_url":"https://docs.github.com"}`
	fakeServerValidationFailedJSON   = `{"message":"Validation Failed"}`
	fakeServerRestoredJSON           = `{"url":"https://api.github.com/repos/octo/widgets/branches/main/protection"}`
)

type recordedRequest struct {
	method        string
	path          string
	authorization string
	body          string
}

type fakeHostingServer struct {
	mutex            sync.Mutex
	protectionStatus int
	protectionBody   string
	repositoryBody   string
	deleteStatus     int
	putStatus        int
	putResponseBody  string
	requests         []recordedRequest
}

func newFakeHostingServer(protectionBody string, repositoryBody string) *fakeHostingServer {
	return &fakeHostingServer{
		protectionStatus: http.StatusOK,
		protectionBody:   protectionBody,
		repositoryBody:   repositoryBody,
		deleteStatus:     http.StatusNoContent,
		putStatus:        http.StatusOK,
		putResponseBody:  fakeServerRestoredJSON,
	}
}

func (server *fakeHostingServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	requestBody, _ := io.ReadAll(request.Body)

	server.mutex.Lock()
	server.requests = append(server.requests, recordedRequest{
		method:        request.Method,
		path:          request.URL.Path,
		authorization: request.Header.Get("Authorization"),
		body:          strings.TrimSpace(string(requestBody)),
	})
	server.mutex.Unlock()

	responseWriter.Header().Set("Content-Type", "application/json")
	switch {
	case request.Method == http.MethodGet && request.URL.Path == fakeServerProtectionPathConstant:
		server.respond(responseWriter, server.protectionStatus, server.protectionBody)
	case request.Method == http.MethodGet && request.URL.Path == fakeServerRepositoryPathConstant:
		server.respond(responseWriter, http.StatusOK, server.repositoryBody)
	case request.Method == http.MethodDelete && request.URL.Path == fakeServerProtectionPathConstant:
		server.respond(responseWriter, server.deleteStatus, "")
	case request.Method == http.MethodPut && request.URL.Path == fakeServerProtectionPathConstant:
		server.respond(responseWriter, server.putStatus, server.putResponseBody)
	default:
		server.respond(responseWriter, http.StatusNotFound, `{"message":"Not Found"}`)
	}
}

func (server *fakeHostingServer) respond(responseWriter http.ResponseWriter, status int, body string) {
	if status == http.StatusNotFound && len(body) == 0 {
		body = fakeServerNotProtectedJSON
	}
	responseWriter.WriteHeader(status)
	if len(body) > 0 {
		_, _ = io.WriteString(responseWriter, body)
	}
}

func (server *fakeHostingServer) recordedRequests() []recordedRequest {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	duplicated := make([]recordedRequest, len(server.requests))
	copy(duplicated, server.requests)
	return duplicated
}

func (server *fakeHostingServer) requestsWithMethod(method string) []recordedRequest {
	matching := []recordedRequest{}
	for _, request := range server.recordedRequests() {
		if request.method == method {
			matching = append(matching, request)
		}
	}
	return matching
}

func startFakeHostingServer(testInstance *testing.T, server *fakeHostingServer) *protection.Client {
	testInstance.Helper()

	httpServer := httptest.NewServer(server)
	testInstance.Cleanup(httpServer.Close)

	client, clientError := protection.NewClient(zap.NewNop(), protection.ClientConfiguration{
		Token:  fakeServerTokenConstant,
		APIURL: httpServer.URL,
	})
	require.NoError(testInstance, clientError)
	return client
}

func defaultTarget() protection.Target {
	return protection.Target{
		Owner:  fakeServerOwnerConstant,
		Name:   fakeServerRepositoryConstant,
		Branch: fakeServerBranchConstant,
	}
}
