package protection_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/protected-push/internal/protection"
)

const (
	restorerRestoredLogMessageConstant  = "Restored branch protection"
	restorerRestoringLogMessageConstant = "Restoring branch protection"
)

func TestRestorerSendsCapturedSettingsVerbatim(testInstance *testing.T) {
	testInstance.Parallel()

	testCases := []struct {
		name         string
		settings     protection.Settings
		expectedBody string
	}{
		{
			name: "organization_payload",
			settings: protection.Settings{
				DismissStaleReviews:          true,
				RequiredApprovingReviewCount: 2,
				DismissalRestrictions: &protection.DismissalRestrictions{
					Users: []string{"alice"},
					Teams: []string{},
				},
			},
			expectedBody: `{"dismiss_stale_reviews":true,"require_code_owner_reviews":false,"required_approving_review_count":2,"dismissal_restrictions":{"users":["alice"],"teams":[]}}`,
		},
		{
			name: "personal_payload_omits_restrictions",
			settings: protection.Settings{
				RequireCodeOwnerReviews:      true,
				RequiredApprovingReviewCount: 1,
			},
			expectedBody: `{"dismiss_stale_reviews":false,"require_code_owner_reviews":true,"required_approving_review_count":1}`,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			subtest.Parallel()

			server := newFakeHostingServer(removerEmptyProtectionJSON, fakeServerPersonalJSON)
			client := startFakeHostingServer(subtest, server)
			restorer := protection.NewRestorer(client, zap.NewNop())

			require.NoError(subtest, restorer.Restore(context.Background(), testCase.settings, defaultTarget()))

			recorded := server.recordedRequests()
			require.Len(subtest, recorded, 1)
			require.Equal(subtest, http.MethodPut, recorded[0].method)
			require.Equal(subtest, fakeServerProtectionPathConstant, recorded[0].path)
			require.Equal(subtest, fakeServerAuthorizationConstant, recorded[0].authorization)
			require.JSONEq(subtest, testCase.expectedBody, recorded[0].body)
		})
	}
}

func TestRestorerLogsTargetURLAndResponse(testInstance *testing.T) {
	server := newFakeHostingServer(removerEmptyProtectionJSON, fakeServerPersonalJSON)
	client := startFakeHostingServer(testInstance, server)

	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	restorer := protection.NewRestorer(client, zap.New(observedCore))

	require.NoError(testInstance, restorer.Restore(context.Background(), protection.Settings{}, defaultTarget()))

	restoringEntries := observedLogs.FilterMessage(restorerRestoringLogMessageConstant).All()
	require.Len(testInstance, restoringEntries, 1)
	require.Contains(testInstance, restoringEntries[0].ContextMap()["url"], fakeServerProtectionPathConstant)

	restoredEntries := observedLogs.FilterMessage(restorerRestoredLogMessageConstant).All()
	require.Len(testInstance, restoredEntries, 1)
	require.Equal(testInstance, fakeServerRestoredJSON, restoredEntries[0].ContextMap()["response"])
}

func TestRestorerReportsRejectedPayload(testInstance *testing.T) {
	server := newFakeHostingServer(removerEmptyProtectionJSON, fakeServerPersonalJSON)
	server.putStatus = http.StatusUnprocessableEntity
	server.putResponseBody = fakeServerValidationFailedJSON
	client := startFakeHostingServer(testInstance, server)
	restorer := protection.NewRestorer(client, zap.NewNop())

	restoreError := restorer.Restore(context.Background(), protection.Settings{}, defaultTarget())

	var operationError protection.OperationError
	require.True(testInstance, errors.As(restoreError, &operationError))
	require.Equal(testInstance, protection.OperationRestoreProtection, operationError.Operation)
	require.Equal(testInstance, http.StatusUnprocessableEntity, operationError.StatusCode())
}

func TestNewClientRequiresToken(testInstance *testing.T) {
	_, clientError := protection.NewClient(zap.NewNop(), protection.ClientConfiguration{})
	require.ErrorIs(testInstance, clientError, protection.ErrTokenNotConfigured)

	_, urlError := protection.NewClient(zap.NewNop(), protection.ClientConfiguration{Token: fakeServerTokenConstant, APIURL: "not a url"})
	require.Error(testInstance, urlError)
}
