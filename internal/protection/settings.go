package protection

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	principalDecodingErrorTemplateConstant = "unsupported dismissal restriction entry %s"
	dismissStaleReviewsKeyConstant         = "dismiss_stale_reviews"
	requireCodeOwnerReviewsKeyConstant     = "require_code_owner_reviews"
	requiredApprovingCountKeyConstant      = "required_approving_review_count"
	dismissalRestrictionsKeyConstant       = "dismissal_restrictions"
	restrictionUsersKeyConstant            = "users"
	restrictionTeamsKeyConstant            = "teams"
)

// Settings is the subset of a branch protection rule that survives a
// remove/restore cycle. It is also the exact restore payload.
type Settings struct {
	DismissStaleReviews          bool                   `json:"dismiss_stale_reviews"`
	RequireCodeOwnerReviews      bool                   `json:"require_code_owner_reviews"`
	RequiredApprovingReviewCount int                    `json:"required_approving_review_count"`
	DismissalRestrictions        *DismissalRestrictions `json:"dismissal_restrictions,omitempty"`
}

// DismissalRestrictions lists who may dismiss stale reviews. Only organization
// repositories accept it.
type DismissalRestrictions struct {
	Users []string `json:"users"`
	Teams []string `json:"teams"`
}

// MarshalLogObject logs the settings under their wire names.
func (settings Settings) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddBool(dismissStaleReviewsKeyConstant, settings.DismissStaleReviews)
	encoder.AddBool(requireCodeOwnerReviewsKeyConstant, settings.RequireCodeOwnerReviews)
	encoder.AddInt(requiredApprovingCountKeyConstant, settings.RequiredApprovingReviewCount)
	if settings.DismissalRestrictions == nil {
		return nil
	}
	return encoder.AddObject(dismissalRestrictionsKeyConstant, settings.DismissalRestrictions)
}

// MarshalLogObject logs both principal lists, empty ones included.
func (restrictions *DismissalRestrictions) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if usersError := encoder.AddArray(restrictionUsersKeyConstant, principalNames(restrictions.Users)); usersError != nil {
		return usersError
	}
	return encoder.AddArray(restrictionTeamsKeyConstant, principalNames(restrictions.Teams))
}

type principalNames []string

func (names principalNames) MarshalLogArray(encoder zapcore.ArrayEncoder) error {
	for _, name := range names {
		encoder.AppendString(name)
	}
	return nil
}

// protectionDocument accepts both the flat layout and the layout the API
// returns, where review settings sit under required_pull_request_reviews.
type protectionDocument struct {
	DismissStaleReviews          *bool                       `json:"dismiss_stale_reviews"`
	RequireCodeOwnerReviews      *bool                       `json:"require_code_owner_reviews"`
	RequiredApprovingReviewCount *int                        `json:"required_approving_review_count"`
	DismissalRestrictions        *restrictionDocument        `json:"dismissal_restrictions"`
	RequiredPullRequestReviews   *pullRequestReviewsDocument `json:"required_pull_request_reviews"`
}

type pullRequestReviewsDocument struct {
	DismissStaleReviews          *bool                `json:"dismiss_stale_reviews"`
	RequireCodeOwnerReviews      *bool                `json:"require_code_owner_reviews"`
	RequiredApprovingReviewCount *int                 `json:"required_approving_review_count"`
	DismissalRestrictions        *restrictionDocument `json:"dismissal_restrictions"`
}

type restrictionDocument struct {
	Users principalList `json:"users"`
	Teams principalList `json:"teams"`
}

// principalList decodes entries given either as names or as user/team objects.
type principalList []string

type principalObject struct {
	Login string `json:"login"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (list *principalList) UnmarshalJSON(data []byte) error {
	var rawEntries []json.RawMessage
	if decodeError := json.Unmarshal(data, &rawEntries); decodeError != nil {
		return decodeError
	}

	decoded := make(principalList, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		var name string
		if json.Unmarshal(rawEntry, &name) == nil {
			decoded = append(decoded, name)
			continue
		}

		var object principalObject
		if decodeError := json.Unmarshal(rawEntry, &object); decodeError != nil {
			return fmt.Errorf(principalDecodingErrorTemplateConstant, strings.TrimSpace(string(rawEntry)))
		}
		switch {
		case len(object.Login) > 0:
			decoded = append(decoded, object.Login)
		case len(object.Slug) > 0:
			decoded = append(decoded, object.Slug)
		case len(object.Name) > 0:
			decoded = append(decoded, object.Name)
		default:
			return fmt.Errorf(principalDecodingErrorTemplateConstant, strings.TrimSpace(string(rawEntry)))
		}
	}

	*list = decoded
	return nil
}

// settings extracts the restorable subset. Flat fields win over nested ones.
func (document protectionDocument) settings(organizationOwned bool) Settings {
	nested := pullRequestReviewsDocument{}
	if document.RequiredPullRequestReviews != nil {
		nested = *document.RequiredPullRequestReviews
	}

	extracted := Settings{
		DismissStaleReviews:          firstBool(document.DismissStaleReviews, nested.DismissStaleReviews),
		RequireCodeOwnerReviews:      firstBool(document.RequireCodeOwnerReviews, nested.RequireCodeOwnerReviews),
		RequiredApprovingReviewCount: firstInt(document.RequiredApprovingReviewCount, nested.RequiredApprovingReviewCount),
	}

	if !organizationOwned {
		return extracted
	}

	restrictions := document.DismissalRestrictions
	if restrictions == nil {
		restrictions = nested.DismissalRestrictions
	}

	extracted.DismissalRestrictions = &DismissalRestrictions{Users: []string{}, Teams: []string{}}
	if restrictions != nil {
		extracted.DismissalRestrictions.Users = append(extracted.DismissalRestrictions.Users, restrictions.Users...)
		extracted.DismissalRestrictions.Teams = append(extracted.DismissalRestrictions.Teams, restrictions.Teams...)
	}

	return extracted
}

func firstBool(values ...*bool) bool {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return false
}

func firstInt(values ...*int) int {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return 0
}
