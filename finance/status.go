package finance

import "strings"

// ApplicationStatus is the closed local status vocabulary.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusApproved    ApplicationStatus = "approved"
	StatusDenied      ApplicationStatus = "denied"
	StatusConditional ApplicationStatus = "conditional"
	StatusCancelled   ApplicationStatus = "cancelled"
)

// lenderStatusMap translates LightReach's free-text account status strings.
// The lender prefixes most of them with a milestone number ("7 - Contract
// Signed"); we match on the normalized full string.
var lenderStatusMap = map[string]ApplicationStatus{
	"created":                      StatusSubmitted,
	"1 - created":                  StatusSubmitted,
	"2 - credit check":             StatusSubmitted,
	"3 - approved":                 StatusApproved,
	"approved":                     StatusApproved,
	"approved with stipulations":   StatusConditional,
	"4 - approved with conditions": StatusConditional,
	"declined":                     StatusDenied,
	"denied":                       StatusDenied,
	"5 - declined":                 StatusDenied,
	"expired":                      StatusCancelled,
	"cancelled":                    StatusCancelled,
	"6 - cancelled":                StatusCancelled,
	"7 - contract signed":          StatusApproved,
	"8 - contract approved":        StatusApproved,
}

// MapLenderStatus maps a lender status string to the local enum. Unrecognized
// strings map to pending: an application is never silently lost because the
// lender grew a new milestone name.
func MapLenderStatus(s string) ApplicationStatus {
	key := strings.ToLower(strings.TrimSpace(s))
	if mapped, ok := lenderStatusMap[key]; ok {
		return mapped
	}
	return StatusPending
}

// webhookEventMap translates webhook event names to the local status. Events
// absent here (milestoneAchieved, documentUploaded, ...) leave the status
// unchanged.
var webhookEventMap = map[string]ApplicationStatus{
	"approved":                 StatusApproved,
	"approvedwithstipulations": StatusConditional,
	"declined":                 StatusDenied,
	"denied":                   StatusDenied,
	"expired":                  StatusCancelled,
	"creditfrozen":             StatusDenied,
	"contractsigned":           StatusApproved,
	"contractapproved":         StatusApproved,
	"quotevoided":              StatusCancelled,
}

// MapWebhookEvent resolves a webhook event (optionally qualified by the
// payload's own status field) to a local status. The second return is false
// for events that must not change the stored status.
func MapWebhookEvent(event, status string) (ApplicationStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(event))
	if mapped, ok := webhookEventMap[key]; ok {
		return mapped, true
	}
	// Legacy payload shape: no recognized event name, but an explicit status.
	if key == "statuschanged" || key == "" {
		if s := strings.ToLower(strings.TrimSpace(status)); s != "" {
			if mapped, ok := webhookEventMap[s]; ok {
				return mapped, true
			}
		}
	}
	return "", false
}

// ValidStatus reports whether s is a member of the closed enum.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusDenied, StatusConditional, StatusCancelled:
		return true
	}
	return false
}
