// internal/app/features/auditlog/types.go
package auditlog

import (
	"github.com/dalemusser/chimeo/internal/app/store/audit"
)

// listResponse is the body of GET /admin/audit.
type listResponse struct {
	Events []audit.Event `json:"events"`

	// Echoed filters
	Category     string `json:"category,omitempty"`
	EventType    string `json:"eventType,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	AccountEmail string `json:"accountEmail,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`

	// Filter options
	Categories []categoryOption `json:"categories"`
	EventTypes []string         `json:"eventTypes"`

	// Pagination
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Total      int64 `json:"total"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

// categoryOption represents a category for the filter dropdown.
type categoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication"},
		{Value: audit.CategoryRequest, Label: "Organization requests"},
		{Value: audit.CategoryTrial, Label: "Trials"},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types; unknown categories get nil.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLogout,
	}
	requestEvents := []string{
		audit.EventRequestSubmitted,
		audit.EventRequestApproved,
		audit.EventRequestRejected,
	}
	trialEvents := []string{
		audit.EventTrialProvisioned,
		audit.EventTrialExpired,
		audit.EventTierChanged,
		audit.EventTrialRepaired,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryRequest:
		return requestEvents
	case audit.CategoryTrial:
		return trialEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(requestEvents)+len(trialEvents))
		all = append(all, authEvents...)
		all = append(all, requestEvents...)
		all = append(all, trialEvents...)
		return all
	default:
		return nil
	}
}
