// internal/domain/models/orgrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request statuses. A request starts pending and is resolved exactly once.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Organization types offered on the signup form. OrgTypeOther requires a
// free-text value, which then replaces the selection on the stored record.
const (
	OrgTypeSchool          = "school"
	OrgTypeChurch          = "church"
	OrgTypeTownHall        = "town-hall"
	OrgTypeCommunityCenter = "community-center"
	OrgTypeNonProfit       = "non-profit"
	OrgTypeBusiness        = "business"
	OrgTypeOther           = "other"
)

// Primary use cases offered on the signup form.
const (
	UseCaseEmergencyAlerts      = "emergency-alerts"
	UseCaseEventNotifications   = "event-notifications"
	UseCaseScheduleChanges      = "schedule-changes"
	UseCaseGeneralAnnouncements = "general-announcements"
	UseCaseMultiple             = "multiple"
)

// DefaultRejectionReason is stored when a reviewer rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// OrgTypes is the closed set of selectable organization types, in form order.
var OrgTypes = []string{
	OrgTypeSchool,
	OrgTypeChurch,
	OrgTypeTownHall,
	OrgTypeCommunityCenter,
	OrgTypeNonProfit,
	OrgTypeBusiness,
	OrgTypeOther,
}

// UseCases is the closed set of primary use cases, in form order.
var UseCases = []string{
	UseCaseEmergencyAlerts,
	UseCaseEventNotifications,
	UseCaseScheduleChanges,
	UseCaseGeneralAnnouncements,
	UseCaseMultiple,
}

// RequestStatuses lists every request status.
var RequestStatuses = []string{RequestPending, RequestApproved, RequestRejected}

var orgTypeLabels = map[string]string{
	OrgTypeSchool:          "School",
	OrgTypeChurch:          "Church",
	OrgTypeTownHall:        "Town Hall",
	OrgTypeCommunityCenter: "Community Center",
	OrgTypeNonProfit:       "Non-Profit",
	OrgTypeBusiness:        "Business",
	OrgTypeOther:           "Other",
}

var useCaseLabels = map[string]string{
	UseCaseEmergencyAlerts:      "Emergency Alerts",
	UseCaseEventNotifications:   "Event Notifications",
	UseCaseScheduleChanges:      "Schedule Changes",
	UseCaseGeneralAnnouncements: "General Announcements",
	UseCaseMultiple:             "Multiple Use Cases",
}

// IsOrgType reports whether s is one of the selectable organization types.
func IsOrgType(s string) bool {
	_, ok := orgTypeLabels[s]
	return ok
}

// IsUseCase reports whether s is one of the selectable use cases.
func IsUseCase(s string) bool {
	_, ok := useCaseLabels[s]
	return ok
}

// IsRequestStatus reports whether s is a known request status.
func IsRequestStatus(s string) bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// OrgTypeLabel returns the display label for an org type. Custom types
// (entered through "other") are returned unchanged.
func OrgTypeLabel(s string) string {
	if l, ok := orgTypeLabels[s]; ok {
		return l
	}
	return s
}

// UseCaseLabel returns the display label for a use case.
func UseCaseLabel(s string) string {
	if l, ok := useCaseLabels[s]; ok {
		return l
	}
	return s
}

// Address is the structured postal address from the signup form.
type Address struct {
	Street string `bson:"street" json:"street"`
	City   string `bson:"city" json:"city"`
	State  string `bson:"state" json:"state"`
	Zip    string `bson:"zip" json:"zip"`
}

// Full renders the address on one line: "street, city, state zip".
func (a Address) Full() string {
	return a.Street + ", " + a.City + ", " + a.State + " " + a.Zip
}

// OrganizationRequest is one prospective customer's signup submission.
// Document keys are camelCase because reporting and export tooling reads them.
type OrganizationRequest struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	OrgName         string             `bson:"orgName" json:"orgName"`
	OrgNameCI       string             `bson:"orgNameCI" json:"-"`
	OrgType         string             `bson:"orgType" json:"orgType"`
	OriginalOrgType string             `bson:"originalOrgType" json:"originalOrgType"`
	OrgSize         int                `bson:"orgSize" json:"orgSize"`
	Address         Address            `bson:"address" json:"address"`
	OrgAddress      string             `bson:"orgAddress" json:"orgAddress"`
	ContactName     string             `bson:"contactName" json:"contactName"`
	OfficeEmail     string             `bson:"officeEmail" json:"officeEmail"`
	ContactEmail    string             `bson:"contactEmail" json:"contactEmail"`
	ContactPhone    string             `bson:"contactPhone" json:"contactPhone"`
	ExpectedUsage   int                `bson:"expectedUsage" json:"expectedUsage"`
	UseCase         string             `bson:"useCase" json:"useCase"`
	AdditionalInfo  string             `bson:"additionalInfo,omitempty" json:"additionalInfo,omitempty"`

	Status      string    `bson:"status" json:"status"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`

	ApprovedAt      *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	ApprovedBy      string     `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	RejectedAt      *time.Time `bson:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
	RejectedBy      string     `bson:"rejectedBy,omitempty" json:"rejectedBy,omitempty"`
	RejectionReason string     `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`

	// Stamped on approval so the request shows the trial it granted.
	CurrentTier    string     `bson:"currentTier,omitempty" json:"currentTier,omitempty"`
	TrialStartDate *time.Time `bson:"trialStartDate,omitempty" json:"trialStartDate,omitempty"`
	TrialEndDate   *time.Time `bson:"trialEndDate,omitempty" json:"trialEndDate,omitempty"`
}

// NotifyEmail is where applicant notifications go: the office email when
// given, otherwise the contact email.
func (r OrganizationRequest) NotifyEmail() string {
	if r.OfficeEmail != "" {
		return r.OfficeEmail
	}
	return r.ContactEmail
}

// Resolution describes the single pending → approved|rejected transition
// applied to a request with a conditional update.
type Resolution struct {
	Status string
	At     time.Time
	By     string

	// Rejection only.
	Reason string

	// Approval only.
	Tier       string
	TrialStart time.Time
	TrialEnd   time.Time
}
