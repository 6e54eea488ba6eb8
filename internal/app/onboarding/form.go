package onboarding

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/htmlsanitize"
	"github.com/dalemusser/chimeo/internal/domain/models"
)

// Count is a form integer kept as text until validation. JSON clients may
// send it as a number or a string.
type Count string

func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Count(s)
		return nil
	}
	*c = Count(b)
	return nil
}

func (c Count) int() int {
	n, _ := strconv.Atoi(string(c))
	return n
}

// Form is the signup form as submitted. Every value is trimmed and stripped
// of markup before validation.
type Form struct {
	OrgName        string `json:"orgName" validate:"required,max=200"`
	OrgType        string `json:"orgType" validate:"required,orgtype"`
	OtherOrgType   string `json:"otherOrgType" validate:"required_if=OrgType other,max=200"`
	OrgSize        Count  `json:"orgSize" validate:"required,posint"`
	Street         string `json:"street" validate:"required,max=200"`
	City           string `json:"city" validate:"required,max=100"`
	State          string `json:"state" validate:"required,max=100"`
	Zip            string `json:"zip" validate:"required,max=20"`
	ContactName    string `json:"contactName" validate:"required,max=200"`
	OfficeEmail    string `json:"officeEmail" validate:"required,email"`
	ContactEmail   string `json:"contactEmail" validate:"required,email"`
	ContactPhone   string `json:"contactPhone" validate:"required,max=40"`
	ExpectedUsage  Count  `json:"expectedUsage" validate:"required,posint"`
	UseCase        string `json:"useCase" validate:"required,usecase"`
	AdditionalInfo string `json:"additionalInfo" validate:"max=4000"`
}

func (f Form) clean() Form {
	f.OrgName = htmlsanitize.PlainText(f.OrgName)
	f.OrgType = strings.TrimSpace(f.OrgType)
	f.OtherOrgType = htmlsanitize.PlainText(f.OtherOrgType)
	f.OrgSize = Count(strings.TrimSpace(string(f.OrgSize)))
	f.Street = htmlsanitize.PlainText(f.Street)
	f.City = htmlsanitize.PlainText(f.City)
	f.State = htmlsanitize.PlainText(f.State)
	f.Zip = htmlsanitize.PlainText(f.Zip)
	f.ContactName = htmlsanitize.PlainText(f.ContactName)
	f.OfficeEmail = strings.TrimSpace(f.OfficeEmail)
	f.ContactEmail = strings.TrimSpace(f.ContactEmail)
	f.ContactPhone = htmlsanitize.PlainText(f.ContactPhone)
	f.ExpectedUsage = Count(strings.TrimSpace(string(f.ExpectedUsage)))
	f.UseCase = strings.TrimSpace(f.UseCase)
	f.AdditionalInfo = htmlsanitize.PlainText(f.AdditionalInfo)
	return f
}

// request builds the pending record from a cleaned, validated form.
func (f Form) request(now time.Time) models.OrganizationRequest {
	orgType := f.OrgType
	if orgType == models.OrgTypeOther {
		orgType = f.OtherOrgType
	}
	addr := models.Address{Street: f.Street, City: f.City, State: f.State, Zip: f.Zip}

	return models.OrganizationRequest{
		OrgName:         f.OrgName,
		OrgType:         orgType,
		OriginalOrgType: f.OrgType,
		OrgSize:         f.OrgSize.int(),
		Address:         addr,
		OrgAddress:      addr.Full(),
		ContactName:     f.ContactName,
		OfficeEmail:     f.OfficeEmail,
		ContactEmail:    models.NormalizeEmail(f.ContactEmail),
		ContactPhone:    f.ContactPhone,
		ExpectedUsage:   f.ExpectedUsage.int(),
		UseCase:         f.UseCase,
		AdditionalInfo:  f.AdditionalInfo,
		Status:          models.RequestPending,
		SubmittedAt:     now,
	}
}
