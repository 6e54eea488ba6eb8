// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/chimeo/internal/app/features/errors"
	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

const pageSize = 50

const dateLayout = "2006-01-02"

// ServeList handles GET /admin/audit. Filters: category, eventType,
// requestId, email, start_date and end_date (YYYY-MM-DD, UTC), page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	category := strings.TrimSpace(query.Get(r, "category"))
	eventType := strings.TrimSpace(query.Get(r, "eventType"))
	requestID := strings.TrimSpace(query.Get(r, "requestId"))
	email := models.NormalizeEmail(query.Get(r, "email"))
	startDate := strings.TrimSpace(query.Get(r, "start_date"))
	endDate := strings.TrimSpace(query.Get(r, "end_date"))

	if category != "" && eventTypesForCategory(category) == nil {
		uierrors.WriteJSON(w, http.StatusUnprocessableEntity, uierrors.Body{Error: "Unknown category.", Invalid: []string{"category"}})
		return
	}

	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:     category,
		EventType:    eventType,
		RequestID:    requestID,
		AccountEmail: email,
		Limit:        pageSize,
		Offset:       int64((page - 1) * pageSize),
	}

	var invalid []string
	if startDate != "" {
		if t, err := time.Parse(dateLayout, startDate); err == nil {
			filter.StartTime = &t
		} else {
			invalid = append(invalid, "start_date")
		}
	}
	if endDate != "" {
		if t, err := time.Parse(dateLayout, endDate); err == nil {
			// End of day
			endOfDay := t.Add(24*time.Hour - time.Nanosecond)
			filter.EndTime = &endOfDay
		} else {
			invalid = append(invalid, "end_date")
		}
	}
	if len(invalid) > 0 {
		uierrors.WriteJSON(w, http.StatusUnprocessableEntity, uierrors.Body{Error: "Dates must be YYYY-MM-DD.", Invalid: invalid})
		return
	}

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err, "A database error occurred.")
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events", err, "A database error occurred.")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Events:       events,
		Category:     category,
		EventType:    eventType,
		RequestID:    requestID,
		AccountEmail: email,
		StartDate:    startDate,
		EndDate:      endDate,
		Categories:   allCategories(),
		EventTypes:   eventTypesForCategory(category),
		Page:         page,
		TotalPages:   totalPages,
		Total:        total,
		HasPrev:      page > 1,
		HasNext:      page < totalPages,
	})
}
