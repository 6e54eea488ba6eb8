package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/store/audit"
	"github.com/dalemusser/chimeo/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := audit.Event{
		Category:  audit.CategoryRequest,
		EventType: audit.EventRequestApproved,
		Actor:     "admin@chimeo.test",
		RequestID: "65f0c0ffee0000000000abcd",
		Success:   true,
	}
	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.ForRequest(ctx, "65f0c0ffee0000000000abcd", 10)
	if err != nil {
		t.Fatalf("ForRequest failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestStore_Query_FiltersAndOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Truncate(time.Millisecond)
	events := []audit.Event{
		{Timestamp: base, Category: audit.CategoryTrial, EventType: audit.EventTrialProvisioned, AccountEmail: "a@x.org", Success: true},
		{Timestamp: base.Add(time.Minute), Category: audit.CategoryTrial, EventType: audit.EventTrialExpired, AccountEmail: "a@x.org", Success: true},
		{Timestamp: base.Add(2 * time.Minute), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Actor: "admin@x.org", Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	trial, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryTrial})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(trial) != 2 {
		t.Fatalf("expected 2 trial events, got %d", len(trial))
	}
	if trial[0].EventType != audit.EventTrialExpired {
		t.Errorf("expected newest first, got %s", trial[0].EventType)
	}

	start := base.Add(30 * time.Second)
	n, err := store.CountByFilter(ctx, audit.QueryFilter{AccountEmail: "a@x.org", StartTime: &start})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event after start, got %d", n)
	}
}
