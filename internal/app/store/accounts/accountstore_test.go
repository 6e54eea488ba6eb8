package accountstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/gateway"
	accountstore "github.com/dalemusser/chimeo/internal/app/store/accounts"
	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/dalemusser/chimeo/internal/testutil"
)

func trialAccount(email string, start time.Time) models.UserAccount {
	end := start.Add(models.TrialLength)
	return models.UserAccount{
		Email:              email,
		OrganizationName:   "Oak St Church",
		OrganizationType:   models.OrgTypeChurch,
		CurrentTier:        models.TierPremiumTrial,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialStartDate:     &start,
		TrialEndDate:       &end,
		CreatedAt:          start,
		LastLoginAt:        start,
		UpdatedAt:          start,
	}
}

func TestStore_UpsertTrial_KeepsCreatedAt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if _, err := store.UpsertTrial(ctx, trialAccount("Pastor@OakSt.org", first)); err != nil {
		t.Fatalf("UpsertTrial: %v", err)
	}

	second := first.Add(48 * time.Hour)
	got, err := store.UpsertTrial(ctx, trialAccount("pastor@oakst.org", second))
	if err != nil {
		t.Fatalf("UpsertTrial again: %v", err)
	}
	if got.Email != "pastor@oakst.org" {
		t.Errorf("Email = %q, want normalized", got.Email)
	}
	if !got.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first)
	}
	if !got.TrialStartDate.Equal(second) {
		t.Errorf("TrialStartDate = %v, want %v", got.TrialStartDate, second)
	}
}

func TestStore_ExpireTrial_Boundaries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fx.CreateTrialAccount(ctx, "hall@vets.org", end)

	ok, err := store.ExpireTrial(ctx, "hall@vets.org", end.Add(-time.Second))
	if err != nil || ok {
		t.Fatalf("before end: ok=%v err=%v", ok, err)
	}

	ok, err = store.ExpireTrial(ctx, "hall@vets.org", end.Add(time.Second))
	if err != nil || !ok {
		t.Fatalf("after end: ok=%v err=%v", ok, err)
	}

	ok, err = store.ExpireTrial(ctx, "hall@vets.org", end.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("second expire should be a no-op: ok=%v err=%v", ok, err)
	}

	got, err := store.Get(ctx, "hall@vets.org")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentTier != models.TierTrialExpired || got.SubscriptionStatus != models.SubscriptionTrialExpired {
		t.Errorf("unexpected tier/status: %s/%s", got.CurrentTier, got.SubscriptionStatus)
	}
	if got.TrialExpiredAt == nil || !got.TrialExpiredAt.Equal(end.Add(time.Second)) {
		t.Errorf("TrialExpiredAt = %v", got.TrialExpiredAt)
	}
}

func TestStore_SetTierAndTouchLogin_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.SetTier(ctx, "ghost@x.org", models.TierPro, models.SubscriptionActive, time.Now()); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("SetTier: expected ErrNotFound, got %v", err)
	}
	if err := store.TouchLogin(ctx, "ghost@x.org", time.Now()); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("TouchLogin: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "ghost@x.org"); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListLapsedTrials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fx.CreateTrialAccount(ctx, "lapsed@x.org", now.Add(-time.Hour))
	fx.CreateTrialAccount(ctx, "live@x.org", now.Add(time.Hour))

	lapsed, err := store.ListLapsedTrials(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListLapsedTrials: %v", err)
	}
	if len(lapsed) != 1 || lapsed[0].Email != "lapsed@x.org" {
		t.Errorf("unexpected lapsed accounts: %+v", lapsed)
	}

	n, err := store.CountByTier(ctx, models.TierPremiumTrial)
	if err != nil {
		t.Fatalf("CountByTier: %v", err)
	}
	if n != 2 {
		t.Errorf("CountByTier = %d, want 2", n)
	}
}
