package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"github.com/dalemusser/chimeo/internal/app/store/memstore"
	"github.com/dalemusser/chimeo/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Notifier records every Send.
type Notifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *Notifier) Send(_ context.Context, to, template string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, template+":"+to)
	return nil
}

// Sent returns "template:recipient" for every send so far.
func (n *Notifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

// Onboarding is a wired onboarding service over the in-memory backend.
type Onboarding struct {
	Services *onboarding.Services
	Store    *memstore.Backend
	Notifier *Notifier
	Clock    *Clock
}

// NewOnboarding builds services at a fixed clock starting at start.
func NewOnboarding(t *testing.T, start time.Time) *Onboarding {
	t.Helper()
	o := &Onboarding{
		Store:    memstore.New(),
		Notifier: &Notifier{},
		Clock:    NewClock(start),
	}
	o.Services = onboarding.New(onboarding.Deps{
		Requests: o.Store.Requests,
		Accounts: o.Store.Accounts,
		Queue:    o.Store.Expirations,
		Notifier: o.Notifier,
		Audit:    auditlog.New(o.Store.Audit, zap.NewNop(), auditlog.Config{}),
		Logger:   zap.NewNop(),
		Now:      o.Clock.Now,
	})
	t.Cleanup(o.Services.Trials.Stop)
	return o
}

// ValidFormJSON is a complete submission body for orgName.
func ValidFormJSON(orgName, contactEmail string) string {
	return `{
		"orgName": "` + orgName + `",
		"orgType": "church",
		"orgSize": 120,
		"street": "12 Oak St",
		"city": "Springfield",
		"state": "IL",
		"zip": "62701",
		"contactName": "Jordan Lee",
		"officeEmail": "office@oakst.org",
		"contactEmail": "` + contactEmail + `",
		"contactPhone": "555-0100",
		"expectedUsage": "40",
		"useCase": "emergency-alerts"
	}`
}
