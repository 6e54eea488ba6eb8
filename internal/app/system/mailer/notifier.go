// internal/app/system/mailer/notifier.go
package mailer

import (
	"context"
	"sync"

	"github.com/dalemusser/chimeo/internal/app/system/metrics"
	"github.com/dalemusser/chimeo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Notifier renders templates and hands them to a Sender in the background.
// Send never blocks on delivery; Wait drains in-flight sends at shutdown.
type Notifier struct {
	sender   Sender
	siteName string
	baseURL  string
	metrics  *metrics.Metrics
	log      *zap.Logger

	wg sync.WaitGroup
}

func NewNotifier(sender Sender, siteName, baseURL string, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if siteName == "" {
		siteName = "Chimeo"
	}
	return &Notifier{sender: sender, siteName: siteName, baseURL: baseURL, metrics: m, log: logger}
}

// Send renders the template synchronously (so bad data is reported to the
// caller) and delivers it on its own goroutine. The delivery outlives the
// caller's context but is bounded by timeouts.Notify().
func (n *Notifier) Send(ctx context.Context, to, template string, data map[string]any) error {
	merged := map[string]any{KeySiteName: n.siteName, KeyBaseURL: n.baseURL}
	for k, v := range data {
		merged[k] = v
	}
	email, err := Render(template, merged)
	if err != nil {
		n.metrics.Notification(template, err)
		return err
	}
	email.To = to

	sendCtx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, timeouts.Notify())
		defer cancel()

		err := n.sender.Send(ctx, email)
		n.metrics.Notification(template, err)
		if err != nil {
			n.log.Warn("notification not delivered",
				zap.String("template", template),
				zap.String("to", to),
				zap.Error(err))
			return
		}
		n.log.Debug("notification sent",
			zap.String("template", template),
			zap.String("to", to))
	}()
	return nil
}

// Wait blocks until every in-flight send finishes or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
