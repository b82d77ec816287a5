package remind

import (
	"context"
	"fmt"
	"log/slog"

	"ytplan/internal/apperr"
)

// Notifier delivers a rendered message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher renders notices and hands them to a Notifier.
type Dispatcher struct {
	Notifier Notifier

	// DryRun renders and logs every message without sending.
	DryRun bool
	// Enabled turns email delivery on. A disabled dispatcher behaves like a
	// dry run.
	Enabled bool

	SheetURL string
	Playlist string
	Logger   *slog.Logger
}

// Report describes what a dispatch did.
type Report struct {
	Notices  []Notice
	Messages []Message
	Sent     int
	// NoEmail lists participants behind schedule who have no address.
	NoEmail []string
	DryRun  bool
}

// Dispatch sends one message per notice. The first failed send aborts the
// remaining deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, notices []Notice) (Report, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := Report{Notices: notices, DryRun: d.DryRun || !d.Enabled}
	if !report.DryRun && d.Notifier == nil {
		return report, apperr.Configf("email_enabled", "email is enabled but no notifier is configured")
	}

	for _, n := range notices {
		msg, err := Render(n, d.Playlist, d.SheetURL)
		if err != nil {
			return report, fmt.Errorf("render reminder for %s: %w", n.Participant.Name, err)
		}
		report.Messages = append(report.Messages, msg)

		log := logger.With(
			"participant", n.Participant.Name,
			"deficit", n.Deficit,
			"expected", n.Expected,
			"actual", n.Actual,
		)
		if msg.To == "" {
			log.Warn("participant is behind schedule but has no email address")
			report.NoEmail = append(report.NoEmail, n.Participant.Name)
			continue
		}
		if report.DryRun {
			log.Info("reminder not sent", "to", msg.To, "subject", msg.Subject,
				"overdue", overdueTitles(n.Overdue), "dry_run", d.DryRun, "email_enabled", d.Enabled)
			continue
		}

		if err := d.Notifier.Send(ctx, msg); err != nil {
			return report, apperr.Transient("smtp", "send", fmt.Errorf("reminder to %s: %w", msg.To, err))
		}
		report.Sent++
		log.Info("reminder sent", "to", msg.To)
	}
	return report, nil
}
