// Package reminders sends overdue-dues reminders to delinquent members over
// one channel. One member's failure never stops the batch.
package reminders

import (
	"context"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/metrics"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/records"
)

type Targets interface {
	Targets(ctx context.Context, caller access.Identity, asOf civil.Date) ([]models.MemberDelinquency, error)
}

type AuditLog interface {
	LogReminder(ctx context.Context, r records.ReminderLog) error
}

type Failure struct {
	MemberID string `json:"member_id"`
	Member   string `json:"member"`
	Info     string `json:"info"`
}

type Summary struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures"`
}

type Dispatcher struct {
	targets     Targets
	notifier    ports.Notifier
	audit       AuditLog
	log         zerolog.Logger
	metrics     *metrics.Metrics
	association string
	concurrency int
}

type Config struct {
	Association string
	Concurrency int
}

func NewDispatcher(targets Targets, notifier ports.Notifier, audit AuditLog, log zerolog.Logger, m *metrics.Metrics, cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		targets:     targets,
		notifier:    notifier,
		audit:       audit,
		log:         log.With().Str("component", "reminders").Logger(),
		metrics:     m,
		association: cfg.Association,
		concurrency: cfg.Concurrency,
	}
}

type outcome struct {
	ok   bool
	info string
}

// Send notifies every member delinquent as of asOf and summarizes the
// results in member-name order.
func (d *Dispatcher) Send(ctx context.Context, caller access.Identity, ch ports.Channel, asOf civil.Date) (Summary, error) {
	if !ch.Valid() {
		return Summary{}, apperr.Validation("unknown channel %q", ch)
	}

	rows, err := d.targets.Targets(ctx, caller, asOf)
	if err != nil {
		return Summary{}, err
	}

	results := make([]outcome, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			results[i] = d.sendOne(gctx, caller, ch, asOf, row)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Failures: []Failure{}}
	for i, r := range results {
		if r.ok {
			sum.Sent++
			continue
		}
		sum.Failed++
		sum.Failures = append(sum.Failures, Failure{
			MemberID: rows[i].Member.ID,
			Member:   rows[i].Member.Name,
			Info:     r.info,
		})
	}

	d.log.Info().
		Str("channel", string(ch)).
		Str("as_of", asOf.String()).
		Int("sent", sum.Sent).
		Int("failed", sum.Failed).
		Str("by", caller.Subject).
		Msg("reminders dispatched")

	return sum, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, caller access.Identity, ch ports.Channel, asOf civil.Date, row models.MemberDelinquency) outcome {
	recipient := contact(ch, row.Member)

	var res outcome
	switch {
	case recipient == "":
		res = outcome{info: "no contact"}
	default:
		msg, err := render(d.association, row)
		if err != nil {
			res = outcome{info: "render: " + err.Error()}
			break
		}
		ok, info := d.notifier.Send(ctx, ch, recipient, subject, msg)
		res = outcome{ok: ok, info: info}
	}

	d.metrics.ObserveReminder(string(ch), res.ok)
	if !res.ok {
		d.log.Warn().
			Str("member_id", row.Member.ID).
			Str("channel", string(ch)).
			Err(apperr.Notification(res.info)).
			Msg("reminder not delivered")
	}

	if d.audit != nil {
		err := d.audit.LogReminder(context.WithoutCancel(ctx), records.ReminderLog{
			MemberID:  row.Member.ID,
			Channel:   string(ch),
			Recipient: recipient,
			AsOf:      asOf.String(),
			TotalOwed: row.TotalOwed.StringFixed(2),
			OK:        res.ok,
			Info:      res.info,
			SentBy:    caller.Subject,
		})
		if err != nil {
			d.log.Warn().Err(err).Str("member_id", row.Member.ID).Msg("reminder log not written")
		}
	}
	return res
}

func contact(ch ports.Channel, m models.Member) string {
	var v *string
	switch ch {
	case ports.ChannelEmail:
		v = m.Email
	case ports.ChannelWhatsApp:
		v = m.Phone
	}
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
