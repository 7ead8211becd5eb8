package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/metrics"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/records"
)

var (
	operator = access.Identity{Subject: "op", Role: access.RoleOperator}
	asOf     = civil.Date{Year: 2024, Month: 3, Day: 1}
)

type fakeTargets struct {
	rows []models.MemberDelinquency
	err  error
}

func (f fakeTargets) Targets(_ context.Context, caller access.Identity, _ civil.Date) ([]models.MemberDelinquency, error) {
	if err := access.Authorize(caller, access.OpReminderSend); err != nil {
		return nil, err
	}
	return f.rows, f.err
}

type sent struct {
	ch        ports.Channel
	recipient string
	subject   string
	body      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]string
}

func (n *fakeNotifier) Send(_ context.Context, ch ports.Channel, recipient, subject, body string) (bool, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if info, ok := n.fail[recipient]; ok {
		return false, info
	}
	n.sent = append(n.sent, sent{ch, recipient, subject, body})
	return true, "OK"
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []records.ReminderLog
	err  error
}

func (a *fakeAudit) LogReminder(_ context.Context, r records.ReminderLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, r)
	return a.err
}

func strptr(s string) *string { return &s }

func row(name string, email, phone *string, amounts ...int64) models.MemberDelinquency {
	r := models.MemberDelinquency{
		Member:    models.Member{ID: "id-" + name, Name: name, Email: email, Phone: phone},
		TotalOwed: decimal.Zero,
	}
	for i, a := range amounts {
		p := models.Period{Year: 2024, Month: time.Month(1 + i)}
		r.Dues = append(r.Dues, models.Due{Period: p, DueDate: p.DueDate(), Amount: decimal.NewFromInt(a)})
		r.TotalOwed = r.TotalOwed.Add(decimal.NewFromInt(a))
		r.OverdueDue++
	}
	return r
}

func TestSendEmailSummary(t *testing.T) {
	targets := fakeTargets{rows: []models.MemberDelinquency{
		row("Ana", strptr("ana@example.org"), nil, 100, 100),
		row("Bruno", nil, strptr("+5493415550000"), 50),
		row("Carla", strptr("bounce@example.org"), nil, 80),
	}}
	n := &fakeNotifier{fail: map[string]string{"bounce@example.org": "550 mailbox unavailable"}}
	audit := &fakeAudit{}
	m := metrics.New(prometheus.NewRegistry())

	d := NewDispatcher(targets, n, audit, zerolog.Nop(), m, Config{Association: "ACP Rosario", Concurrency: 2})
	sum, err := d.Send(context.Background(), operator, ports.ChannelEmail, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, sum.Failures, 2)
	assert.Equal(t, Failure{MemberID: "id-Bruno", Member: "Bruno", Info: "no contact"}, sum.Failures[0])
	assert.Equal(t, "550 mailbox unavailable", sum.Failures[1].Info)

	require.Len(t, n.sent, 1)
	msg := n.sent[0]
	assert.Equal(t, "ana@example.org", msg.recipient)
	assert.Equal(t, subject, msg.subject)
	assert.Contains(t, msg.body, "Hello Ana,")
	assert.Contains(t, msg.body, "Total owed: $ 200.00")
	assert.Contains(t, msg.body, "ACP Rosario")

	assert.Len(t, audit.logs, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersSent.WithLabelValues("email", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemindersSent.WithLabelValues("email", "failed")))
}

func TestSendWhatsAppUsesPhone(t *testing.T) {
	targets := fakeTargets{rows: []models.MemberDelinquency{
		row("Bruno", strptr("b@example.org"), strptr("+5493415550000"), 50),
	}}
	n := &fakeNotifier{}
	d := NewDispatcher(targets, n, nil, zerolog.Nop(), nil, Config{})

	sum, err := d.Send(context.Background(), operator, ports.ChannelWhatsApp, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "+5493415550000", n.sent[0].recipient)
	assert.Equal(t, ports.ChannelWhatsApp, n.sent[0].ch)
}

func TestAuditFailureIsNotFatal(t *testing.T) {
	targets := fakeTargets{rows: []models.MemberDelinquency{row("Ana", strptr("ana@example.org"), nil, 100)}}
	audit := &fakeAudit{err: errors.New("mongo down")}
	d := NewDispatcher(targets, &fakeNotifier{}, audit, zerolog.Nop(), nil, Config{})

	sum, err := d.Send(context.Background(), operator, ports.ChannelEmail, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
}

func TestSendRejectsUnknownChannelAndViewer(t *testing.T) {
	d := NewDispatcher(fakeTargets{}, &fakeNotifier{}, nil, zerolog.Nop(), nil, Config{})

	_, err := d.Send(context.Background(), operator, ports.Channel("sms"), asOf)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = d.Send(context.Background(), access.Identity{Subject: "v", Role: access.RoleViewer}, ports.ChannelEmail, asOf)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSendWithNobodyOverdue(t *testing.T) {
	d := NewDispatcher(fakeTargets{}, &fakeNotifier{}, nil, zerolog.Nop(), nil, Config{})
	sum, err := d.Send(context.Background(), operator, ports.ChannelEmail, asOf)
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Zero(t, sum.Failed)
	assert.NotNil(t, sum.Failures)
}

func TestRender(t *testing.T) {
	r := row("Ana", nil, nil, 100)
	msg, err := render("ACP", r)
	require.NoError(t, err)
	assert.Contains(t, msg, "- Period: 2024-01 | Due date: 10/01/2024 | Amount: $ 100.00")
}
