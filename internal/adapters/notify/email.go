package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"acp_dues/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends plain-text mail over SMTP. smtp.SendMail upgrades with
// STARTTLS when the server offers it, which PLAIN auth requires.
type Email struct {
	cfg      config.SMTPSettings
	sendMail sendMailFunc
	now      func() time.Time
}

func NewEmail(cfg config.SMTPSettings) *Email {
	return &Email{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (e *Email) configured() bool {
	return e.cfg.Enabled && e.cfg.Host != "" && e.cfg.User != "" && e.cfg.Pass != ""
}

func (e *Email) Send(ctx context.Context, to, subject, body string) (bool, string) {
	if !e.configured() {
		return false, "smtp not configured"
	}
	if err := ctx.Err(); err != nil {
		return false, err.Error()
	}

	addr, err := mail.ParseAddress(to)
	if err != nil {
		return false, fmt.Sprintf("invalid email %q", to)
	}

	from := e.cfg.From
	if from == "" {
		from = e.cfg.User
	}

	msg := e.compose(from, addr.Address, subject, body)
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, e.cfg.Host)
	if err := e.sendMail(net.JoinHostPort(e.cfg.Host, e.cfg.Port), auth, from, []string{addr.Address}, msg); err != nil {
		return false, err.Error()
	}
	return true, "OK"
}

func (e *Email) compose(from, to, subject, body string) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", e.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}
