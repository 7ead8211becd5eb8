package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"acp_dues/internal/config"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// WhatsApp sends messages through the Twilio Messages API.
type WhatsApp struct {
	cfg    config.WhatsAppSettings
	client *http.Client
}

func NewWhatsApp(cfg config.WhatsAppSettings, client *http.Client) *WhatsApp {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WhatsApp{cfg: cfg, client: client}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (w *WhatsApp) Send(ctx context.Context, to, body string) (bool, string) {
	if !w.cfg.Enabled {
		return false, "whatsapp not enabled"
	}
	if w.cfg.SID == "" || w.cfg.Token == "" || w.cfg.From == "" {
		return false, "whatsapp not configured"
	}
	if !e164.MatchString(to) {
		return false, fmt.Sprintf("invalid E.164 phone %q", to)
	}

	form := url.Values{}
	form.Set("From", withPrefix(w.cfg.From))
	form.Set("To", withPrefix(to))
	form.Set("Body", body)

	endpoint := strings.TrimSuffix(w.cfg.APIBase, "/") +
		"/2010-04-01/Accounts/" + url.PathEscape(w.cfg.SID) + "/Messages.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err.Error()
	}
	req.SetBasicAuth(w.cfg.SID, w.cfg.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, "OK"
	}

	var te twilioError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &te) == nil && te.Message != "" {
		return false, fmt.Sprintf("twilio %d: %s", te.Code, te.Message)
	}
	return false, fmt.Sprintf("twilio status %d", resp.StatusCode)
}

func withPrefix(n string) string {
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}
