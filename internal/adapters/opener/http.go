package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/rs/zerolog"

	"acp_dues/internal/ports"
)

type HTTPOpener struct {
	Client *http.Client
	log    zerolog.Logger
}

func NewHTTPOpener(cli *http.Client, log zerolog.Logger) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	return &HTTPOpener{Client: cli, log: log.With().Str("opener", "http").Logger()}
}

func (h *HTTPOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, ports.Meta, error) {
	h.log.Debug().Str("url", rawURL).Msg("open")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		h.log.Warn().Int("status", resp.StatusCode).Str("url", rawURL).Msg("unexpected status")
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}

	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}

	return resp.Body, ports.Meta{
		Source:      "https",
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}
