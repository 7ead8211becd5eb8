package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acp_dues/internal/access"
	"acp_dues/internal/adapters/filestore"
	"acp_dues/internal/clock"
	"acp_dues/internal/handlers"
	"acp_dues/internal/metrics"
	"acp_dues/internal/repository/memory"
	"acp_dues/internal/services/members"
	"acp_dues/internal/transport/auth"
)

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncPaid()

	h := &handlers.Handlers{
		Members: members.NewService(memory.New(), filestore.NewMemory(), zerolog.Nop()),
		Clock:   clock.Fixed(civil.Date{Year: 2024, Month: 3, Day: 1}),
		Logger:  zerolog.Nop(),
	}
	tokens := auth.NewTokens("secret")
	router := NewRouter(h, tokens, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), zerolog.Nop())

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, get("/health", "").Code)

	rr := get("/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "acp_dues_payments_recorded_total 1")

	assert.Equal(t, http.StatusUnauthorized, get("/members", "").Code)

	tok, err := tokens.Issue(access.Identity{Subject: "u1", Role: access.RoleViewer}, time.Hour)
	require.NoError(t, err)
	rr = get("/members", tok)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, get("/members/nope", tok).Code)
}
