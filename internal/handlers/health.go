package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type healthResp struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResp{OK: true}
	if h.Check != nil {
		if err := h.Check(ctx); err != nil {
			resp.OK = false
			resp.Errors = strings.Split(err.Error(), "\n")
		}
	}

	code := http.StatusOK
	if !resp.OK {
		code = http.StatusInternalServerError
	}
	h.JSON(w, code, resp)
}
