package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/repository/records"
)

func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	if err := access.Authorize(caller(r), access.OpMemberRead); err != nil {
		h.Error(w, r, err)
		return
	}
	limit := intParam(r, "limit", 50)
	if limit == 0 || limit > 500 {
		limit = 50
	}
	items, total, err := h.Records.ListImportRecords(r.Context(), limit, intParam(r, "skip", 0))
	if err != nil {
		h.Error(w, r, apperr.Storage(err, "list import records"))
		return
	}
	if items == nil {
		items = []records.ImportRecord{}
	}
	h.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	if err := access.Authorize(caller(r), access.OpMemberRead); err != nil {
		h.Error(w, r, err)
		return
	}
	rec, err := h.Records.FindImportRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			err = apperr.Storage(err, "find import record")
		}
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, rec)
}
