package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"acp_dues/internal/models"
	"acp_dues/internal/services/dues"
)

type generateBody struct {
	Period string `json:"period"`
}

func (h *Handlers) GenerateDues(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if !h.decode(w, r, &body) {
		return
	}
	n, err := h.Dues.Generate(r.Context(), caller(r), body.Period)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"period": body.Period, "created": n})
}

func (h *Handlers) ListPeriod(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = models.PeriodOf(h.Clock.Today()).String()
	}
	sum, err := h.Dues.ListPeriod(r.Context(), caller(r), period)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toPeriod(sum))
}

func (h *Handlers) GetDue(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dues.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	dto := toDue(d)
	dto.Status = string(d.Status(h.Clock.Today()))
	h.JSON(w, http.StatusOK, dto)
}

// PayDue takes an optional multipart `receipt` file.
func (h *Handlers) PayDue(w http.ResponseWriter, r *http.Request) {
	var receipt *dues.Receipt
	if isMultipart(r) {
		if !h.parseMultipart(w, r) {
			return
		}
		f, fh, err := r.FormFile("receipt")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			h.badRequest(w, "receipt: %v", err)
			return
		default:
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				h.badRequest(w, "read receipt: %v", err)
				return
			}
			receipt = &dues.Receipt{Name: fh.Filename, Data: data}
		}
	}

	res, err := h.Dues.Pay(r.Context(), caller(r), chi.URLParam(r, "id"), receipt)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, paymentDTO{
		Due:             toDue(res.Due),
		LedgerEntry:     toEntry(res.LedgerEntry),
		Attachment:      toAttachment(res.Attachment),
		ReceiptRejected: res.ReceiptRejected,
		Warning:         res.Warning,
	})
}

func (h *Handlers) ReverseDue(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dues.Reverse(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, reversalDTO{
		Due:                toDue(res.Due),
		WasPaid:            res.WasPaid,
		RemovedEntryID:     res.RemovedEntryID,
		RemovedAttachments: res.RemovedAttachments,
		LedgerEntryMissing: res.LedgerEntryMissing,
		Warning:            res.Warning,
	})
}
