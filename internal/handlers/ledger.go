package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"acp_dues/internal/models"
	"acp_dues/internal/services/ledger"
)

type entryBody struct {
	Direction     string          `json:"direction"`
	Category      string          `json:"category"`
	CategoryRef   string          `json:"category_ref"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	ReceiptType   string          `json:"receipt_type"`
	ReceiptNumber string          `json:"receipt_number"`
}

func (b entryBody) input() (ledger.EntryInput, error) {
	date, err := optDate(b.Date, "date")
	if err != nil {
		return ledger.EntryInput{}, err
	}
	in := ledger.EntryInput{
		Direction:   models.Direction(strings.ToLower(strings.TrimSpace(b.Direction))),
		Category:    models.TextCategory(b.Category),
		Amount:      b.Amount,
		Date:        date,
		Description: b.Description,
	}
	if strings.TrimSpace(b.CategoryRef) != "" {
		in.Category = models.RefCategory(b.CategoryRef)
	}
	if b.ReceiptType != "" || b.ReceiptNumber != "" {
		in.Receipt = &models.ReceiptDescriptor{Type: b.ReceiptType, Number: b.ReceiptNumber}
	}
	return in, nil
}

func (h *Handlers) ListLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := optDate(q.Get("from"), "from")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	to, err := optDate(q.Get("to"), "to")
	if err != nil {
		h.Error(w, r, err)
		return
	}

	l, err := h.Ledger.List(r.Context(), caller(r), models.LedgerFilter{
		Direction: models.Direction(q.Get("direction")),
		Origin:    models.Origin(q.Get("origin")),
		Category:  strings.TrimSpace(q.Get("category")),
		From:      from,
		To:        to,
	})
	if err != nil {
		h.Error(w, r, err)
		return
	}

	entries := make([]entryDTO, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, toEntry(e))
	}
	h.JSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"totals": map[string]string{
			"income":  l.Totals.Income.StringFixed(2),
			"expense": l.Totals.Expense.StringFixed(2),
			"balance": l.Totals.Balance.StringFixed(2),
		},
	})
}

// CreateLedgerEntry takes JSON, or multipart form fields of the same names
// plus an optional `file` kept as an attachment.
func (h *Handlers) CreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var (
		body entryBody
		file *ledger.File
	)
	if isMultipart(r) {
		if !h.parseMultipart(w, r) {
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
		if err != nil {
			h.badRequest(w, "amount must be a number")
			return
		}
		body = entryBody{
			Direction:     r.FormValue("direction"),
			Category:      r.FormValue("category"),
			CategoryRef:   r.FormValue("category_ref"),
			Amount:        amount,
			Date:          r.FormValue("date"),
			Description:   r.FormValue("description"),
			ReceiptType:   r.FormValue("receipt_type"),
			ReceiptNumber: r.FormValue("receipt_number"),
		}
		if f, fh, err := r.FormFile("file"); err == nil {
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				h.badRequest(w, "read file: %v", err)
				return
			}
			file = &ledger.File{Name: fh.Filename, Data: data}
		}
	} else if !h.decode(w, r, &body) {
		return
	}

	in, err := body.input()
	if err != nil {
		h.Error(w, r, err)
		return
	}
	in.File = file

	e, err := h.Ledger.CreateEntry(r.Context(), caller(r), in)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, toEntry(e))
}

func (h *Handlers) DeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteEntry(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetAttachment(w http.ResponseWriter, r *http.Request) {
	a, data, err := h.Ledger.GetAttachment(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, r, err)
		return
	}

	ct := mime.TypeByExtension(path.Ext(a.FileName))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.FileName}))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
