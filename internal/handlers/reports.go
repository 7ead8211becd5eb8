package handlers

import (
	"net/http"

	"acp_dues/internal/ports"
)

func (h *Handlers) Overdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	rows, err := h.Delinquency.Overdue(r.Context(), caller(r), asOf)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	out := make([]overdueDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toOverdue(row))
	}
	h.JSON(w, http.StatusOK, map[string]any{"as_of": asOf.String(), "members": out})
}

func (h *Handlers) OverdueByPeriod(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	rows, err := h.Delinquency.OverdueByPeriod(r.Context(), caller(r), asOf)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	out := make([]periodOwedDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, periodOwedDTO{Period: row.Period.String(), TotalOwed: row.TotalOwed.StringFixed(2)})
	}
	h.JSON(w, http.StatusOK, map[string]any{"as_of": asOf.String(), "periods": out})
}

type remindersBody struct {
	Channel string `json:"channel"`
	AsOf    string `json:"as_of"`
}

func (h *Handlers) SendReminders(w http.ResponseWriter, r *http.Request) {
	var body remindersBody
	if !h.decode(w, r, &body) {
		return
	}
	asOf := h.Clock.Today()
	if d, err := optDate(body.AsOf, "as_of"); err != nil {
		h.Error(w, r, err)
		return
	} else if d != nil {
		asOf = *d
	}

	sum, err := h.Reminders.Send(r.Context(), caller(r), ports.Channel(body.Channel), asOf)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, sum)
}
