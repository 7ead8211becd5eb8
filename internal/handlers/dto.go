package handlers

import (
	"time"

	"cloud.google.com/go/civil"

	"acp_dues/internal/models"
	"acp_dues/internal/services/dues"
)

// Amounts go out as fixed two-decimal strings, dates as YYYY-MM-DD.

type memberDTO struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          *string   `json:"email"`
	Phone          *string   `json:"phone"`
	DocumentNumber *string   `json:"document_number"`
	Active         bool      `json:"active"`
	MonthlyDue     string    `json:"monthly_due"`
	CreatedAt      time.Time `json:"created_at"`
}

func toMember(m models.Member) memberDTO {
	return memberDTO{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		Phone:          m.Phone,
		DocumentNumber: m.DocumentNumber,
		Active:         m.Active,
		MonthlyDue:     m.MonthlyDue.StringFixed(2),
		CreatedAt:      m.CreatedAt,
	}
}

type dueDTO struct {
	ID         string  `json:"id"`
	MemberID   string  `json:"member_id"`
	MemberName string  `json:"member_name,omitempty"`
	Period     string  `json:"period"`
	Amount     string  `json:"amount"`
	DueDate    string  `json:"due_date"`
	Paid       bool    `json:"paid"`
	PaidOn     *string `json:"paid_on"`
	Note       *string `json:"note,omitempty"`
	Status     string  `json:"status,omitempty"`
}

func toDue(d models.Due) dueDTO {
	return dueDTO{
		ID:       d.ID,
		MemberID: d.MemberID,
		Period:   d.Period.String(),
		Amount:   d.Amount.StringFixed(2),
		DueDate:  d.DueDate.String(),
		Paid:     d.Paid,
		PaidOn:   dateString(d.PaidOn),
		Note:     d.Note,
	}
}

func dateString(d *civil.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

type periodDTO struct {
	Period      string   `json:"period"`
	Dues        []dueDTO `json:"dues"`
	Total       string   `json:"total"`
	Collected   string   `json:"collected"`
	Outstanding string   `json:"outstanding"`
}

func toPeriod(s dues.PeriodSummary) periodDTO {
	out := periodDTO{
		Period:      s.Period.String(),
		Dues:        make([]dueDTO, 0, len(s.Dues)),
		Total:       s.Total.StringFixed(2),
		Collected:   s.Collected.StringFixed(2),
		Outstanding: s.Outstanding.StringFixed(2),
	}
	for _, d := range s.Dues {
		dto := toDue(d.Due)
		dto.MemberName = d.MemberName
		dto.Status = string(d.Status)
		out.Dues = append(out.Dues, dto)
	}
	return out
}

type categoryDTO struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type receiptDTO struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type entryDTO struct {
	ID          string      `json:"id"`
	Direction   string      `json:"direction"`
	Category    categoryDTO `json:"category"`
	Origin      string      `json:"origin"`
	MemberID    *string     `json:"member_id"`
	DueID       *string     `json:"due_id"`
	Amount      string      `json:"amount"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Receipt     *receiptDTO `json:"receipt,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func toEntry(e models.LedgerEntry) entryDTO {
	out := entryDTO{
		ID:          e.ID,
		Direction:   string(e.Direction),
		Category:    categoryDTO{Kind: string(e.Category.Kind), Value: e.Category.Value},
		Origin:      string(e.Origin),
		MemberID:    e.MemberID,
		DueID:       e.DueID,
		Amount:      e.Amount.StringFixed(2),
		Date:        e.Date.String(),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
	if e.Receipt != nil {
		out.Receipt = &receiptDTO{Type: e.Receipt.Type, Number: e.Receipt.Number}
	}
	return out
}

type attachmentDTO struct {
	ID            string    `json:"id"`
	FileName      string    `json:"file_name"`
	DueID         *string   `json:"due_id,omitempty"`
	LedgerEntryID *string   `json:"ledger_entry_id,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

func toAttachment(a *models.Attachment) *attachmentDTO {
	if a == nil {
		return nil
	}
	return &attachmentDTO{ID: a.ID, FileName: a.FileName, DueID: a.DueID, LedgerEntryID: a.LedgerEntryID, UploadedAt: a.UploadedAt}
}

type paymentDTO struct {
	Due             dueDTO         `json:"due"`
	LedgerEntry     entryDTO       `json:"ledger_entry"`
	Attachment      *attachmentDTO `json:"attachment"`
	ReceiptRejected bool           `json:"receipt_rejected"`
	Warning         string         `json:"warning,omitempty"`
}

type reversalDTO struct {
	Due                dueDTO `json:"due"`
	WasPaid            bool   `json:"was_paid"`
	RemovedEntryID     string `json:"removed_entry_id,omitempty"`
	RemovedAttachments int    `json:"removed_attachments"`
	LedgerEntryMissing bool   `json:"ledger_entry_missing"`
	Warning            string `json:"warning,omitempty"`
}

type overdueDueDTO struct {
	Period  string `json:"period"`
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
}

type overdueDTO struct {
	MemberID    string          `json:"member_id"`
	Name        string          `json:"name"`
	TotalOwed   string          `json:"total_owed"`
	OverdueDues int             `json:"overdue_dues"`
	Dues        []overdueDueDTO `json:"dues"`
}

func toOverdue(row models.MemberDelinquency) overdueDTO {
	out := overdueDTO{
		MemberID:    row.Member.ID,
		Name:        row.Member.Name,
		TotalOwed:   row.TotalOwed.StringFixed(2),
		OverdueDues: row.OverdueDue,
		Dues:        make([]overdueDueDTO, 0, len(row.Dues)),
	}
	for _, d := range row.Dues {
		out.Dues = append(out.Dues, overdueDueDTO{Period: d.Period.String(), DueDate: d.DueDate.String(), Amount: d.Amount.StringFixed(2)})
	}
	return out
}

type periodOwedDTO struct {
	Period    string `json:"period"`
	TotalOwed string `json:"total_owed"`
}
