package models

import (
	"path"
	"strings"
	"time"
)

// AllowedReceiptExts lists the receipt extensions accepted on payment.
var AllowedReceiptExts = map[string]bool{
	"pdf":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// Attachment belongs to exactly one of a due or a ledger entry.
type Attachment struct {
	ID            string
	Handle        string
	FileName      string
	DueID         *string
	LedgerEntryID *string
	UploadedAt    time.Time
}

// ReceiptExt returns the lower-cased extension of name without the dot.
func ReceiptExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

func AllowedReceipt(name string) bool {
	return AllowedReceiptExts[ReceiptExt(name)]
}
