package ports

import "context"

type ctxKey string

const CtxImportRecordID ctxKey = "import_record_id"

// Row is one data row of an import sheet. Line is the 1-based line or row
// number in the source, the header being line 1. Keys are normalized
// column titles.
type Row struct {
	Line   int
	Values map[string]string
}

type BatchResult struct {
	OK     int
	Failed int
}

// Processor applies a batch of rows. Per-row problems are counted in
// BatchResult; an error aborts the whole import.
type Processor interface {
	Type() string
	ProcessBatch(ctx context.Context, batch []Row) (BatchResult, error)
}

// ImportRecordID returns the import record id carried by ctx, if any.
func ImportRecordID(ctx context.Context) string {
	if s, ok := ctx.Value(CtxImportRecordID).(string); ok {
		return s
	}
	return ""
}
