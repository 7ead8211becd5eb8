package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"acp_dues/internal/models"
	"acp_dues/internal/ports"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/services/members"
	"acp_dues/internal/utils"
)

// ItemLog records the outcome of each imported row.
type ItemLog interface {
	LogItem(ctx context.Context, p records.LogParams)
}

// MembersProcessor upserts members from sheet rows. Rows with a document
// number update the member holding it; rows without one always insert.
type MembersProcessor struct {
	store ports.Store
	items ItemLog
	log   zerolog.Logger
}

func NewMembersProcessor(store ports.Store, items ItemLog, log zerolog.Logger) *MembersProcessor {
	return &MembersProcessor{store: store, items: items, log: log.With().Str("component", "import.members").Logger()}
}

func (p *MembersProcessor) Type() string { return "members" }

func (p *MembersProcessor) ProcessBatch(ctx context.Context, batch []ports.Row) (ports.BatchResult, error) {
	recordID := ports.ImportRecordID(ctx)
	var res ports.BatchResult

	for _, row := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		id, created, err := p.apply(ctx, row.Values)
		params := records.LogParams{
			ImportRecordID: recordID,
			ModelType:      records.ModelTypeMember,
			ModelID:        id,
			Row:            row.Line,
			Payload:        row.Values,
			Status:         records.StatusDone,
		}
		if err != nil {
			res.Failed++
			params.Status = records.StatusFailed
			params.Errors = err.Error()
			p.log.Debug().Err(err).Int("row", row.Line).Msg("row rejected")
		} else {
			res.OK++
			p.log.Debug().Int("row", row.Line).Str("member_id", id).Bool("created", created).Msg("row applied")
		}
		if p.items != nil {
			p.items.LogItem(ctx, params)
		}
	}

	p.log.Info().Str("import_record_id", recordID).Int("ok", res.OK).Int("failed", res.Failed).Msg("batch done")
	return res, nil
}

func (p *MembersProcessor) apply(ctx context.Context, v map[string]string) (string, bool, error) {
	in, err := parseMember(v)
	if err != nil {
		return "", false, err
	}

	m := models.Member{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		DocumentNumber: in.DocumentNumber,
		Active:         in.Active == nil || *in.Active,
		MonthlyDue:     in.MonthlyDue,
	}

	repo := p.store.Repos().Members
	if m.DocumentNumber == nil {
		return m.ID, true, repo.Create(ctx, &m)
	}
	created, err := repo.UpsertByDocument(ctx, &m)
	return m.ID, created, err
}

func parseMember(v map[string]string) (members.Input, error) {
	name := v["name"]
	if strings.TrimSpace(name) == "" {
		name = v["full_name"]
	}

	in := members.Input{
		Name:           name,
		Email:          utils.NullIfEmpty(v["email"]),
		Phone:          utils.NullIfEmpty(v["phone"]),
		DocumentNumber: utils.NullIfEmpty(v["document_number"]),
	}

	due, err := decimal.NewFromString(utils.NormalizeAmount(v["monthly_due"]))
	if err != nil {
		return in, fmt.Errorf("monthly_due %q is not a number", v["monthly_due"])
	}
	in.MonthlyDue = due

	if raw := strings.TrimSpace(v["active"]); raw != "" {
		active, ok := utils.ParseBoolLoose(raw)
		if !ok {
			return in, fmt.Errorf("active %q is not a yes/no value", raw)
		}
		in.Active = &active
	}

	return members.Normalize(in)
}
