// Package members is the member registry.
package members

import (
	"context"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"acp_dues/internal/access"
	"acp_dues/internal/apperr"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
	"acp_dues/internal/utils"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Input carries the editable member fields. Active defaults to true on create.
type Input struct {
	Name           string
	Email          *string
	Phone          *string
	DocumentNumber *string
	Active         *bool
	MonthlyDue     decimal.Decimal
}

type Service struct {
	store ports.Store
	files ports.FileStore
	log   zerolog.Logger
}

func NewService(store ports.Store, files ports.FileStore, log zerolog.Logger) *Service {
	return &Service{store: store, files: files, log: log.With().Str("component", "members").Logger()}
}

// Normalize validates in and returns it with text fields trimmed and blanks
// turned into nil.
func Normalize(in Input) (Input, error) {
	in.Name = utils.CollapseSpaces(in.Name)
	if in.Name == "" {
		return in, apperr.Validation("name is required")
	}
	if in.MonthlyDue.IsNegative() {
		return in, apperr.Validation("monthly due must not be negative")
	}
	in.MonthlyDue = in.MonthlyDue.Round(2)

	in.Email = trimmed(in.Email)
	if in.Email != nil {
		addr, err := mail.ParseAddress(*in.Email)
		if err != nil || addr.Address != *in.Email {
			return in, apperr.Validation("invalid email %q", *in.Email)
		}
	}

	in.Phone = trimmed(in.Phone)
	if in.Phone != nil {
		p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(*in.Phone)
		if !e164.MatchString(p) {
			return in, apperr.Validation("phone %q must be in E.164 format, e.g. +5493415550000", *in.Phone)
		}
		in.Phone = &p
	}

	in.DocumentNumber = trimmed(in.DocumentNumber)
	return in, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.NullIfEmpty(*s)
}

func (s *Service) Create(ctx context.Context, caller access.Identity, in Input) (models.Member, error) {
	if err := access.Authorize(caller, access.OpMemberWrite); err != nil {
		return models.Member{}, err
	}
	in, err := Normalize(in)
	if err != nil {
		return models.Member{}, err
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
	if err := s.store.Repos().Members.Create(ctx, &m); err != nil {
		return models.Member{}, err
	}

	s.log.Info().Str("member_id", m.ID).Str("by", caller.Subject).Msg("member created")
	return m, nil
}

func (s *Service) Update(ctx context.Context, caller access.Identity, id string, in Input) (models.Member, error) {
	if err := access.Authorize(caller, access.OpMemberWrite); err != nil {
		return models.Member{}, err
	}
	in, err := Normalize(in)
	if err != nil {
		return models.Member{}, err
	}

	var out models.Member
	err = s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		m, err := r.Members.Get(ctx, id)
		if err != nil {
			return err
		}
		m.Name, m.Email, m.Phone, m.DocumentNumber = in.Name, in.Email, in.Phone, in.DocumentNumber
		m.MonthlyDue = in.MonthlyDue
		if in.Active != nil {
			m.Active = *in.Active
		}
		if err := r.Members.Update(ctx, &m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return models.Member{}, err
	}

	s.log.Info().Str("member_id", id).Str("by", caller.Subject).Msg("member updated")
	return out, nil
}

func (s *Service) Get(ctx context.Context, caller access.Identity, id string) (models.Member, error) {
	if err := access.Authorize(caller, access.OpMemberRead); err != nil {
		return models.Member{}, err
	}
	return s.store.Repos().Members.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, caller access.Identity, f models.MemberFilter) ([]models.Member, error) {
	if err := access.Authorize(caller, access.OpMemberRead); err != nil {
		return nil, err
	}
	return s.store.Repos().Members.List(ctx, f)
}

// Delete removes the member with its dues and their attachments. Ledger
// entries stay, with their member and due references cleared. Stored files
// are deleted after commit, best-effort.
func (s *Service) Delete(ctx context.Context, caller access.Identity, id string) error {
	if err := access.Authorize(caller, access.OpMemberWrite); err != nil {
		return err
	}

	var handles []string
	err := s.store.InTx(ctx, func(ctx context.Context, r ports.Repos) error {
		handles = nil
		if _, err := r.Members.Get(ctx, id); err != nil {
			return err
		}

		dues, err := r.Dues.ListByMember(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range dues {
			atts, err := r.Attachments.ListByDue(ctx, d.ID)
			if err != nil {
				return err
			}
			for _, a := range atts {
				if err := r.Attachments.Delete(ctx, a.ID); err != nil {
					return err
				}
				handles = append(handles, a.Handle)
			}
		}

		if err := r.Ledger.DetachMember(ctx, id); err != nil {
			return err
		}
		if err := r.Dues.DeleteByMember(ctx, id); err != nil {
			return err
		}
		return r.Members.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, h := range handles {
		if err := s.files.Delete(context.WithoutCancel(ctx), h); err != nil {
			s.log.Warn().Err(err).Str("handle", h).Msg("file delete failed")
		}
	}
	s.log.Info().Str("member_id", id).Int("files", len(handles)).Str("by", caller.Subject).Msg("member deleted")
	return nil
}
