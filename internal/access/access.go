// Package access decides what a caller may do. Authorization is a pure
// function of the caller's identity and the requested operation.
package access

import (
	"acp_dues/internal/apperr"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Identity is passed explicitly into every service operation.
type Identity struct {
	Subject string
	Role    Role
}

type Operation string

const (
	OpMemberRead     Operation = "member.read"
	OpMemberWrite    Operation = "member.write"
	OpMemberImport   Operation = "member.import"
	OpDueGenerate    Operation = "due.generate"
	OpDueRead        Operation = "due.read"
	OpDuePay         Operation = "due.pay"
	OpDueReverse     Operation = "due.reverse"
	OpReportRead     Operation = "report.read"
	OpReminderSend   Operation = "reminder.send"
	OpLedgerRead     Operation = "ledger.read"
	OpLedgerWrite    Operation = "ledger.write"
	OpAttachmentRead Operation = "attachment.read"
)

var readOnly = map[Operation]bool{
	OpMemberRead:     true,
	OpDueRead:        true,
	OpReportRead:     true,
	OpLedgerRead:     true,
	OpAttachmentRead: true,
}

// System is the identity used by the command line tools.
func System() Identity {
	return Identity{Subject: "cli", Role: RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Authorize returns nil when id may perform op, otherwise an ErrForbidden.
func Authorize(id Identity, op Operation) error {
	switch id.Role {
	case RoleAdmin, RoleOperator:
		return nil
	case RoleViewer:
		if readOnly[op] {
			return nil
		}
		return apperr.Forbidden("role %q may not %s", id.Role, op)
	default:
		return apperr.Forbidden("unknown role %q", id.Role)
	}
}
