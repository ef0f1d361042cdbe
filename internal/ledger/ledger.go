package ledger

import (
	"context"
	"errors"
	"time"

	"diffpos/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidScope     = errors.New("invalid visibility scope")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrDuplicateReceipt = errors.New("duplicate receipt number")
)

// Scope is the role-based visibility predicate, applied inside every read
// path of the ledger. It is a mandatory argument the ledger cannot ignore,
// so a new read path cannot forget the filter and a client cannot widen its
// own visibility.
type Scope struct {
	Role    string
	ActorID string
}

func (s Scope) Valid() bool {
	switch s.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCashier:
		return s.ActorID != ""
	default:
		return false
	}
}

func (s Scope) Allows(sale domain.Sale) bool {
	if s.Role == domain.RoleAdmin {
		return true
	}
	return sale.CashierID == s.ActorID
}

// Filter narrows a scoped listing. Query matches receipt number or cashier
// name, Date is a UTC calendar day in 2006-01-02 form.
type Filter struct {
	Query string
	Date  string
	Limit int
}

// Ledger is the append-only sales store. Issued sales are never mutated or
// deleted. The user-account methods exist so auth credentials live next to
// the sales data in the same backing store.
type Ledger interface {
	Append(ctx context.Context, sale domain.Sale) error
	List(ctx context.Context, scope Scope, filter Filter) ([]domain.Sale, error)
	SummaryByCashier(ctx context.Context, scope Scope, filter Filter) ([]domain.CashierSummary, error)
	DailyReport(ctx context.Context, scope Scope, branchID string, day time.Time) (domain.DailyReport, error)
	FindByReceiptNo(ctx context.Context, scope Scope, receiptNo string) (*domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
