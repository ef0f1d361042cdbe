package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/ledger"
	"diffpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	salesByReceipt  map[string]*domain.Sale
	saleOrder       []string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		salesByReceipt:  make(map[string]*domain.Sale),
		saleOrder:       make([]string, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with the dev/demo user accounts. Credentials are
// read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-ledger] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		name     string
		role     string
	}{
		{"admin", adminPwd, "Admin User", domain.RoleAdmin},
		{"cashier", cashierPwd, "Jane Cashier", domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-ledger] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Name:      u.name,
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) Append(_ context.Context, sale domain.Sale) error {
	if sale.ReceiptNo == "" || len(sale.Items) == 0 {
		return ledger.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByReceipt[sale.ReceiptNo]; exists {
		return ledger.ErrDuplicateReceipt
	}
	saved := cloneSale(sale)
	s.salesByReceipt[sale.ReceiptNo] = &saved
	s.saleOrder = append(s.saleOrder, sale.ReceiptNo)
	return nil
}

func (s *Store) List(_ context.Context, scope ledger.Scope, filter ledger.Filter) ([]domain.Sale, error) {
	if !scope.Valid() {
		return nil, ledger.ErrInvalidScope
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, receiptNo := range s.saleOrder {
		sale := s.salesByReceipt[receiptNo]
		if !scope.Allows(*sale) {
			continue
		}
		if !matchesFilter(*sale, filter) {
			continue
		}
		result = append(result, cloneSale(*sale))
	}

	// Newest first for history listings.
	slices.Reverse(result)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) SummaryByCashier(ctx context.Context, scope ledger.Scope, filter ledger.Filter) ([]domain.CashierSummary, error) {
	sales, err := s.List(ctx, scope, ledger.Filter{Date: filter.Date})
	if err != nil {
		return nil, err
	}

	byCashier := map[string]*domain.CashierSummary{}
	for _, sale := range sales {
		summary := byCashier[sale.CashierID]
		if summary == nil {
			summary = &domain.CashierSummary{CashierID: sale.CashierID, CashierName: sale.CashierName}
			byCashier[sale.CashierID] = summary
		}
		summary.Transactions++
		summary.TotalSalesMinor += sale.Breakdown.TotalMinor
		summary.TotalDiscountMinor += sale.Breakdown.DiscountMinor
		summary.TotalTaxMinor += sale.Breakdown.TaxMinor
	}

	result := make([]domain.CashierSummary, 0, len(byCashier))
	for _, summary := range byCashier {
		result = append(result, *summary)
	}
	slices.SortFunc(result, func(a, b domain.CashierSummary) int {
		return strings.Compare(a.CashierID, b.CashierID)
	})
	return result, nil
}

func (s *Store) DailyReport(_ context.Context, scope ledger.Scope, branchID string, day time.Time) (domain.DailyReport, error) {
	// The report aggregates every cashier's sales, so only admin scope may
	// request it.
	if !scope.Valid() || scope.Role != domain.RoleAdmin {
		return domain.DailyReport{}, ledger.ErrInvalidScope
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		BranchID:  branchID,
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}
	byPayment := map[string]*domain.DailyReportPayment{}

	for _, receiptNo := range s.saleOrder {
		sale := s.salesByReceipt[receiptNo]
		if branchID != "" && sale.BranchID != branchID {
			continue
		}
		if sale.IssuedAt.Before(from) || !sale.IssuedAt.Before(to) {
			continue
		}

		report.Transactions++
		report.GrossSalesMinor += sale.Breakdown.SubtotalMinor
		report.TotalDiscountMinor += sale.Breakdown.DiscountMinor
		report.TotalTaxMinor += sale.Breakdown.TaxMinor
		report.NetSalesMinor += sale.Breakdown.TotalMinor

		payment := byPayment[sale.PaymentMethod]
		if payment == nil {
			payment = &domain.DailyReportPayment{PaymentMethod: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = payment
		}
		payment.Transactions++
		payment.TotalMinor += sale.Breakdown.TotalMinor
	}

	for _, entry := range byPayment {
		report.ByPayment = append(report.ByPayment, *entry)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.DailyReportPayment) int {
		return strings.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	return report, nil
}

func (s *Store) FindByReceiptNo(_ context.Context, scope ledger.Scope, receiptNo string) (*domain.Sale, error) {
	if !scope.Valid() {
		return nil, ledger.ErrInvalidScope
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByReceipt[receiptNo]
	if !ok || !scope.Allows(*sale) {
		// An out-of-scope receipt is indistinguishable from a missing one.
		return nil, ledger.ErrNotFound
	}
	found := cloneSale(*sale)
	return &found, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return ledger.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return ledger.ErrInvalidRecord
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return ledger.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return ledger.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func matchesFilter(sale domain.Sale, filter ledger.Filter) bool {
	if filter.Date != "" && sale.IssuedAt.UTC().Format("2006-01-02") != filter.Date {
		return false
	}
	if query := strings.ToLower(strings.TrimSpace(filter.Query)); query != "" {
		if !strings.Contains(strings.ToLower(sale.ReceiptNo), query) &&
			!strings.Contains(strings.ToLower(sale.CashierName), query) {
			return false
		}
	}
	return true
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	items := make([]domain.LineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
