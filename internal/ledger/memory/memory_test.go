package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/ledger"
)

func saleFor(cashierID string, receiptNo string, totalMinor int64) domain.Sale {
	return domain.Sale{
		ReceiptNo: receiptNo,
		Items: []domain.LineItem{
			{ID: "line-1", CatalogItemID: "top-1", Name: "Classic Cotton Tee", Size: "M", Color: "Black", Quantity: 1, UnitPriceMinor: totalMinor},
		},
		Breakdown: domain.PriceBreakdown{
			SubtotalMinor: totalMinor,
			TaxableMinor:  totalMinor,
			TotalMinor:    totalMinor,
		},
		PaymentMethod: domain.PaymentCash,
		CashierID:     cashierID,
		CashierName:   "Cashier " + cashierID,
		BranchID:      "main-branch",
		IssuedAt:      time.Now().UTC(),
	}
}

func seedSales(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	for i, cashier := range []string{"alice", "alice", "bob"} {
		if err := store.Append(ctx, saleFor(cashier, fmt.Sprintf("DIFF-TEST-%06d", i+1), 10000)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
}

func TestAppendRejectsInvalidAndDuplicate(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Append(ctx, domain.Sale{ReceiptNo: "DIFF-X-000001"}); !errors.Is(err, ledger.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for empty items, got %v", err)
	}

	sale := saleFor("alice", "DIFF-X-000002", 5000)
	if err := store.Append(ctx, sale); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(ctx, sale); !errors.Is(err, ledger.ErrDuplicateReceipt) {
		t.Fatalf("expected ErrDuplicateReceipt, got %v", err)
	}
}

func TestListScopeAdminSeesAll(t *testing.T) {
	store := New()
	seedSales(t, store)

	sales, err := store.List(context.Background(), ledger.Scope{Role: domain.RoleAdmin}, ledger.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("admin: expected 3 sales, got %d", len(sales))
	}
	// Newest first.
	if sales[0].ReceiptNo != "DIFF-TEST-000003" {
		t.Fatalf("expected newest sale first, got %s", sales[0].ReceiptNo)
	}
}

func TestListScopeCashierSeesOwnOnly(t *testing.T) {
	store := New()
	seedSales(t, store)

	sales, err := store.List(context.Background(), ledger.Scope{Role: domain.RoleCashier, ActorID: "alice"}, ledger.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("alice: expected 2 sales, got %d", len(sales))
	}
	for _, sale := range sales {
		if sale.CashierID != "alice" {
			t.Fatalf("alice must never see %s's sale", sale.CashierID)
		}
	}
}

func TestListRejectsInvalidScope(t *testing.T) {
	store := New()
	seedSales(t, store)
	ctx := context.Background()

	if _, err := store.List(ctx, ledger.Scope{Role: domain.RoleCashier}, ledger.Filter{}); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("cashier without actor id: expected ErrInvalidScope, got %v", err)
	}
	if _, err := store.List(ctx, ledger.Scope{Role: "manager", ActorID: "m1"}, ledger.Filter{}); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("unknown role: expected ErrInvalidScope, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store := New()
	seedSales(t, store)
	ctx := context.Background()
	admin := ledger.Scope{Role: domain.RoleAdmin}

	today := time.Now().UTC().Format("2006-01-02")
	byDate, err := store.List(ctx, admin, ledger.Filter{Date: today})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byDate) != 3 {
		t.Fatalf("expected 3 sales today, got %d", len(byDate))
	}

	byQuery, err := store.List(ctx, admin, ledger.Filter{Query: "cashier bob"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byQuery) != 1 {
		t.Fatalf("expected 1 sale for bob query, got %d", len(byQuery))
	}

	limited, err := store.List(ctx, admin, ledger.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
}

func TestFindByReceiptNoScope(t *testing.T) {
	store := New()
	seedSales(t, store)
	ctx := context.Background()

	sale, err := store.FindByReceiptNo(ctx, ledger.Scope{Role: domain.RoleCashier, ActorID: "bob"}, "DIFF-TEST-000003")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if sale.CashierID != "bob" {
		t.Fatalf("unexpected sale %+v", sale)
	}

	// An out-of-scope receipt must look exactly like a missing one.
	if _, err := store.FindByReceiptNo(ctx, ledger.Scope{Role: domain.RoleCashier, ActorID: "bob"}, "DIFF-TEST-000001"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for out-of-scope receipt, got %v", err)
	}
	if _, err := store.FindByReceiptNo(ctx, ledger.Scope{Role: domain.RoleAdmin}, "DIFF-MISSING"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing receipt, got %v", err)
	}
}

func TestSummaryByCashier(t *testing.T) {
	store := New()
	seedSales(t, store)

	summaries, err := store.SummaryByCashier(context.Background(), ledger.Scope{Role: domain.RoleAdmin}, ledger.Filter{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 cashiers, got %d", len(summaries))
	}
	if summaries[0].CashierID != "alice" || summaries[0].Transactions != 2 || summaries[0].TotalSalesMinor != 20000 {
		t.Fatalf("unexpected alice summary: %+v", summaries[0])
	}
	if summaries[1].CashierID != "bob" || summaries[1].Transactions != 1 {
		t.Fatalf("unexpected bob summary: %+v", summaries[1])
	}
}

func TestSummaryScopedToCashier(t *testing.T) {
	store := New()
	seedSales(t, store)

	summaries, err := store.SummaryByCashier(context.Background(), ledger.Scope{Role: domain.RoleCashier, ActorID: "bob"}, ledger.Filter{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].CashierID != "bob" {
		t.Fatalf("expected bob-only summary, got %+v", summaries)
	}
}

func TestDailyReport(t *testing.T) {
	store := New()
	seedSales(t, store)
	ctx := context.Background()

	transfer := saleFor("alice", "DIFF-TEST-000099", 7000)
	transfer.PaymentMethod = domain.PaymentTransfer
	if err := store.Append(ctx, transfer); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	adminScope := ledger.Scope{Role: domain.RoleAdmin}
	report, err := store.DailyReport(ctx, adminScope, "main-branch", time.Now().UTC())
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Transactions != 4 {
		t.Fatalf("expected 4 transactions, got %d", report.Transactions)
	}
	if report.NetSalesMinor != 37000 {
		t.Fatalf("expected net 37000, got %d", report.NetSalesMinor)
	}
	if len(report.ByPayment) != 2 {
		t.Fatalf("expected 2 payment groups, got %d", len(report.ByPayment))
	}
	if report.ByPayment[0].PaymentMethod != domain.PaymentCash || report.ByPayment[0].Transactions != 3 {
		t.Fatalf("unexpected cash group: %+v", report.ByPayment[0])
	}

	cashierScope := ledger.Scope{Role: domain.RoleCashier, ActorID: "alice"}
	if _, err := store.DailyReport(ctx, cashierScope, "main-branch", time.Now().UTC()); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope for cashier scope, got %v", err)
	}
}

func TestUserLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateUser(ctx, domain.UserAccount{Username: "  NewCashier ", Password: "hash", Name: "New Cashier", Role: domain.RoleCashier}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.CreateUser(ctx, domain.UserAccount{Username: "newcashier", Password: "hash"}); !errors.Is(err, ledger.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for duplicate, got %v", err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 || users[0].Username != "newcashier" {
		t.Fatalf("unexpected users: %+v", users)
	}

	if err := store.UpdateUserPassword(ctx, "newcashier", "newhash"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := store.UpdateUserPassword(ctx, "ghost", "hash"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditLogs(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.CreateAuditLog(ctx, domain.AuditLog{
			BranchID: "main-branch",
			Action:   "sale.issued",
			EntityID: fmt.Sprintf("DIFF-%d", i),
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	now := time.Now().UTC()
	logs, err := store.ListAuditLogs(ctx, "main-branch", now.Add(-time.Hour), now.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected limit 2, got %d", len(logs))
	}
}
