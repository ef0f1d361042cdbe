package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"diffpos/backend/internal/cache"
	"diffpos/backend/internal/catalog"
	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/ledger"
	"diffpos/backend/internal/ledger/memory"
	"diffpos/backend/internal/pos"
	"diffpos/backend/internal/xid"
)

func newTestService() *Service {
	store := memory.New()
	issuer := pos.NewIssuer(xid.NewSequence("DIFF"), store)
	return New(catalog.NewSeeded(), store, issuer, cache.NoopReportCache{}, Options{
		BranchID:       "main-branch",
		BranchName:     "Diff Clothing Store",
		TaxRatePercent: 7.5,
	})
}

func cashierCtx(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleCashier})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func checkoutOneSale(t *testing.T, svc *Service, ctx context.Context, terminal string) domain.Sale {
	t.Helper()

	view, err := svc.AddToCart(ctx, terminal, domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 2})
	if err != nil {
		t.Fatalf("add to cart failed: %v", err)
	}
	if view.ItemCount != 2 {
		t.Fatalf("expected item count 2, got %d", view.ItemCount)
	}
	if _, err := svc.SetDiscount(ctx, terminal, 10); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	if _, err := svc.BeginCheckout(ctx, terminal); err != nil {
		t.Fatalf("begin checkout failed: %v", err)
	}

	resp, err := svc.SubmitTender(ctx, terminal, domain.TenderRequest{Method: "cash", AmountReceivedMinor: 30000})
	if err != nil {
		t.Fatalf("tender failed: %v", err)
	}
	if resp.State != pos.StateAccepted || resp.Sale == nil {
		t.Fatalf("expected accepted sale, got %+v", resp)
	}
	return *resp.Sale
}

func TestCheckoutEndToEnd(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx("alice")

	sale := checkoutOneSale(t, svc, ctx, "terminal-1")

	if sale.Breakdown.TotalMinor != 29025 {
		t.Fatalf("expected total 29025, got %d", sale.Breakdown.TotalMinor)
	}
	if sale.ChangeMinor != 975 {
		t.Fatalf("expected change 975, got %d", sale.ChangeMinor)
	}
	if !strings.HasPrefix(sale.ReceiptNo, "DIFF-") {
		t.Fatalf("unexpected receipt number %s", sale.ReceiptNo)
	}
	if sale.CashierID != "alice" {
		t.Fatalf("expected cashier alice, got %s", sale.CashierID)
	}

	// The register is ready for the next customer.
	if view := svc.Cart(ctx, "terminal-1"); view.ItemCount != 0 {
		t.Fatalf("expected cleared cart, got %d items", view.ItemCount)
	}
	if state := svc.CheckoutState(ctx, "terminal-1"); state.State != pos.StateIdle {
		t.Fatalf("expected idle settlement, got %s", state.State)
	}
}

func TestSubmitTenderRequiresActor(t *testing.T) {
	svc := newTestService()

	if _, err := svc.AddToCart(cashierCtx("alice"), "terminal-1", domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.BeginCheckout(context.Background(), "terminal-1"); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := svc.SubmitTender(context.Background(), "terminal-1", domain.TenderRequest{Method: "cash", AmountReceivedMinor: 50000}); err == nil {
		t.Fatalf("expected error without authenticated actor")
	}
}

func TestAddToCartUnknownItem(t *testing.T) {
	svc := newTestService()

	if _, err := svc.AddToCart(cashierCtx("alice"), "terminal-1", domain.AddItemRequest{CatalogItemID: "ghost", Size: "M", Color: "Black", Quantity: 1}); !errors.Is(err, pos.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestTenderRefusedWhenCartEmptiedMidCheckout(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx("alice")
	terminal := "terminal-1"

	view, err := svc.AddToCart(ctx, terminal, domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 1})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.BeginCheckout(ctx, terminal); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	svc.RemoveFromCart(ctx, terminal, view.Items[0].ID)

	if _, err := svc.SubmitTender(ctx, terminal, domain.TenderRequest{Method: "cash", AmountReceivedMinor: 0}); !errors.Is(err, pos.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	sales, err := svc.ListSales(adminCtx(), ledger.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sales.Sales) != 0 {
		t.Fatalf("no sale may be issued from an emptied cart, got %d", len(sales.Sales))
	}
}

func TestTerminalsAreIsolated(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx("alice")

	if _, err := svc.AddToCart(ctx, "terminal-1", domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if view := svc.Cart(ctx, "terminal-2"); view.ItemCount != 0 {
		t.Fatalf("terminal-2 must start empty, got %d items", view.ItemCount)
	}
}

func TestInsufficientCashThenRetry(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx("alice")
	terminal := "terminal-1"

	if _, err := svc.AddToCart(ctx, terminal, domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 2}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.BeginCheckout(ctx, terminal); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	resp, err := svc.SubmitTender(ctx, terminal, domain.TenderRequest{Method: "cash", AmountReceivedMinor: 100})
	if !errors.Is(err, pos.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if resp.State != pos.StateRejected {
		t.Fatalf("expected rejected state, got %s", resp.State)
	}

	if _, err := svc.RetryTender(ctx, terminal); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	accepted, err := svc.SubmitTender(ctx, terminal, domain.TenderRequest{Method: "transfer"})
	if err != nil {
		t.Fatalf("transfer tender failed: %v", err)
	}
	if accepted.Sale == nil || accepted.Sale.ChangeMinor != 0 {
		t.Fatalf("expected transfer sale with zero change, got %+v", accepted)
	}
}

func TestListSalesIsRoleScoped(t *testing.T) {
	svc := newTestService()

	checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")
	checkoutOneSale(t, svc, cashierCtx("bob"), "terminal-2")

	aliceView, err := svc.ListSales(cashierCtx("alice"), ledger.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(aliceView.Sales) != 1 || aliceView.Sales[0].CashierID != "alice" {
		t.Fatalf("alice must only see her own sales, got %+v", aliceView.Sales)
	}

	adminView, err := svc.ListSales(adminCtx(), ledger.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(adminView.Sales) != 2 {
		t.Fatalf("admin must see both sales, got %d", len(adminView.Sales))
	}
	if adminView.TotalSalesMinor != 2*29025 {
		t.Fatalf("expected aggregate total %d, got %d", 2*29025, adminView.TotalSalesMinor)
	}

	if _, err := svc.ListSales(context.Background(), ledger.Filter{}); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope without actor, got %v", err)
	}
}

func TestExportSalesCSV(t *testing.T) {
	svc := newTestService()
	sale := checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")

	payload, err := svc.ExportSalesCSV(adminCtx(), ledger.Filter{})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	text := string(payload)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], sale.ReceiptNo) || !strings.Contains(lines[1], "29025") {
		t.Fatalf("unexpected csv row: %s", lines[1])
	}
}

func TestSummaryByCashier(t *testing.T) {
	svc := newTestService()
	checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")
	checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")
	checkoutOneSale(t, svc, cashierCtx("bob"), "terminal-2")

	resp, err := svc.SummaryByCashier(adminCtx(), ledger.Filter{})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(resp.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(resp.Summaries))
	}
	if resp.Summaries[0].CashierID != "alice" || resp.Summaries[0].Transactions != 2 {
		t.Fatalf("unexpected alice summary: %+v", resp.Summaries[0])
	}
}

func TestDailyReport(t *testing.T) {
	svc := newTestService()
	checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")

	report, err := svc.DailyReport(adminCtx(), "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Transactions != 1 || report.NetSalesMinor != 29025 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := svc.DailyReport(adminCtx(), "not-a-date"); err == nil {
		t.Fatalf("expected error for malformed date")
	}

	if _, err := svc.DailyReport(cashierCtx("alice"), ""); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope for cashier, got %v", err)
	}
	if _, err := svc.DailyReport(context.Background(), ""); !errors.Is(err, ledger.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope without actor, got %v", err)
	}
}

func TestRenderReceiptScoped(t *testing.T) {
	svc := newTestService()
	sale := checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")

	resp, err := svc.RenderReceipt(cashierCtx("alice"), sale.ReceiptNo)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if resp.ReceiptNo != sale.ReceiptNo {
		t.Fatalf("unexpected receipt number %s", resp.ReceiptNo)
	}
	if !strings.Contains(resp.PreviewText, "Classic Cotton Tee") || !strings.Contains(resp.PreviewText, "290.25") {
		t.Fatalf("unexpected preview:\n%s", resp.PreviewText)
	}
	if resp.EscposBase64 == "" {
		t.Fatalf("expected escpos payload")
	}

	// Another cashier cannot reprint it.
	if _, err := svc.RenderReceipt(cashierCtx("bob"), sale.ReceiptNo); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign receipt, got %v", err)
	}
}

func TestSetTaxRateAdminOnly(t *testing.T) {
	svc := newTestService()

	if _, err := svc.SetTaxRate(cashierCtx("alice"), 5); err == nil {
		t.Fatalf("expected cashier to be refused")
	}
	if _, err := svc.SetTaxRate(adminCtx(), 120); !errors.Is(err, pos.ErrInvalidTaxRate) {
		t.Fatalf("expected ErrInvalidTaxRate, got %v", err)
	}

	resp, err := svc.SetTaxRate(adminCtx(), 5)
	if err != nil {
		t.Fatalf("set tax rate failed: %v", err)
	}
	if resp.TaxRatePercent != 5 {
		t.Fatalf("expected 5, got %.1f", resp.TaxRatePercent)
	}
	if got := svc.TaxRate(context.Background()).TaxRatePercent; got != 5 {
		t.Fatalf("expected stored rate 5, got %.1f", got)
	}

	// New rate applies to subsequent pricing.
	ctx := cashierCtx("alice")
	if _, err := svc.AddToCart(ctx, "terminal-1", domain.AddItemRequest{CatalogItemID: "top-1", Size: "M", Color: "Black", Quantity: 2}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	view := svc.Cart(ctx, "terminal-1")
	if view.Breakdown.TaxMinor != 1500 {
		t.Fatalf("expected tax 1500 at 5%%, got %d", view.Breakdown.TaxMinor)
	}
}

func TestAuditTrailRecordsSale(t *testing.T) {
	svc := newTestService()
	sale := checkoutOneSale(t, svc, cashierCtx("alice"), "terminal-1")

	logs, err := svc.ListAuditLogs(adminCtx(), "", 100)
	if err != nil {
		t.Fatalf("audit list failed: %v", err)
	}

	found := false
	for _, entry := range logs {
		if entry.Action == "sale.issued" && entry.EntityID == sale.ReceiptNo {
			found = true
			if entry.ActorUsername != "alice" {
				t.Fatalf("expected audit actor alice, got %s", entry.ActorUsername)
			}
		}
	}
	if !found {
		t.Fatalf("expected sale.issued audit entry for %s", sale.ReceiptNo)
	}

	if _, err := svc.ListAuditLogs(cashierCtx("alice"), "", 100); err == nil {
		t.Fatalf("expected cashier to be refused audit access")
	}
}
