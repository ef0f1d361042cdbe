package service

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"diffpos/backend/internal/cache"
	"diffpos/backend/internal/catalog"
	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/ledger"
	"diffpos/backend/internal/pos"
	"diffpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// terminalSession is the mutable checkout state of one register. All access
// goes through Service.withSession so cart and settlement are never touched
// concurrently.
type terminalSession struct {
	mu         sync.Mutex
	cart       *pos.Cart
	settlement *pos.Settlement
}

type Service struct {
	catalog    catalog.Index
	ledger     ledger.Ledger
	issuer     *pos.Issuer
	reports    cache.ReportCache
	reportTTL  time.Duration
	branchID   string
	branchName string

	mu         sync.Mutex
	terminals  map[string]*terminalSession
	taxRatePct float64
	names      map[string]string
}

type Options struct {
	BranchID         string
	BranchName       string
	TaxRatePercent   float64
	ReportTTLSeconds int
}

func New(cat catalog.Index, ledg ledger.Ledger, issuer *pos.Issuer, reports cache.ReportCache, opts Options) *Service {
	if opts.BranchID == "" {
		opts.BranchID = "main-branch"
	}
	if opts.BranchName == "" {
		opts.BranchName = "Diff Clothing Store"
	}
	if opts.TaxRatePercent < 0 || opts.TaxRatePercent > 100 {
		opts.TaxRatePercent = 7.5
	}
	if opts.ReportTTLSeconds < 1 {
		opts.ReportTTLSeconds = 30
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}

	return &Service{
		catalog:    cat,
		ledger:     ledg,
		issuer:     issuer,
		reports:    reports,
		reportTTL:  time.Duration(opts.ReportTTLSeconds) * time.Second,
		branchID:   opts.BranchID,
		branchName: opts.BranchName,
		terminals:  make(map[string]*terminalSession),
		taxRatePct: opts.TaxRatePercent,
		names:      make(map[string]string),
	}
}

// RegisterDisplayName makes cashier display names available to issued sales
// without a ledger round trip on every checkout.
func (s *Service) RegisterDisplayName(username string, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.names[strings.ToLower(username)] = name
	}
}

func (s *Service) displayName(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.names[strings.ToLower(username)]; ok {
		return name
	}
	return username
}

func (s *Service) session(terminalID string) *terminalSession {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.terminals[terminalID]
	if !ok {
		cart := pos.NewCart(s.taxRatePct)
		session = &terminalSession{cart: cart, settlement: pos.NewSettlement(cart)}
		s.terminals[terminalID] = session
	}
	return session
}

func normalizeTerminalID(terminalID string) string {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return "main-terminal"
	}
	return terminalID
}

// --- Catalog ---

func (s *Service) ListCatalog(_ context.Context, category string) []domain.CatalogItem {
	return s.catalog.List(category)
}

func (s *Service) SearchCatalog(_ context.Context, query string) []domain.CatalogItem {
	return s.catalog.Search(query)
}

func (s *Service) FindCatalogItemByBarcode(_ context.Context, code string) (domain.CatalogItem, error) {
	return s.catalog.FindByBarcode(code)
}

// --- Cart ---

func (s *Service) AddToCart(ctx context.Context, terminalID string, req domain.AddItemRequest) (domain.CartView, error) {
	item, err := s.catalog.FindByID(strings.TrimSpace(req.CatalogItemID))
	if err != nil {
		return domain.CartView{}, pos.ErrUnknownItem
	}

	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if _, err := session.cart.AddItem(item, req.Size, req.Color, req.Quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.cartViewLocked(terminalID, session), nil
}

func (s *Service) RemoveFromCart(_ context.Context, terminalID string, lineItemID string) domain.CartView {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	session.cart.RemoveItem(lineItemID)
	return s.cartViewLocked(terminalID, session)
}

func (s *Service) SetQuantity(_ context.Context, terminalID string, lineItemID string, quantity int) (domain.CartView, error) {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.cart.SetQuantity(lineItemID, quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.cartViewLocked(terminalID, session), nil
}

func (s *Service) SetDiscount(ctx context.Context, terminalID string, percent float64) (domain.CartView, error) {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.cart.SetDiscountPercent(percent); err != nil {
		return domain.CartView{}, err
	}
	if percent > 0 {
		s.logAudit(ctx, "discount.set", "cart", normalizeTerminalID(terminalID), fmt.Sprintf("discount=%.2f%%", percent))
	}
	return s.cartViewLocked(terminalID, session), nil
}

func (s *Service) ClearCart(_ context.Context, terminalID string) domain.CartView {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	session.cart.Clear()
	session.settlement.Reset()
	return s.cartViewLocked(terminalID, session)
}

func (s *Service) Cart(_ context.Context, terminalID string) domain.CartView {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	return s.cartViewLocked(terminalID, session)
}

func (s *Service) cartViewLocked(terminalID string, session *terminalSession) domain.CartView {
	return domain.CartView{
		TerminalID: normalizeTerminalID(terminalID),
		Items:      session.cart.Items(),
		ItemCount:  session.cart.ItemCount(),
		Breakdown:  pos.Compute(session.cart),
	}
}

// --- Checkout ---

func (s *Service) BeginCheckout(_ context.Context, terminalID string) (domain.CheckoutStateResponse, error) {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	breakdown, err := session.settlement.BeginCheckout()
	if err != nil {
		return domain.CheckoutStateResponse{}, err
	}
	return domain.CheckoutStateResponse{
		TerminalID: normalizeTerminalID(terminalID),
		State:      session.settlement.State(),
		Breakdown:  breakdown,
	}, nil
}

func (s *Service) CheckoutState(_ context.Context, terminalID string) domain.CheckoutStateResponse {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	return domain.CheckoutStateResponse{
		TerminalID: normalizeTerminalID(terminalID),
		State:      session.settlement.State(),
		Breakdown:  pos.Compute(session.cart),
	}
}

// SubmitTender runs one settlement attempt. On acceptance the sale is issued
// to the ledger under a fresh receipt number and the cart is cleared.
func (s *Service) SubmitTender(ctx context.Context, terminalID string, req domain.TenderRequest) (domain.TenderResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.TenderResponse{}, fmt.Errorf("authenticated cashier required")
	}

	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	tender := domain.Tender{
		Method:              strings.TrimSpace(strings.ToLower(req.Method)),
		AmountReceivedMinor: req.AmountReceivedMinor,
	}
	breakdown, change, err := session.settlement.SubmitTender(tender)
	if err != nil {
		return domain.TenderResponse{State: session.settlement.State()}, err
	}

	sale, err := s.issuer.Issue(ctx, session.cart, breakdown, tender, change, actor, s.displayName(actor.Username), s.branchID)
	if err != nil {
		// The tender was accepted but nothing was recorded. Roll the
		// settlement back so the cashier can retry the whole attempt.
		session.settlement.Reset()
		return domain.TenderResponse{State: session.settlement.State()}, err
	}
	session.settlement.Reset()

	s.logAudit(ctx, "sale.issued", "sale", sale.ReceiptNo,
		fmt.Sprintf("method=%s total=%d change=%d", sale.PaymentMethod, sale.Breakdown.TotalMinor, sale.ChangeMinor))

	return domain.TenderResponse{State: pos.StateAccepted, Sale: &sale}, nil
}

func (s *Service) RetryTender(_ context.Context, terminalID string) (domain.CheckoutStateResponse, error) {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.settlement.Retry(); err != nil {
		return domain.CheckoutStateResponse{}, err
	}
	return domain.CheckoutStateResponse{
		TerminalID: normalizeTerminalID(terminalID),
		State:      session.settlement.State(),
		Breakdown:  pos.Compute(session.cart),
	}, nil
}

func (s *Service) CancelCheckout(_ context.Context, terminalID string) (domain.CheckoutStateResponse, error) {
	session := s.session(terminalID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.settlement.Cancel(); err != nil {
		return domain.CheckoutStateResponse{}, err
	}
	return domain.CheckoutStateResponse{
		TerminalID: normalizeTerminalID(terminalID),
		State:      session.settlement.State(),
		Breakdown:  pos.Compute(session.cart),
	}, nil
}

// --- Sales history ---

func (s *Service) scopeFromContext(ctx context.Context) (ledger.Scope, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ledger.Scope{}, ledger.ErrInvalidScope
	}
	return ledger.Scope{Role: actor.Role, ActorID: actor.Username}, nil
}

func (s *Service) ListSales(ctx context.Context, filter ledger.Filter) (domain.SalesListResponse, error) {
	scope, err := s.scopeFromContext(ctx)
	if err != nil {
		return domain.SalesListResponse{}, err
	}

	sales, err := s.ledger.List(ctx, scope, filter)
	if err != nil {
		return domain.SalesListResponse{}, err
	}

	resp := domain.SalesListResponse{Sales: sales}
	for _, sale := range sales {
		resp.TotalSalesMinor += sale.Breakdown.TotalMinor
		resp.TotalDiscountMinor += sale.Breakdown.DiscountMinor
		resp.TotalTaxMinor += sale.Breakdown.TaxMinor
	}
	return resp, nil
}

func (s *Service) FindSale(ctx context.Context, receiptNo string) (*domain.Sale, error) {
	scope, err := s.scopeFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.ledger.FindByReceiptNo(ctx, scope, strings.TrimSpace(receiptNo))
}

// ExportSalesCSV renders the scoped listing for spreadsheet import. Amounts
// are in minor units, one row per sale.
func (s *Service) ExportSalesCSV(ctx context.Context, filter ledger.Filter) ([]byte, error) {
	listing, err := s.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"receipt_no", "issued_at", "cashier", "payment_method", "items", "subtotal_minor", "discount_minor", "tax_minor", "total_minor", "change_minor"})
	for _, sale := range listing.Sales {
		itemCount := 0
		for _, line := range sale.Items {
			itemCount += line.Quantity
		}
		_ = w.Write([]string{
			sale.ReceiptNo,
			sale.IssuedAt.Format(time.RFC3339),
			sale.CashierName,
			sale.PaymentMethod,
			strconv.Itoa(itemCount),
			strconv.FormatInt(sale.Breakdown.SubtotalMinor, 10),
			strconv.FormatInt(sale.Breakdown.DiscountMinor, 10),
			strconv.FormatInt(sale.Breakdown.TaxMinor, 10),
			strconv.FormatInt(sale.Breakdown.TotalMinor, 10),
			strconv.FormatInt(sale.ChangeMinor, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "sales.exported", "sales", filter.Date, fmt.Sprintf("rows=%d", len(listing.Sales)))
	return []byte(buf.String()), nil
}

func (s *Service) SummaryByCashier(ctx context.Context, filter ledger.Filter) (domain.CashierSummaryResponse, error) {
	scope, err := s.scopeFromContext(ctx)
	if err != nil {
		return domain.CashierSummaryResponse{}, err
	}

	summaries, err := s.ledger.SummaryByCashier(ctx, scope, filter)
	if err != nil {
		return domain.CashierSummaryResponse{}, err
	}
	return domain.CashierSummaryResponse{Summaries: summaries}, nil
}

// --- Reports ---

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	scope, err := s.scopeFromContext(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}
	// Refused before the cache read so cached reports are no more visible
	// to a cashier than fresh ones.
	if scope.Role != domain.RoleAdmin {
		return domain.DailyReport{}, ledger.ErrInvalidScope
	}

	day, err := parseReportDay(date)
	if err != nil {
		return domain.DailyReport{}, err
	}

	cacheKey := fmt.Sprintf("report:daily:%s:%s", s.branchID, day.Format("2006-01-02"))
	if cached, ok, err := s.reports.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[report-cache] WARN: get %s failed: %v", cacheKey, err)
	}

	report, err := s.ledger.DailyReport(ctx, scope, s.branchID, day)
	if err != nil {
		return domain.DailyReport{}, err
	}

	if err := s.reports.Set(ctx, cacheKey, &report, s.reportTTL); err != nil {
		log.Printf("[report-cache] WARN: set %s failed: %v", cacheKey, err)
	}
	return report, nil
}

func parseReportDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, ledger.ErrInvalidRecord
	}
	return parsed.UTC(), nil
}

// --- Receipt rendering ---

// RenderReceipt rebuilds the printable form of an issued sale. The lookup is
// scoped, so a cashier can only reprint their own receipts.
func (s *Service) RenderReceipt(ctx context.Context, receiptNo string) (domain.ReceiptRenderResponse, error) {
	sale, err := s.FindSale(ctx, receiptNo)
	if err != nil {
		return domain.ReceiptRenderResponse{}, err
	}

	lines := []string{
		s.branchName,
		"========================",
		"Receipt : " + sale.ReceiptNo,
		"Cashier : " + sale.CashierName,
		"Date    : " + sale.IssuedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, item := range sale.Items {
		variant := item.Size
		if item.Color != "" {
			variant += "/" + item.Color
		}
		lines = append(lines, fmt.Sprintf("%s (%s) x%d", item.Name, variant, item.Quantity))
		lines = append(lines, fmt.Sprintf("  %s", formatMinor(item.UnitPriceMinor*int64(item.Quantity))))
	}
	lines = append(lines,
		"------------------------",
		"Subtotal : "+formatMinor(sale.Breakdown.SubtotalMinor),
		fmt.Sprintf("Discount : %s (%.1f%%)", formatMinor(sale.Breakdown.DiscountMinor), sale.Breakdown.DiscountPct),
		fmt.Sprintf("VAT      : %s (%.1f%%)", formatMinor(sale.Breakdown.TaxMinor), sale.Breakdown.TaxRatePct),
		"Total    : "+formatMinor(sale.Breakdown.TotalMinor),
		"Paid via : "+sale.PaymentMethod,
		"Change   : "+formatMinor(sale.ChangeMinor),
		"========================",
		"Thank you for shopping",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptRenderResponse{
		ReceiptNo:    sale.ReceiptNo,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.ReceiptNo),
	}, nil
}

// formatMinor renders kobo as naira with two decimals.
func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// --- Settings ---

func (s *Service) TaxRate(_ context.Context) domain.TaxRateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TaxRateResponse{TaxRatePercent: s.taxRatePct}
}

// SetTaxRate updates the store tax rate for every terminal. In-flight
// checkouts recompute against the new rate when the tender is submitted.
func (s *Service) SetTaxRate(ctx context.Context, percent float64) (domain.TaxRateResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.TaxRateResponse{}, fmt.Errorf("admin role required")
	}
	if percent < 0 || percent > 100 {
		return domain.TaxRateResponse{}, pos.ErrInvalidTaxRate
	}

	s.mu.Lock()
	s.taxRatePct = percent
	sessions := make([]*terminalSession, 0, len(s.terminals))
	for _, session := range s.terminals {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.mu.Lock()
		_ = session.cart.SetTaxRatePercent(percent)
		session.mu.Unlock()
	}

	s.logAudit(ctx, "settings.tax_rate", "settings", "tax_rate", fmt.Sprintf("percent=%.2f", percent))
	return domain.TaxRateResponse{TaxRatePercent: percent}, nil
}

// --- Audit ---

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, ledger.ErrInvalidRecord
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.ledger.ListAuditLogs(ctx, s.branchID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.ledger.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      s.branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
