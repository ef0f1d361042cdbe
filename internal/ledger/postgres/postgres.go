package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/ledger"
	"diffpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, sale domain.Sale) error {
	if sale.ReceiptNo == "" || len(sale.Items) == 0 {
		return ledger.ErrInvalidRecord
	}
	if sale.IssuedAt.IsZero() {
		sale.IssuedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (
			receipt_no, branch_id, cashier_id, cashier_name, payment_method,
			subtotal_minor, discount_minor, taxable_minor, tax_minor, total_minor,
			discount_percent, tax_rate_percent, change_minor, items, issued_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, sale.ReceiptNo, sale.BranchID, sale.CashierID, sale.CashierName, sale.PaymentMethod,
		sale.Breakdown.SubtotalMinor, sale.Breakdown.DiscountMinor, sale.Breakdown.TaxableMinor,
		sale.Breakdown.TaxMinor, sale.Breakdown.TotalMinor, sale.Breakdown.DiscountPct,
		sale.Breakdown.TaxRatePct, sale.ChangeMinor, itemsJSON, sale.IssuedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

const saleColumns = `
	receipt_no, branch_id, cashier_id, cashier_name, payment_method,
	subtotal_minor, discount_minor, taxable_minor, tax_minor, total_minor,
	discount_percent, tax_rate_percent, change_minor, items, issued_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var itemsJSON []byte
	err := row.Scan(
		&sale.ReceiptNo,
		&sale.BranchID,
		&sale.CashierID,
		&sale.CashierName,
		&sale.PaymentMethod,
		&sale.Breakdown.SubtotalMinor,
		&sale.Breakdown.DiscountMinor,
		&sale.Breakdown.TaxableMinor,
		&sale.Breakdown.TaxMinor,
		&sale.Breakdown.TotalMinor,
		&sale.Breakdown.DiscountPct,
		&sale.Breakdown.TaxRatePct,
		&sale.ChangeMinor,
		&itemsJSON,
		&sale.IssuedAt,
	)
	if err != nil {
		return sale, err
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return sale, err
	}
	sale.IssuedAt = sale.IssuedAt.UTC()
	return sale, nil
}

func (s *Store) List(ctx context.Context, scope ledger.Scope, filter ledger.Filter) ([]domain.Sale, error) {
	if !scope.Valid() {
		return nil, ledger.ErrInvalidScope
	}

	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if scope.Role != domain.RoleAdmin {
		where = append(where, "cashier_id = "+arg(scope.ActorID))
	}
	if filter.Date != "" {
		day, err := time.Parse("2006-01-02", filter.Date)
		if err != nil {
			return nil, ledger.ErrInvalidRecord
		}
		where = append(where, "issued_at >= "+arg(day))
		where = append(where, "issued_at < "+arg(day.Add(24*time.Hour)))
	}
	if query := strings.ToLower(strings.TrimSpace(filter.Query)); query != "" {
		pattern := "%" + query + "%"
		where = append(where, "(LOWER(receipt_no) LIKE "+arg(pattern)+" OR LOWER(cashier_name) LIKE "+arg(pattern)+")")
	}

	sqlText := "SELECT " + saleColumns + " FROM sales"
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY issued_at DESC, receipt_no DESC"
	if filter.Limit > 0 {
		sqlText += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SummaryByCashier(ctx context.Context, scope ledger.Scope, filter ledger.Filter) ([]domain.CashierSummary, error) {
	if !scope.Valid() {
		return nil, ledger.ErrInvalidScope
	}

	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if scope.Role != domain.RoleAdmin {
		where = append(where, "cashier_id = "+arg(scope.ActorID))
	}
	if filter.Date != "" {
		day, err := time.Parse("2006-01-02", filter.Date)
		if err != nil {
			return nil, ledger.ErrInvalidRecord
		}
		where = append(where, "issued_at >= "+arg(day))
		where = append(where, "issued_at < "+arg(day.Add(24*time.Hour)))
	}

	sqlText := `
		SELECT cashier_id, MAX(cashier_name),
			COUNT(*)::bigint,
			COALESCE(SUM(total_minor),0)::bigint,
			COALESCE(SUM(discount_minor),0)::bigint,
			COALESCE(SUM(tax_minor),0)::bigint
		FROM sales`
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " GROUP BY cashier_id ORDER BY cashier_id"

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.CashierSummary, 0, 8)
	for rows.Next() {
		var summary domain.CashierSummary
		if err := rows.Scan(
			&summary.CashierID,
			&summary.CashierName,
			&summary.Transactions,
			&summary.TotalSalesMinor,
			&summary.TotalDiscountMinor,
			&summary.TotalTaxMinor,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) DailyReport(ctx context.Context, scope ledger.Scope, branchID string, day time.Time) (domain.DailyReport, error) {
	// The report aggregates every cashier's sales, so only admin scope may
	// request it.
	if !scope.Valid() || scope.Role != domain.RoleAdmin {
		return domain.DailyReport{}, ledger.ErrInvalidScope
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	report := domain.DailyReport{
		BranchID:  branchID,
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(subtotal_minor),0)::bigint,
			COALESCE(SUM(discount_minor),0)::bigint,
			COALESCE(SUM(tax_minor),0)::bigint,
			COALESCE(SUM(total_minor),0)::bigint
		FROM sales
		WHERE branch_id = $1
			AND issued_at >= $2
			AND issued_at < $3
	`, branchID, from, to).Scan(
		&report.Transactions,
		&report.GrossSalesMinor,
		&report.TotalDiscountMinor,
		&report.TotalTaxMinor,
		&report.NetSalesMinor,
	)
	if err != nil {
		return report, err
	}

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(total_minor),0)::bigint
		FROM sales
		WHERE branch_id = $1
			AND issued_at >= $2
			AND issued_at < $3
		GROUP BY payment_method
		ORDER BY payment_method
	`, branchID, from, to)
	if err != nil {
		return report, err
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var row domain.DailyReportPayment
		if err := paymentRows.Scan(&row.PaymentMethod, &row.Transactions, &row.TotalMinor); err != nil {
			return report, err
		}
		report.ByPayment = append(report.ByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) FindByReceiptNo(ctx context.Context, scope ledger.Scope, receiptNo string) (*domain.Sale, error) {
	if !scope.Valid() {
		return nil, ledger.ErrInvalidScope
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE receipt_no = $1
	`, receiptNo)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	if !scope.Allows(sale) {
		// An out-of-scope receipt is indistinguishable from a missing one.
		return nil, ledger.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE branch_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return ledger.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, name, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Name, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, name, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Name, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return ledger.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
