package pos

import (
	"context"
	"time"

	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/xid"
)

// SaleAppender is the write side of the sales ledger collaborator.
type SaleAppender interface {
	Append(ctx context.Context, sale domain.Sale) error
}

// Issuer freezes a settled sale into an immutable record with a receipt
// number from a process-wide sequence.
type Issuer struct {
	seq    *xid.Sequence
	ledger SaleAppender
}

func NewIssuer(seq *xid.Sequence, ledger SaleAppender) *Issuer {
	return &Issuer{seq: seq, ledger: ledger}
}

// Issue appends the sale to the ledger and clears the cart. The cart is only
// cleared after the append succeeds, so a failed issuance never loses the
// sale in progress.
func (i *Issuer) Issue(ctx context.Context, cart *Cart, breakdown domain.PriceBreakdown, tender domain.Tender, changeMinor int64, cashier domain.Actor, cashierName string, branchID string) (domain.Sale, error) {
	sale := domain.Sale{
		ReceiptNo:     i.seq.Next(),
		Items:         cart.Items(),
		Breakdown:     breakdown,
		PaymentMethod: tender.Method,
		ChangeMinor:   changeMinor,
		CashierID:     cashier.Username,
		CashierName:   cashierName,
		BranchID:      branchID,
		IssuedAt:      time.Now().UTC(),
	}

	if err := i.ledger.Append(ctx, sale); err != nil {
		return domain.Sale{}, err
	}

	cart.Clear()
	return sale, nil
}
