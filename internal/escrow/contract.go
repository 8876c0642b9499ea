// Package escrow models the on-chain marketplace contract: a neutral
// component holding locked funds per order, with its own account balances
// and authority checks, independent of the off-chain order ledger. Calls
// are serialized by the contract the way a chain host executes one call at
// a time; once funds transfer out they cannot be recalled.
package escrow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/fees"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolution is the owner's decision on a disputed order.
type Resolution string

const (
	ResolutionRefundBuyer Resolution = "refund_buyer"
	ResolutionPaySeller   Resolution = "pay_seller"
)

// Order is the contract-owned escrow record. Amount is set once at creation
// and only ever transferred out atomically with the status flip.
type Order struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Buyer       uuid.UUID       `json:"buyer"`
	Seller      uuid.UUID       `json:"seller"`
	ListingID   uuid.UUID       `json:"listing_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Resolution  Resolution      `json:"resolution,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Receipt reports how a completed escrow was split.
type Receipt struct {
	SellerAmount   decimal.Decimal `json:"seller_amount"`
	CooperativeFee decimal.Decimal `json:"cooperative_fee"`
}

type Contract struct {
	mu       sync.Mutex
	owner    uuid.UUID
	feePct   int
	orders   map[uuid.UUID]*Order
	balances map[uuid.UUID]decimal.Decimal
	now      func() time.Time
	log      *zap.Logger
}

// NewContract initializes the contract with the cooperative owner account
// and an integer platform fee percentage. The fee is bounded to [0,10] and
// immutable afterwards.
func NewContract(owner uuid.UUID, feePct int, log *zap.Logger) (*Contract, error) {
	if !fees.ValidFeePercentage(feePct) {
		return nil, fmt.Errorf("%w: platform fee must be between 0 and %d percent", domain.ErrValidation, fees.MaxFeePercentage)
	}
	return &Contract{
		owner:    owner,
		feePct:   feePct,
		orders:   make(map[uuid.UUID]*Order),
		balances: make(map[uuid.UUID]decimal.Decimal),
		now:      time.Now,
		log:      log,
	}, nil
}

// Deposit credits an account balance, standing in for an inbound transfer
// from the account's wallet.
func (c *Contract) Deposit(account uuid.UUID, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be positive", domain.ErrValidation)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = c.balances[account].Add(amount)
	return nil
}

// BalanceOf returns the free (unlocked) balance of an account.
func (c *Contract) BalanceOf(account uuid.UUID) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[account]
}

// CreateOrder locks the buyer's deposit for an order. The deposit must be
// exactly the order amount, the order id must be fresh, and buyer and
// seller must differ.
func (c *Contract) CreateOrder(orderID, buyer, seller, listingID uuid.UUID, quantity, amount, deposit decimal.Decimal) (*Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: order amount must be positive", domain.ErrValidation)
	}
	if quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if buyer == seller {
		return nil, fmt.Errorf("%w: buyer and seller must be different", domain.ErrValidation)
	}
	if !deposit.Equal(amount) {
		return nil, fmt.Errorf("%w: attached %s, order amount %s", domain.ErrAmountMismatch, deposit, amount)
	}
	if _, ok := c.orders[orderID]; ok {
		return nil, fmt.Errorf("%w: escrow for order %s", domain.ErrAlreadyExists, orderID)
	}
	if c.balances[buyer].LessThan(deposit) {
		return nil, fmt.Errorf("%w: buyer balance %s below deposit %s", domain.ErrValidation, c.balances[buyer], deposit)
	}

	c.balances[buyer] = c.balances[buyer].Sub(deposit)
	order := &Order{
		OrderID:   orderID,
		Buyer:     buyer,
		Seller:    seller,
		ListingID: listingID,
		Quantity:  quantity,
		Amount:    amount,
		Status:    models.EscrowStatusPending,
		CreatedAt: c.now(),
	}
	c.orders[orderID] = order

	c.log.Info("escrow created",
		zap.String("order_id", orderID.String()),
		zap.String("buyer", buyer.String()),
		zap.String("amount", amount.String()),
	)
	return copyOrder(order), nil
}

// CompleteOrder releases the locked funds to the seller minus the platform
// fee, which goes to the cooperative owner. Only the buyer may complete a
// pending escrow; only the owner may complete a disputed one. The transfer
// and the status flip happen in the same critical section.
func (c *Contract) CompleteOrder(orderID, caller uuid.UUID) (Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: escrow for order %s", domain.ErrNotFound, orderID)
	}

	switch order.Status {
	case models.EscrowStatusPending:
		if caller != order.Buyer {
			return Receipt{}, fmt.Errorf("%w: only the buyer can complete the order", domain.ErrForbidden)
		}
	case models.EscrowStatusDisputed:
		if caller != c.owner {
			return Receipt{}, fmt.Errorf("%w: only the owner can complete a disputed order", domain.ErrForbidden)
		}
	default:
		return Receipt{}, fmt.Errorf("%w: escrow is %s", domain.ErrInvalidTransition, order.Status)
	}

	sellerAmount, fee := fees.Split(order.Amount, c.feePct)
	c.balances[order.Seller] = c.balances[order.Seller].Add(sellerAmount)
	if fee.Sign() > 0 {
		c.balances[c.owner] = c.balances[c.owner].Add(fee)
	}

	now := c.now()
	order.Status = models.EscrowStatusCompleted
	order.CompletedAt = &now

	c.log.Info("escrow completed",
		zap.String("order_id", orderID.String()),
		zap.String("seller_amount", sellerAmount.String()),
		zap.String("cooperative_fee", fee.String()),
	)
	return Receipt{SellerAmount: sellerAmount, CooperativeFee: fee}, nil
}

// RefundOrder returns the full locked amount to the buyer. The seller or
// the owner may refund a pending escrow; only the owner may refund a
// disputed one.
func (c *Contract) RefundOrder(orderID, caller uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: escrow for order %s", domain.ErrNotFound, orderID)
	}

	switch order.Status {
	case models.EscrowStatusPending:
		if caller != order.Seller && caller != c.owner {
			return fmt.Errorf("%w: only the seller or owner can refund the order", domain.ErrForbidden)
		}
	case models.EscrowStatusDisputed:
		if caller != c.owner {
			return fmt.Errorf("%w: only the owner can refund a disputed order", domain.ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: escrow is %s", domain.ErrInvalidTransition, order.Status)
	}

	c.balances[order.Buyer] = c.balances[order.Buyer].Add(order.Amount)

	now := c.now()
	order.Status = models.EscrowStatusRefunded
	order.CompletedAt = &now

	c.log.Info("escrow refunded",
		zap.String("order_id", orderID.String()),
		zap.String("amount", order.Amount.String()),
	)
	return nil
}

// DisputeOrder flags a pending escrow for owner resolution. Either party
// may dispute; no funds move.
func (c *Contract) DisputeOrder(orderID, caller uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: escrow for order %s", domain.ErrNotFound, orderID)
	}
	if order.Status != models.EscrowStatusPending {
		return fmt.Errorf("%w: escrow is %s", domain.ErrInvalidTransition, order.Status)
	}
	if caller != order.Buyer && caller != order.Seller {
		return fmt.Errorf("%w: only the buyer or seller can dispute the order", domain.ErrForbidden)
	}

	order.Status = models.EscrowStatusDisputed

	c.log.Info("escrow disputed", zap.String("order_id", orderID.String()))
	return nil
}

// ResolveDispute settles a disputed escrow by owner decision: a full refund
// to the buyer, or a fee-split payout to the seller. Terminal either way.
func (c *Contract) ResolveDispute(orderID, caller uuid.UUID, resolution Resolution) (Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		return Receipt{}, fmt.Errorf("%w: only the owner can resolve disputes", domain.ErrForbidden)
	}
	order, ok := c.orders[orderID]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: escrow for order %s", domain.ErrNotFound, orderID)
	}
	if order.Status != models.EscrowStatusDisputed {
		return Receipt{}, fmt.Errorf("%w: escrow is %s", domain.ErrInvalidTransition, order.Status)
	}

	var receipt Receipt
	switch resolution {
	case ResolutionRefundBuyer:
		c.balances[order.Buyer] = c.balances[order.Buyer].Add(order.Amount)
	case ResolutionPaySeller:
		sellerAmount, fee := fees.Split(order.Amount, c.feePct)
		c.balances[order.Seller] = c.balances[order.Seller].Add(sellerAmount)
		if fee.Sign() > 0 {
			c.balances[c.owner] = c.balances[c.owner].Add(fee)
		}
		receipt = Receipt{SellerAmount: sellerAmount, CooperativeFee: fee}
	default:
		return Receipt{}, fmt.Errorf("%w: unknown resolution %q", domain.ErrValidation, resolution)
	}

	now := c.now()
	order.Status = models.EscrowStatusResolved
	order.Resolution = resolution
	order.CompletedAt = &now

	c.log.Info("dispute resolved",
		zap.String("order_id", orderID.String()),
		zap.String("resolution", string(resolution)),
	)
	return receipt, nil
}

// GetOrder returns the escrow record for an order.
func (c *Contract) GetOrder(orderID uuid.UUID) (*Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow for order %s", domain.ErrNotFound, orderID)
	}
	return copyOrder(order), nil
}

// GetBuyerOrders returns all escrow records where the account is the buyer.
func (c *Contract) GetBuyerOrders(buyer uuid.UUID) []*Order {
	return c.filterOrders(func(o *Order) bool { return o.Buyer == buyer })
}

// GetSellerOrders returns all escrow records where the account is the seller.
func (c *Contract) GetSellerOrders(seller uuid.UUID) []*Order {
	return c.filterOrders(func(o *Order) bool { return o.Seller == seller })
}

// GetPlatformFee returns the immutable fee percentage.
func (c *Contract) GetPlatformFee() int {
	return c.feePct
}

// Owner returns the cooperative owner account.
func (c *Contract) Owner() uuid.UUID {
	return c.owner
}

func (c *Contract) filterOrders(keep func(*Order) bool) []*Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Order
	for _, o := range c.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func copyOrder(o *Order) *Order {
	cp := *o
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
