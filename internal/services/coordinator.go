package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/escrow"
	"github.com/Project-DOFTA/dft/internal/events"
	"github.com/Project-DOFTA/dft/internal/fees"
	"github.com/Project-DOFTA/dft/internal/locker"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoordinatorOptions tunes the retry policy for ledger writes that run
// after escrow funds have already moved.
type CoordinatorOptions struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	CallTimeout   time.Duration
}

// TransactionCoordinator drives the escrow lifecycle and keeps the ledger
// in step with the contract. The contract is the source of truth for
// funds; the coordinator never moves money itself, it only records what
// the contract did and completes the order state machine accordingly.
//
// Contract calls are forward-only. Once funds have transferred, every
// ledger write is retried, and sustained failure is surfaced as
// ErrInconsistent together with a settlement_failed event so the
// reconcile loop and operators can converge the ledger later.
type TransactionCoordinator struct {
	orders   OrderStore
	listings ListingStore
	txs      TransactionStore
	mirrors  EscrowMirrorStore
	audit    AuditStore
	contract *escrow.Contract
	pub      events.Publisher
	notifier Notifier
	locks    *locker.KeyedMutex
	opts     CoordinatorOptions
	log      *zap.Logger
}

func NewTransactionCoordinator(
	orders OrderStore,
	listings ListingStore,
	txs TransactionStore,
	mirrors EscrowMirrorStore,
	audit AuditStore,
	contract *escrow.Contract,
	pub events.Publisher,
	notifier Notifier,
	locks *locker.KeyedMutex,
	opts CoordinatorOptions,
	log *zap.Logger,
) *TransactionCoordinator {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	return &TransactionCoordinator{
		orders:   orders,
		listings: listings,
		txs:      txs,
		mirrors:  mirrors,
		audit:    audit,
		contract: contract,
		pub:      pub,
		notifier: notifier,
		locks:    locks,
		opts:     opts,
		log:      log,
	}
}

// Initiate locks the buyer's deposit in the contract and opens the
// bookkeeping transaction for an accepted order. Safe to call more than
// once: a transaction that already exists is returned as-is, and an
// escrow record that already exists is tolerated.
func (c *TransactionCoordinator) Initiate(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.Transaction, error) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorType == models.ActorTypeMember && actorID != nil && *actorID != order.BuyerID {
		return nil, fmt.Errorf("%w: only the buyer funds the escrow", domain.ErrForbidden)
	}
	if order.Status != models.OrderStatusAccepted {
		return nil, fmt.Errorf("%w: escrow requires an accepted order, got %s", domain.ErrInvalidTransition, order.Status)
	}

	if existing, err := c.txs.GetByOrderID(ctx, orderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	_, err = c.contract.CreateOrder(order.ID, order.BuyerID, order.SellerID, order.ListingID,
		order.Quantity, order.TotalAmount, order.TotalAmount)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, err
	}

	// Funds are locked from here on; the ledger row must eventually exist.
	_, projectedFee := fees.Split(order.TotalAmount, c.contract.GetPlatformFee())
	tx := &models.Transaction{
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		CooperativeFee: projectedFee,
		Status:         models.TransactionStatusPending,
	}
	err = c.withRetry(ctx, "create transaction", func(ctx context.Context) error {
		return c.txs.Create(ctx, tx)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return c.txs.GetByOrderID(ctx, orderID)
		}
		return nil, c.inconsistent(ctx, orderID, "initiate", err)
	}

	if merr := c.mirrors.Create(ctx, &models.EscrowMirror{
		OrderID: order.ID,
		Amount:  order.TotalAmount,
		Status:  models.EscrowStatusPending,
	}); merr != nil {
		c.log.Warn("escrow mirror write failed", zap.String("order_id", orderID.String()), zap.Error(merr))
	}

	c.recordAudit(ctx, actorID, actorType, "escrow_created", orderID, map[string]any{
		"amount": order.TotalAmount,
	})
	c.publish(ctx, events.EventEscrowCreated, map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalAmount,
	})
	c.notify(ctx, order.SellerID, "escrow_funded", map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalAmount,
	})
	return tx, nil
}

// ConfirmCompletion is the buyer releasing the escrow. The contract pays
// the seller minus the cooperative fee, then the ledger is settled. A
// replay after a crash between the contract call and the ledger writes
// picks up the completed escrow and finishes settlement.
func (c *TransactionCoordinator) ConfirmCompletion(ctx context.Context, orderID, callerID uuid.UUID) (*models.Transaction, error) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	receipt, err := c.contract.CompleteOrder(orderID, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if esc, gerr := c.contract.GetOrder(orderID); gerr == nil && esc.Status == models.EscrowStatusCompleted {
				sellerAmount, fee := fees.Split(esc.Amount, c.contract.GetPlatformFee())
				return c.settle(ctx, order, escrow.Receipt{SellerAmount: sellerAmount, CooperativeFee: fee},
					models.EscrowStatusCompleted, &callerID, models.ActorTypeMember)
			}
		}
		return nil, err
	}

	c.recordAudit(ctx, &callerID, models.ActorTypeMember, "escrow_completed", orderID, map[string]any{
		"seller_amount":   receipt.SellerAmount,
		"cooperative_fee": receipt.CooperativeFee,
	})
	return c.settle(ctx, order, receipt, models.EscrowStatusCompleted, &callerID, models.ActorTypeMember)
}

// RequestRefund returns the locked amount to the buyer. The contract
// enforces who may refund (seller or owner on pending, owner on
// disputed); the coordinator then reverses the ledger.
func (c *TransactionCoordinator) RequestRefund(ctx context.Context, orderID, callerID uuid.UUID) (*models.Transaction, error) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := c.contract.RefundOrder(orderID, callerID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if esc, gerr := c.contract.GetOrder(orderID); gerr == nil && esc.Status == models.EscrowStatusRefunded {
				return c.abort(ctx, order, models.EscrowStatusRefunded, &callerID, models.ActorTypeMember)
			}
		}
		return nil, err
	}

	c.recordAudit(ctx, &callerID, models.ActorTypeMember, "escrow_refunded", orderID, map[string]any{
		"amount": order.TotalAmount,
	})
	return c.abort(ctx, order, models.EscrowStatusRefunded, &callerID, models.ActorTypeMember)
}

// RaiseDispute freezes a pending escrow for owner resolution. No funds
// move and the order stays accepted until the dispute is resolved.
func (c *TransactionCoordinator) RaiseDispute(ctx context.Context, orderID, callerID uuid.UUID) error {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := c.contract.DisputeOrder(orderID, callerID); err != nil {
		return err
	}

	if merr := c.mirrors.MarkDisputed(ctx, orderID); merr != nil {
		c.log.Warn("escrow mirror dispute flag failed", zap.String("order_id", orderID.String()), zap.Error(merr))
	}

	c.recordAudit(ctx, &callerID, models.ActorTypeMember, "escrow_disputed", orderID, nil)
	c.publish(ctx, events.EventEscrowDisputed, map[string]any{"order_id": orderID})

	counterparty := order.SellerID
	if callerID == order.SellerID {
		counterparty = order.BuyerID
	}
	c.notify(ctx, counterparty, "order_disputed", map[string]any{"order_id": orderID})
	return nil
}

// Resolve settles a disputed escrow by operator decision. The contract
// call runs under the cooperative owner account; RBAC for which members
// count as operators happens at the transport layer.
func (c *TransactionCoordinator) Resolve(ctx context.Context, orderID, operatorID uuid.UUID, resolution escrow.Resolution) (*models.Transaction, error) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	receipt, err := c.contract.ResolveDispute(orderID, c.contract.Owner(), resolution)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if esc, gerr := c.contract.GetOrder(orderID); gerr == nil && esc.Status == models.EscrowStatusResolved {
				return c.replayResolved(ctx, order, esc, &operatorID, models.ActorTypeOperator)
			}
		}
		return nil, err
	}

	c.recordAudit(ctx, &operatorID, models.ActorTypeOperator, "dispute_resolved", orderID, map[string]any{
		"resolution": string(resolution),
	})
	if resolution == escrow.ResolutionPaySeller {
		return c.settle(ctx, order, receipt, models.EscrowStatusResolved, &operatorID, models.ActorTypeOperator)
	}
	return c.abort(ctx, order, models.EscrowStatusResolved, &operatorID, models.ActorTypeOperator)
}

// GetTransaction returns the bookkeeping row for an order to one of its
// parties.
func (c *TransactionCoordinator) GetTransaction(ctx context.Context, orderID, callerID uuid.UUID, isOperator bool) (*models.Transaction, error) {
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isOperator && order.BuyerID != callerID && order.SellerID != callerID {
		return nil, fmt.Errorf("%w: not a party to this order", domain.ErrForbidden)
	}
	return c.txs.GetByOrderID(ctx, orderID)
}

// EscrowStatus reads the authoritative contract record for an order.
func (c *TransactionCoordinator) EscrowStatus(ctx context.Context, orderID, callerID uuid.UUID, isOperator bool) (*escrow.Order, error) {
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isOperator && order.BuyerID != callerID && order.SellerID != callerID {
		return nil, fmt.Errorf("%w: not a party to this order", domain.ErrForbidden)
	}
	return c.contract.GetOrder(orderID)
}

// Reconcile converges the ledger with the contract: pending transactions
// whose escrow has already resolved are settled or reversed, and accepted
// orders that never got a transaction are re-initiated. Returns how many
// orders were repaired.
func (c *TransactionCoordinator) Reconcile(ctx context.Context, limit int) (int, error) {
	repaired := 0

	pending, err := c.txs.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	for _, tx := range pending {
		converged, err := c.reconcileOne(ctx, tx.OrderID)
		if err != nil {
			c.log.Warn("reconcile failed", zap.String("order_id", tx.OrderID.String()), zap.Error(err))
			continue
		}
		if converged {
			repaired++
		}
	}

	stranded, err := c.orders.ListAcceptedUninitiated(ctx, limit)
	if err != nil {
		return repaired, err
	}
	for _, o := range stranded {
		if _, err := c.Initiate(ctx, o.ID, nil, models.ActorTypeSystem); err != nil {
			c.log.Warn("re-initiate failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (c *TransactionCoordinator) reconcileOne(ctx context.Context, orderID uuid.UUID) (bool, error) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	esc, err := c.contract.GetOrder(orderID)
	if err != nil {
		return false, err
	}

	switch esc.Status {
	case models.EscrowStatusPending, models.EscrowStatusDisputed:
		return false, nil // nothing to converge yet
	case models.EscrowStatusCompleted:
		sellerAmount, fee := fees.Split(esc.Amount, c.contract.GetPlatformFee())
		_, err = c.settle(ctx, order, escrow.Receipt{SellerAmount: sellerAmount, CooperativeFee: fee},
			models.EscrowStatusCompleted, nil, models.ActorTypeSystem)
		return err == nil, err
	case models.EscrowStatusRefunded:
		_, err = c.abort(ctx, order, models.EscrowStatusRefunded, nil, models.ActorTypeSystem)
		return err == nil, err
	case models.EscrowStatusResolved:
		_, err = c.replayResolved(ctx, order, esc, nil, models.ActorTypeSystem)
		return err == nil, err
	default:
		return false, fmt.Errorf("%w: unknown escrow status %q", domain.ErrInconsistent, esc.Status)
	}
}

func (c *TransactionCoordinator) replayResolved(ctx context.Context, order *models.Order, esc *escrow.Order, actorID *uuid.UUID, actorType string) (*models.Transaction, error) {
	if esc.Resolution == escrow.ResolutionPaySeller {
		sellerAmount, fee := fees.Split(esc.Amount, c.contract.GetPlatformFee())
		return c.settle(ctx, order, escrow.Receipt{SellerAmount: sellerAmount, CooperativeFee: fee},
			models.EscrowStatusResolved, actorID, actorType)
	}
	return c.abort(ctx, order, models.EscrowStatusResolved, actorID, actorType)
}

// settle finishes the ledger side of a payout: the transaction becomes
// completed, the order becomes completed, the mirror records the split.
// Conditional store writes make replays no-ops, so at most one audit
// entry is written per real transition.
func (c *TransactionCoordinator) settle(ctx context.Context, order *models.Order, receipt escrow.Receipt, mirrorStatus string, actorID *uuid.UUID, actorType string) (*models.Transaction, error) {
	err := c.withRetry(ctx, "finalize transaction", func(ctx context.Context) error {
		return c.txs.Finalize(ctx, order.ID, models.TransactionStatusCompleted)
	})
	switch {
	case err == nil:
		c.recordAudit(ctx, actorID, actorType, "transaction_settled", order.ID, map[string]any{
			"seller_amount":   receipt.SellerAmount,
			"cooperative_fee": receipt.CooperativeFee,
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		// already finalized by an earlier attempt
	default:
		return nil, c.inconsistent(ctx, order.ID, "settle", err)
	}

	if err := c.completeOrder(ctx, order, models.OrderStatusCompleted, "order_completed", actorID, actorType); err != nil {
		return nil, err
	}

	if merr := c.mirrors.MarkResolved(ctx, order.ID, mirrorStatus, &receipt.SellerAmount, &receipt.CooperativeFee); merr != nil {
		c.log.Warn("escrow mirror resolve failed", zap.String("order_id", order.ID.String()), zap.Error(merr))
	}
	c.publish(ctx, events.EventEscrowResolved, map[string]any{
		"order_id":        order.ID,
		"outcome":         mirrorStatus,
		"seller_amount":   receipt.SellerAmount,
		"cooperative_fee": receipt.CooperativeFee,
	})
	c.notify(ctx, order.SellerID, "payment_released", map[string]any{
		"order_id": order.ID,
		"amount":   receipt.SellerAmount,
	})
	c.notify(ctx, order.BuyerID, "order_completed", map[string]any{"order_id": order.ID})

	return c.txs.GetByOrderID(ctx, order.ID)
}

// abort reverses the ledger after a refund: the transaction becomes
// reversed, the order is cancelled, reserved inventory goes back to the
// listing.
func (c *TransactionCoordinator) abort(ctx context.Context, order *models.Order, mirrorStatus string, actorID *uuid.UUID, actorType string) (*models.Transaction, error) {
	err := c.withRetry(ctx, "reverse transaction", func(ctx context.Context) error {
		return c.txs.Finalize(ctx, order.ID, models.TransactionStatusReversed)
	})
	restock := false
	switch {
	case err == nil:
		restock = true
		c.recordAudit(ctx, actorID, actorType, "transaction_reversed", order.ID, map[string]any{
			"amount": order.TotalAmount,
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		// already reversed by an earlier attempt
	default:
		return nil, c.inconsistent(ctx, order.ID, "abort", err)
	}

	if err := c.completeOrder(ctx, order, models.OrderStatusCancelled, "order_cancelled", actorID, actorType); err != nil {
		return nil, err
	}

	if restock {
		if rerr := c.listings.Restock(ctx, order.ListingID, order.Quantity); rerr != nil {
			c.log.Warn("restock failed", zap.String("listing_id", order.ListingID.String()), zap.Error(rerr))
		}
	}

	if merr := c.mirrors.MarkResolved(ctx, order.ID, mirrorStatus, nil, nil); merr != nil {
		c.log.Warn("escrow mirror resolve failed", zap.String("order_id", order.ID.String()), zap.Error(merr))
	}
	c.publish(ctx, events.EventEscrowResolved, map[string]any{
		"order_id": order.ID,
		"outcome":  mirrorStatus,
	})
	c.notify(ctx, order.BuyerID, "refund_issued", map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalAmount,
	})

	return c.txs.GetByOrderID(ctx, order.ID)
}

// completeOrder drives the order state machine to its terminal status.
// Losing the conditional update means another path already got there,
// which is fine.
func (c *TransactionCoordinator) completeOrder(ctx context.Context, order *models.Order, to, action string, actorID *uuid.UUID, actorType string) error {
	if order.Status != models.OrderStatusAccepted {
		return nil
	}
	err := c.withRetry(ctx, "update order status", func(ctx context.Context) error {
		return c.orders.UpdateStatus(ctx, order.ID, models.OrderStatusAccepted, to)
	})
	switch {
	case err == nil:
		prev := order.Status
		order.Status = to
		c.recordAudit(ctx, actorID, actorType, action, order.ID, map[string]any{
			"from": prev,
			"to":   to,
		})
		c.publish(ctx, events.EventOrderStatusChanged, map[string]any{
			"order_id":  order.ID,
			"buyer_id":  order.BuyerID,
			"seller_id": order.SellerID,
			"status":    to,
			"previous":  prev,
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		order.Status = to
	default:
		return c.inconsistent(ctx, order.ID, "complete order", err)
	}
	return nil
}

// withRetry runs fn under a per-call timeout, retrying transient store
// failures with exponential backoff. Domain errors pass through
// untouched on the first attempt.
func (c *TransactionCoordinator) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := c.opts.RetryBackoff
	var err error
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil || !errors.Is(err, domain.ErrExternal) {
			return err
		}
		c.log.Warn("ledger write failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == c.opts.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", domain.ErrExternal, op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// inconsistent reports a ledger that could not be converged after escrow
// funds moved. The pending-transaction reconcile loop, which runs in the
// same process as the contract, picks these up; operators are alerted
// through the event stream.
func (c *TransactionCoordinator) inconsistent(ctx context.Context, orderID uuid.UUID, op string, err error) error {
	c.log.Error("ledger out of step with escrow",
		zap.String("order_id", orderID.String()),
		zap.String("op", op),
		zap.Error(err),
	)
	c.publish(ctx, events.EventSettlementFailed, map[string]any{
		"order_id": orderID,
		"op":       op,
	})
	return fmt.Errorf("%w: %s for order %s: %v", domain.ErrInconsistent, op, orderID, err)
}

func (c *TransactionCoordinator) recordAudit(ctx context.Context, actorID *uuid.UUID, actorType, action string, orderID uuid.UUID, meta map[string]any) {
	entry := models.AuditEntry{
		ActorID:      actorID,
		ActorType:    actorType,
		Action:       action,
		ResourceType: "order",
		ResourceID:   &orderID,
		Meta:         meta,
	}
	if err := c.audit.Log(ctx, entry); err != nil {
		c.log.Error("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (c *TransactionCoordinator) publish(ctx context.Context, eventType string, payload map[string]any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, events.StreamOrders, events.Event{Type: eventType, Payload: payload}); err != nil {
		c.log.Warn("event publish failed", zap.Error(err))
	}
}

func (c *TransactionCoordinator) notify(ctx context.Context, recipientID uuid.UUID, event string, payload map[string]any) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, recipientID, event, payload)
}
