package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/events"
	"github.com/Project-DOFTA/dft/internal/locker"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService owns the order lifecycle up to acceptance. Everything
// after acceptance (escrow, settlement) belongs to the
// TransactionCoordinator, which drives the remaining transitions.
type OrderService struct {
	orders   OrderStore
	listings ListingStore
	audit    AuditStore
	pub      events.Publisher
	locks    *locker.KeyedMutex
	log      *zap.Logger
}

func NewOrderService(orders OrderStore, listings ListingStore, audit AuditStore, pub events.Publisher, locks *locker.KeyedMutex, log *zap.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		listings: listings,
		audit:    audit,
		pub:      pub,
		locks:    locks,
		log:      log,
	}
}

func (s *OrderService) Create(ctx context.Context, buyerID, listingID uuid.UUID, quantity decimal.Decimal) (*models.Order, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrUnavailable, listingID)
		}
		return nil, err
	}
	if listing.MemberID == buyerID {
		return nil, fmt.Errorf("%w: cannot order own listing", domain.ErrValidation)
	}
	if !listing.AvailableForPurchase() {
		return nil, fmt.Errorf("%w: listing %s is %s", domain.ErrUnavailable, listingID, listing.Availability)
	}
	if quantity.GreaterThan(listing.Quantity) {
		return nil, fmt.Errorf("%w: quantity %s exceeds listed %s", domain.ErrValidation, quantity, listing.Quantity)
	}

	order := &models.Order{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		SellerID:    listing.MemberID,
		ListingID:   listingID,
		Quantity:    quantity,
		UnitPrice:   listing.UnitPrice,
		TotalAmount: quantity.Mul(listing.UnitPrice),
		Status:      models.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, &buyerID, models.ActorTypeMember, "order_created", order.ID, map[string]any{
		"listing_id": listingID,
		"quantity":   quantity,
		"total":      order.TotalAmount,
	})
	s.publishStatus(ctx, order, "")
	return order, nil
}

// Accept flips a pending order to accepted and reserves inventory in
// the same database transaction. Only the seller may accept.
func (s *OrderService) Accept(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("%w: only the seller may accept", domain.ErrForbidden)
	}
	if !models.IsValidOrderTransition(order.Status, models.OrderStatusAccepted) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, order.Status, models.OrderStatusAccepted)
	}

	if err := s.orders.AcceptWithInventory(ctx, order); err != nil {
		return nil, err
	}
	prev := order.Status
	order.Status = models.OrderStatusAccepted

	s.recordAudit(ctx, &sellerID, models.ActorTypeMember, "order_accepted", order.ID, map[string]any{
		"from": prev,
		"to":   order.Status,
	})
	s.publishStatus(ctx, order, prev)
	return order, nil
}

// Reject is the seller declining a pending order. No inventory or
// funds have moved at this point, so it is a plain status flip.
func (s *OrderService) Reject(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("%w: only the seller may reject", domain.ErrForbidden)
	}
	if err := s.transition(ctx, order, models.OrderStatusRejected, &sellerID, models.ActorTypeMember, "order_rejected"); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelPending cancels an order that has not been accepted yet.
// Accepted orders are cancelled through the coordinator's refund path
// instead, because funds are locked by then.
func (s *OrderService) CancelPending(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, actorType string) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorType == models.ActorTypeMember && actorID != nil && *actorID != order.BuyerID {
		return nil, fmt.Errorf("%w: only the buyer may cancel", domain.ErrForbidden)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, order.Status, models.OrderStatusCancelled)
	}
	if err := s.transition(ctx, order, models.OrderStatusCancelled, actorID, actorType, "order_cancelled"); err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns an order to one of its parties. isOperator bypasses the
// party check for back-office reads.
func (s *OrderService) Get(ctx context.Context, orderID, callerID uuid.UUID, isOperator bool) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isOperator && order.BuyerID != callerID && order.SellerID != callerID {
		return nil, fmt.Errorf("%w: not a party to this order", domain.ErrForbidden)
	}
	return order, nil
}

func (s *OrderService) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID, limit, offset)
}

func (s *OrderService) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.orders.ListBySeller(ctx, sellerID, limit, offset)
}

// transition validates, persists and broadcasts a status change. The
// conditional update in the store is what makes concurrent callers
// safe: the loser of the race gets ErrInvalidTransition and no audit
// entry is written for it.
func (s *OrderService) transition(ctx context.Context, order *models.Order, to string, actorID *uuid.UUID, actorType, action string) error {
	if !models.IsValidOrderTransition(order.Status, to) {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, order.Status, to)
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, to); err != nil {
		return err
	}
	prev := order.Status
	order.Status = to

	s.recordAudit(ctx, actorID, actorType, action, order.ID, map[string]any{
		"from": prev,
		"to":   to,
	})
	s.publishStatus(ctx, order, prev)
	return nil
}

func (s *OrderService) recordAudit(ctx context.Context, actorID *uuid.UUID, actorType, action string, orderID uuid.UUID, meta map[string]any) {
	entry := models.AuditEntry{
		ActorID:      actorID,
		ActorType:    actorType,
		Action:       action,
		ResourceType: "order",
		ResourceID:   &orderID,
		Meta:         meta,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Error("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *OrderService) publishStatus(ctx context.Context, order *models.Order, prev string) {
	if s.pub == nil {
		return
	}
	payload := map[string]any{
		"order_id":  order.ID,
		"buyer_id":  order.BuyerID,
		"seller_id": order.SellerID,
		"status":    order.Status,
	}
	if prev != "" {
		payload["previous"] = prev
	}
	if err := s.pub.Publish(ctx, events.StreamOrders, events.Event{Type: events.EventOrderStatusChanged, Payload: payload}); err != nil {
		s.log.Warn("event publish failed", zap.Error(err))
	}
}
