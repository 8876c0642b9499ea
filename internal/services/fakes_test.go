package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/events"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is a single in-memory ledger implementing every store
// interface the services need, with the same sentinel-error semantics as
// the pgx repositories. failX counters inject that many transient
// failures before the call succeeds.
type memStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*models.Order
	listings map[uuid.UUID]*models.Listing
	txs      map[uuid.UUID]*models.Transaction
	mirrors  map[uuid.UUID]*models.EscrowMirror
	audits   []models.AuditEntry

	failCreateTx     int
	failFinalize     int
	failUpdateStatus int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]*models.Order),
		listings: make(map[uuid.UUID]*models.Listing),
		txs:      make(map[uuid.UUID]*models.Transaction),
		mirrors:  make(map[uuid.UUID]*models.EscrowMirror),
	}
}

func (m *memStore) Create(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateStatus > 0 {
		m.failUpdateStatus--
		return fmt.Errorf("%w: update order status: boom", domain.ErrExternal)
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return fmt.Errorf("%w: order %s is not %s", domain.ErrInvalidTransition, id, from)
	}
	o.Status = to
	return nil
}

func (m *memStore) AcceptWithInventory(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[o.ListingID]
	if !ok {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, o.ListingID)
	}
	if l.Quantity.LessThan(o.Quantity) {
		return fmt.Errorf("%w: listing has %s, order wants %s", domain.ErrInsufficientInventory, l.Quantity, o.Quantity)
	}
	stored, ok := m.orders[o.ID]
	if !ok || stored.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: order %s is not pending", domain.ErrInvalidTransition, o.ID)
	}
	l.Quantity = l.Quantity.Sub(o.Quantity)
	stored.Status = models.OrderStatusAccepted
	return nil
}

func (m *memStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *memStore) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.SellerID == sellerID }), nil
}

func (m *memStore) ListAcceptedUninitiated(ctx context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.Status != models.OrderStatusAccepted {
			continue
		}
		if _, ok := m.txs[o.ID]; ok {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) listOrders(keep func(*models.Order) bool) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out
}

func (m *memStore) addListing(l models.Listing) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Availability == "" {
		l.Availability = models.AvailabilityAvailable
	}
	m.listings[l.ID] = &l
	return l.ID
}

func (m *memStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) Restock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}
	l.Quantity = l.Quantity.Add(quantity)
	return nil
}

// listingView adapts memStore to ListingStore; GetByID on memStore is
// taken by OrderStore.
type listingView struct{ *memStore }

func (v listingView) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return v.GetListingByID(ctx, id)
}

type txView struct{ *memStore }

func (v txView) Create(ctx context.Context, t *models.Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failCreateTx > 0 {
		v.failCreateTx--
		return fmt.Errorf("%w: create transaction: boom", domain.ErrExternal)
	}
	if _, ok := v.txs[t.OrderID]; ok {
		return fmt.Errorf("%w: transaction for order %s", domain.ErrAlreadyExists, t.OrderID)
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	v.txs[t.OrderID] = &cp
	return nil
}

func (v txView) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.txs[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: transaction for order %s", domain.ErrNotFound, orderID)
	}
	cp := *t
	return &cp, nil
}

func (v txView) Finalize(ctx context.Context, orderID uuid.UUID, status string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failFinalize > 0 {
		v.failFinalize--
		return fmt.Errorf("%w: finalize transaction: boom", domain.ErrExternal)
	}
	t, ok := v.txs[orderID]
	if !ok || t.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: transaction for order %s is not pending", domain.ErrInvalidTransition, orderID)
	}
	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	return nil
}

func (v txView) ListPending(ctx context.Context, limit int) ([]models.Transaction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []models.Transaction
	for _, t := range v.txs {
		if t.Status == models.TransactionStatusPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

type mirrorView struct{ *memStore }

func (v mirrorView) Create(ctx context.Context, e *models.EscrowMirror) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.mirrors[e.OrderID]; ok {
		return nil
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	v.mirrors[e.OrderID] = &cp
	return nil
}

func (v mirrorView) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowMirror, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.mirrors[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow mirror for order %s", domain.ErrNotFound, orderID)
	}
	cp := *e
	return &cp, nil
}

func (v mirrorView) MarkResolved(ctx context.Context, orderID uuid.UUID, status string, sellerAmount, fee *decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.mirrors[orderID]
	if !ok {
		return nil
	}
	now := time.Now()
	e.Status = status
	e.SellerAmount = sellerAmount
	e.CooperativeFee = fee
	e.ResolvedAt = &now
	return nil
}

func (v mirrorView) MarkDisputed(ctx context.Context, orderID uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.mirrors[orderID]; ok && e.Status == models.EscrowStatusPending {
		e.Status = models.EscrowStatusDisputed
	}
	return nil
}

type auditView struct{ *memStore }

func (v auditView) Log(ctx context.Context, entry models.AuditEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	v.audits = append(v.audits, entry)
	return nil
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

func (m *memStore) countAudit(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.audits {
		if a.Action == action {
			n++
		}
	}
	return n
}

type capturedEvent struct {
	Stream string
	Event  events.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Stream: stream, Event: event})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Event.Type)
	}
	return out
}

type notification struct {
	Recipient uuid.UUID
	Event     string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientID uuid.UUID, event string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Recipient: recipientID, Event: event})
}
