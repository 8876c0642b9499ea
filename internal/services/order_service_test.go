package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/locker"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestOrderService(ms *memStore) (*OrderService, *fakePublisher) {
	pub := &fakePublisher{}
	svc := NewOrderService(ms, listingView{ms}, auditView{ms}, pub, locker.NewKeyedMutex(), zap.NewNop())
	return svc, pub
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOrderCreate(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, pub := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	listingID := ms.addListing(models.Listing{
		MemberID:  sellerID,
		Name:      "olive oil 5L",
		Quantity:  dec("10"),
		UnitPrice: dec("25.00"),
	})

	order, err := svc.Create(ctx, buyerID, listingID, dec("2"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if !order.TotalAmount.Equal(dec("50.00")) {
		t.Errorf("total = %s, want 50.00", order.TotalAmount)
	}
	if order.SellerID != sellerID {
		t.Errorf("seller = %s, want %s", order.SellerID, sellerID)
	}
	if got := ms.countAudit("order_created"); got != 1 {
		t.Errorf("order_created audit entries = %d, want 1", got)
	}
	if got := pub.types(); len(got) != 1 {
		t.Errorf("published events = %v, want one", got)
	}
}

func TestOrderCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	available := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("10")})
	archived := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("10"), Availability: models.AvailabilityArchived})

	tests := []struct {
		name     string
		buyer    uuid.UUID
		listing  uuid.UUID
		quantity decimal.Decimal
		wantErr  error
	}{
		{"zero quantity", buyerID, available, dec("0"), domain.ErrValidation},
		{"negative quantity", buyerID, available, dec("-1"), domain.ErrValidation},
		{"unknown listing", buyerID, uuid.New(), dec("1"), domain.ErrUnavailable},
		{"archived listing", buyerID, archived, dec("1"), domain.ErrUnavailable},
		{"own listing", sellerID, available, dec("1"), domain.ErrValidation},
		{"exceeds listed quantity", buyerID, available, dec("6"), domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.buyer, tt.listing, tt.quantity)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderAccept(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("10"), UnitPrice: dec("3.50")})

	order, err := svc.Create(ctx, buyerID, listingID, dec("4"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Accept(ctx, order.ID, buyerID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Accept by non-seller error = %v, want ErrForbidden", err)
	}

	accepted, err := svc.Accept(ctx, order.ID, sellerID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != models.OrderStatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	l, _ := ms.GetListingByID(ctx, listingID)
	if !l.Quantity.Equal(dec("6")) {
		t.Errorf("listing quantity = %s, want 6", l.Quantity)
	}

	if _, err := svc.Accept(ctx, order.ID, sellerID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double Accept error = %v, want ErrInvalidTransition", err)
	}
	if got := ms.countAudit("order_accepted"); got != 1 {
		t.Errorf("order_accepted audit entries = %d, want 1", got)
	}
}

func TestOrderAcceptInsufficientInventory(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("1")})

	first, err := svc.Create(ctx, uuid.New(), listingID, dec("4"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(ctx, uuid.New(), listingID, dec("4"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Accept(ctx, first.ID, sellerID); err != nil {
		t.Fatalf("Accept first: %v", err)
	}
	if _, err := svc.Accept(ctx, second.ID, sellerID); !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Errorf("Accept second error = %v, want ErrInsufficientInventory", err)
	}
	got, _ := ms.GetByID(ctx, second.ID)
	if got.Status != models.OrderStatusPending {
		t.Errorf("second order status = %s, want pending", got.Status)
	}
}

func TestOrderReject(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("1")})
	order, err := svc.Create(ctx, uuid.New(), listingID, dec("1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Reject(ctx, order.ID, uuid.New()); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Reject by stranger error = %v, want ErrForbidden", err)
	}
	rejected, err := svc.Reject(ctx, order.ID, sellerID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.OrderStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	l, _ := ms.GetListingByID(ctx, listingID)
	if !l.Quantity.Equal(dec("5")) {
		t.Errorf("listing quantity = %s, want untouched 5", l.Quantity)
	}
	if _, err := svc.Reject(ctx, order.ID, sellerID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double Reject error = %v, want ErrInvalidTransition", err)
	}
}

func TestOrderCancelPending(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("1")})
	order, err := svc.Create(ctx, buyerID, listingID, dec("1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stranger := uuid.New()
	if _, err := svc.CancelPending(ctx, order.ID, &stranger, models.ActorTypeMember); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("cancel by stranger error = %v, want ErrForbidden", err)
	}
	cancelled, err := svc.CancelPending(ctx, order.ID, &buyerID, models.ActorTypeMember)
	if err != nil {
		t.Fatalf("CancelPending: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
}

func TestOrderCancelPendingRejectsAccepted(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("1")})
	order, err := svc.Create(ctx, buyerID, listingID, dec("1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Accept(ctx, order.ID, sellerID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := svc.CancelPending(ctx, order.ID, &buyerID, models.ActorTypeMember); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("cancel accepted error = %v, want ErrInvalidTransition", err)
	}
}

func TestOrderGetPartyCheck(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	svc, _ := newTestOrderService(ms)

	sellerID := uuid.New()
	buyerID := uuid.New()
	listingID := ms.addListing(models.Listing{MemberID: sellerID, Quantity: dec("5"), UnitPrice: dec("1")})
	order, err := svc.Create(ctx, buyerID, listingID, dec("1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, caller := range []uuid.UUID{buyerID, sellerID} {
		if _, err := svc.Get(ctx, order.ID, caller, false); err != nil {
			t.Errorf("Get as party %s: %v", caller, err)
		}
	}
	if _, err := svc.Get(ctx, order.ID, uuid.New(), false); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Get as stranger error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, order.ID, uuid.New(), true); err != nil {
		t.Errorf("Get as operator: %v", err)
	}
}
