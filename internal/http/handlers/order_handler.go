package handlers

import (
	"strconv"

	"github.com/Project-DOFTA/dft/internal/escrow"
	"github.com/Project-DOFTA/dft/internal/http/dto"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/Project-DOFTA/dft/internal/repositories"
	"github.com/Project-DOFTA/dft/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders *services.OrderService
	coord  *services.TransactionCoordinator
	audit  *repositories.AuditRepo
	log    *zap.Logger
}

func NewOrderHandler(orders *services.OrderService, coord *services.TransactionCoordinator, audit *repositories.AuditRepo, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, coord: coord, audit: audit, log: log}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing_id"})
	}
	quantity, err := parsePositiveDecimal(req.Quantity, "quantity")
	if err != nil {
		return respondError(c, h.log, err)
	}

	order, err := h.orders.Create(c.Context(), middleware.GetMemberID(c), listingID, quantity)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	order, err := h.orders.Get(c.Context(), orderID, middleware.GetMemberID(c), middleware.IsOperator(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	memberID := middleware.GetMemberID(c)
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	var (
		orders []models.Order
		err    error
	)
	switch c.Query("role") {
	case "seller":
		orders, err = h.orders.ListBySeller(c.Context(), memberID, limit, offset)
	default:
		orders, err = h.orders.ListByBuyer(c.Context(), memberID, limit, offset)
	}
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) Accept(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	order, err := h.orders.Accept(c.Context(), orderID, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) Reject(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	order, err := h.orders.Reject(c.Context(), orderID, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	memberID := middleware.GetMemberID(c)
	order, err := h.orders.CancelPending(c.Context(), orderID, &memberID, models.ActorTypeMember)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// FundEscrow locks the buyer's deposit and opens the transaction.
func (h *OrderHandler) FundEscrow(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	memberID := middleware.GetMemberID(c)
	tx, err := h.coord.Initiate(c.Context(), orderID, &memberID, models.ActorTypeMember)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *OrderHandler) Complete(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	tx, err := h.coord.ConfirmCompletion(c.Context(), orderID, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *OrderHandler) Refund(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	tx, err := h.coord.RequestRefund(c.Context(), orderID, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *OrderHandler) Dispute(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	if err := h.coord.RaiseDispute(c.Context(), orderID, middleware.GetMemberID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Resolve is operator-only, enforced by the router.
func (h *OrderHandler) Resolve(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	resolution := escrow.Resolution(req.Resolution)
	if resolution != escrow.ResolutionRefundBuyer && resolution != escrow.ResolutionPaySeller {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "resolution must be refund_buyer or pay_seller"})
	}

	tx, err := h.coord.Resolve(c.Context(), orderID, middleware.GetMemberID(c), resolution)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *OrderHandler) Payment(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	tx, err := h.coord.GetTransaction(c.Context(), orderID, middleware.GetMemberID(c), middleware.IsOperator(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *OrderHandler) Escrow(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	esc, err := h.coord.EscrowStatus(c.Context(), orderID, middleware.GetMemberID(c), middleware.IsOperator(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: esc})
}

// Events returns the audit trail of an order.
func (h *OrderHandler) Events(c *fiber.Ctx) error {
	orderID, ok := parseOrderID(c)
	if !ok {
		return nil
	}
	if _, err := h.orders.Get(c.Context(), orderID, middleware.GetMemberID(c), middleware.IsOperator(c)); err != nil {
		return respondError(c, h.log, err)
	}
	entries, err := h.audit.GetByResource(c.Context(), "order", orderID, 100, 0)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

func parseOrderID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}
