package handlers

import (
	"fmt"
	"strconv"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/http/dto"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/Project-DOFTA/dft/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ListingHandler struct {
	listings *repositories.ListingRepo
	log      *zap.Logger
}

func NewListingHandler(listings *repositories.ListingRepo, log *zap.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, log: log}
}

func (h *ListingHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "name is required"})
	}
	quantity, err := parsePositiveDecimal(req.Quantity, "quantity")
	if err != nil {
		return respondError(c, h.log, err)
	}
	unitPrice, err := parsePositiveDecimal(req.UnitPrice, "unit_price")
	if err != nil {
		return respondError(c, h.log, err)
	}

	listing := &models.Listing{
		MemberID:     middleware.GetMemberID(c),
		Name:         req.Name,
		Description:  req.Description,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		Availability: models.AvailabilityAvailable,
	}
	if err := h.listings.Create(c.Context(), listing); err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}
	listing, err := h.listings.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) List(c *fiber.Ctx) error {
	filter := repositories.ListingFilter{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("availability"); v != "" {
		if !models.IsValidAvailability(v) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown availability filter"})
		}
		filter.Availability = &v
	}
	if v := c.Query("member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid member_id"})
		}
		filter.MemberID = &id
	}

	listings, err := h.listings.List(c.Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) Mine(c *fiber.Ctx) error {
	memberID := middleware.GetMemberID(c)
	listings, err := h.listings.List(c.Context(), repositories.ListingFilter{MemberID: &memberID, Limit: 100})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}
	var req dto.UpdateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	listing, err := h.listings.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if listing.MemberID != middleware.GetMemberID(c) {
		return respondError(c, h.log, fmt.Errorf("%w: only the owner may update the listing", domain.ErrForbidden))
	}

	if req.Name != nil {
		listing.Name = *req.Name
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Quantity != nil {
		quantity, err := parsePositiveDecimal(*req.Quantity, "quantity")
		if err != nil {
			return respondError(c, h.log, err)
		}
		listing.Quantity = quantity
	}
	if req.UnitPrice != nil {
		unitPrice, err := parsePositiveDecimal(*req.UnitPrice, "unit_price")
		if err != nil {
			return respondError(c, h.log, err)
		}
		listing.UnitPrice = unitPrice
	}
	if req.Availability != nil {
		if !models.IsValidAvailability(*req.Availability) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown availability"})
		}
		listing.Availability = *req.Availability
	}

	if err := h.listings.Update(c.Context(), listing); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func parsePositiveDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a decimal number", domain.ErrValidation, field)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive", domain.ErrValidation, field)
	}
	return d, nil
}
