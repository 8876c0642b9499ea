package handlers

import (
	"github.com/Project-DOFTA/dft/internal/escrow"
	"github.com/Project-DOFTA/dft/internal/http/dto"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WalletHandler exposes the contract account balance a member funds
// escrow deposits from.
type WalletHandler struct {
	contract *escrow.Contract
	log      *zap.Logger
}

func NewWalletHandler(contract *escrow.Contract, log *zap.Logger) *WalletHandler {
	return &WalletHandler{contract: contract, log: log}
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	var req dto.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	amount, err := parsePositiveDecimal(req.Amount, "amount")
	if err != nil {
		return respondError(c, h.log, err)
	}

	memberID := middleware.GetMemberID(c)
	if err := h.contract.Deposit(memberID, amount); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.BalanceResponse{
		MemberID: memberID.String(),
		Balance:  h.contract.BalanceOf(memberID).String(),
	})
}

func (h *WalletHandler) Balance(c *fiber.Ctx) error {
	memberID := middleware.GetMemberID(c)
	return c.JSON(dto.BalanceResponse{
		MemberID: memberID.String(),
		Balance:  h.contract.BalanceOf(memberID).String(),
	})
}
