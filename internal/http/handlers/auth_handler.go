package handlers

import (
	"net/mail"

	"github.com/Project-DOFTA/dft/internal/auth"
	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/Project-DOFTA/dft/internal/http/dto"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/Project-DOFTA/dft/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	members *repositories.MemberRepo
	cfg     *config.Config
	log     *zap.Logger
}

func NewAuthHandler(members *repositories.MemberRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{members: members, cfg: cfg, log: log}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid email"})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "password must be at least 8 characters"})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return respondError(c, h.log, err)
	}
	member := &models.Member{Email: req.Email, PasswordHash: hash}
	if err := h.members.Create(c.Context(), member); err != nil {
		return respondError(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, member.ID, member.Email, h.cfg.JWTExpiration)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{Token: token, Member: member})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	member, err := h.members.GetByEmail(c.Context(), req.Email)
	if err != nil || !auth.CheckPassword(member.PasswordHash, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid credentials"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, member.ID, member.Email, h.cfg.JWTExpiration)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.AuthResponse{Token: token, Member: member})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	member, err := h.members.GetByID(c.Context(), middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: member})
}
