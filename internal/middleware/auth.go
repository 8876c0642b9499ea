package middleware

import (
	"strings"

	"github.com/Project-DOFTA/dft/internal/auth"
	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxMemberID    = "member_id"
	CtxMemberEmail = "member_email"
	CtxIsOperator  = "is_operator"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxMemberID, claims.MemberID)
		c.Locals(CtxMemberEmail, claims.Email)
		c.Locals(CtxIsOperator, cfg.IsOperator(claims.MemberID))

		return c.Next()
	}
}

func GetMemberID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxMemberID).(uuid.UUID)
	return id
}

func IsOperator(c *fiber.Ctx) bool {
	ok, _ := c.Locals(CtxIsOperator).(bool)
	return ok
}

// OperatorMiddleware restricts dispute resolution and back-office reads
// to configured cooperative operators.
func OperatorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsOperator(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "operator access required"})
		}
		return c.Next()
	}
}
