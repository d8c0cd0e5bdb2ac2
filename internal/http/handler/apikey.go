package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"blobvault/internal/service"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

// createKeyResponse carries the plaintext token; it appears in this response
// and nowhere else.
type createKeyResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateKey issues a new API key under the requested label.
func CreateKey(svc service.APIKeyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createKeyRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be JSON with a name field")
		}

		issued, err := svc.Issue(c.UserContext(), req.Name)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrKeyNameInvalid):
				return writeError(c, fiber.StatusBadRequest, "INVALID_KEY_NAME", service.ErrKeyNameInvalid.Error())
			case errors.Is(err, service.ErrKeyNameTaken):
				return writeError(c, fiber.StatusConflict, "KEY_NAME_TAKEN", "a key with this name already exists")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		return c.Status(fiber.StatusCreated).JSON(createKeyResponse{
			ID:        issued.Key.ID,
			Name:      issued.Key.Name,
			Key:       issued.Plaintext,
			CreatedAt: issued.Key.CreatedAt,
		})
	}
}

// ListKeys returns every key record, revoked ones included. Hashes never
// serialize (the model drops them), so this is safe to expose to admins.
func ListKeys(svc service.APIKeyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keys, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{
			"keys":  keys,
			"count": len(keys),
		})
	}
}

// RevokeKey soft-deletes a key by id.
func RevokeKey(svc service.APIKeyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.Revoke(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrKeyNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "key not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"deleted": true, "key_id": id})
	}
}
