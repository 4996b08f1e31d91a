package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dx-community/modmail/internal/auth"
	"github.com/dx-community/modmail/internal/service"
	apperrors "github.com/dx-community/modmail/pkg/util"
)

// TranscriptsHandler serves signed transcript view links.
type TranscriptsHandler struct {
	transcripts *service.TranscriptService
	tokens      *auth.TokenManager
}

// NewTranscriptsHandler returns a new handler instance.
func NewTranscriptsHandler(transcripts *service.TranscriptService, tokens *auth.TokenManager) *TranscriptsHandler {
	return &TranscriptsHandler{transcripts: transcripts, tokens: tokens}
}

// View returns one user's structured transcript log. Access requires the
// signed token generated by the transcript command, scoped to that user.
func (h *TranscriptsHandler) View(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	token := c.Query("token")
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid or expired token")
	}
	if claims.UserID != userID {
		return apperrors.NewForbidden("token does not grant access to this transcript")
	}

	entries, err := h.transcripts.Load(userID)
	if err != nil {
		return apperrors.NewNotFound("transcript", map[string]any{"user_id": userID})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"entries": entries,
	})
}
