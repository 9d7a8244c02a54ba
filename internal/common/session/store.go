package session

import (
	"context"
	"errors"

	"agentic-assistant/internal/models"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("SESSION_NOT_FOUND")
	ErrSessionExpired   = errors.New("SESSION_EXPIRED")
	ErrDuplicateRequest = errors.New("DUPLICATE_REQUEST")
)

// Store holds requests paused on a clarification question. Take is single-use: a pending request
// is returned at most once, and entries older than the TTL are never returned.
type Store interface {
	Put(ctx context.Context, pending *models.PendingRequest) (string, error)
	Take(ctx context.Context, requestID string) (*models.PendingRequest, error)
}

func ensureID(pending *models.PendingRequest) string {
	if pending.RequestID == "" {
		pending.RequestID = uuid.NewString()
	}
	return pending.RequestID
}
