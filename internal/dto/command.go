package dto

import (
	"time"

	"github.com/teleguard/agent/internal/models"
)

// ArtifactSummary is the pending-queue view exposed to the control panel.
// Payload bytes stay on disk; only metadata travels.
type ArtifactSummary struct {
	ID        string              `json:"id"`
	Kind      models.ArtifactKind `json:"kind"`
	CreatedAt time.Time           `json:"created_at"`
	SizeBytes int                 `json:"size_bytes"`
}

// NewArtifactSummary projects an artifact into its summary.
func NewArtifactSummary(a *models.Artifact) ArtifactSummary {
	return ArtifactSummary{
		ID:        a.ID,
		Kind:      a.Kind,
		CreatedAt: a.CreatedAt,
		SizeBytes: a.SizeBytes(),
	}
}

// RegisterAdminRequest registers the single delivery recipient.
type RegisterAdminRequest struct {
	ChatID int64 `json:"chat_id" binding:"required"`
}

// DrainResponse reports one drain pass.
type DrainResponse struct {
	Delivered int `json:"delivered"`
}

// StatusResponse is the agent status snapshot.
type StatusResponse struct {
	Online          bool      `json:"online"`
	CheckedAt       time.Time `json:"checked_at"`
	PendingCount    int       `json:"pending_count"`
	AdminRegistered bool      `json:"admin_registered"`
}
