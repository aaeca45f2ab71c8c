package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teleguard/agent/internal/dto"
	"github.com/teleguard/agent/internal/models"
	appErrors "github.com/teleguard/agent/pkg/errors"
	"github.com/teleguard/agent/pkg/response"
)

type captureService interface {
	CaptureOnce(ctx context.Context) (*models.Artifact, error)
}

type locationService interface {
	Resolve(ctx context.Context) *models.LocationRecord
}

type syncService interface {
	Drain(ctx context.Context) (int, error)
}

type pendingLister interface {
	List(ctx context.Context) ([]models.Artifact, error)
}

type identityStore interface {
	Get(ctx context.Context) (*models.AdminIdentity, error)
	Set(ctx context.Context, chatID int64) (*models.AdminIdentity, error)
}

type connectivityService interface {
	State(ctx context.Context) models.ConnectivityState
}

type journalReader interface {
	Recent(ctx context.Context, limit int) ([]models.DeliveryRecord, error)
}

type drainTrigger interface {
	Trigger(reason string) bool
}

// CommandHandler exposes the operator command surface consumed by the
// control panel.
type CommandHandler struct {
	capture      captureService
	location     locationService
	sync         syncService
	store        pendingLister
	identity     identityStore
	connectivity connectivityService
	journal      journalReader
	drain        drainTrigger
}

// NewCommandHandler builds the handler. journal may be nil when the delivery
// audit log is disabled; drain may be nil in tests.
func NewCommandHandler(capture captureService, location locationService, sync syncService, store pendingLister, identity identityStore, connectivity connectivityService, journal journalReader, drain drainTrigger) *CommandHandler {
	return &CommandHandler{
		capture:      capture,
		location:     location,
		sync:         sync,
		store:        store,
		identity:     identity,
		connectivity: connectivity,
		journal:      journal,
		drain:        drain,
	}
}

// Register wires the command routes onto a router group.
func (h *CommandHandler) Register(r *gin.RouterGroup) {
	r.POST("/capture", h.TriggerCapture)
	r.POST("/location", h.TriggerLocation)
	r.GET("/pending", h.ListPending)
	r.POST("/drain", h.TriggerDrain)
	r.GET("/status", h.Status)
	r.GET("/deliveries", h.ListDeliveries)
	r.PUT("/admin", h.RegisterAdmin)
}

// TriggerCapture takes one photo and queues it.
func (h *CommandHandler) TriggerCapture(c *gin.Context) {
	artifact, err := h.capture.CaptureOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewArtifactSummary(artifact))
}

// TriggerLocation resolves and returns the current location record without
// queueing it.
func (h *CommandHandler) TriggerLocation(c *gin.Context) {
	record := h.location.Resolve(c.Request.Context())
	if record.Empty() {
		response.Error(c, appErrors.Clone(appErrors.ErrAcquisition, "no location source available"))
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// ListPending returns pending artifact summaries oldest-first.
func (h *CommandHandler) ListPending(c *gin.Context) {
	artifacts, err := h.store.List(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list pending artifacts"))
		return
	}
	summaries := make([]dto.ArtifactSummary, 0, len(artifacts))
	for i := range artifacts {
		summaries = append(summaries, dto.NewArtifactSummary(&artifacts[i]))
	}
	response.JSON(c, http.StatusOK, summaries)
}

// TriggerDrain runs one drain pass and reports the delivered count.
func (h *CommandHandler) TriggerDrain(c *gin.Context) {
	delivered, err := h.sync.Drain(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DrainResponse{Delivered: delivered})
}

// Status reports connectivity, backlog size and registration state.
func (h *CommandHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	state := h.connectivity.State(ctx)

	artifacts, err := h.store.List(ctx)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list pending artifacts"))
		return
	}

	admin, err := h.identity.Get(ctx)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load admin identity"))
		return
	}

	response.JSON(c, http.StatusOK, dto.StatusResponse{
		Online:          state.Online,
		CheckedAt:       state.CheckedAt,
		PendingCount:    len(artifacts),
		AdminRegistered: admin != nil,
	})
}

// ListDeliveries returns the recent delivery audit records, newest first.
// Empty when the journal is disabled.
func (h *CommandHandler) ListDeliveries(c *gin.Context) {
	if h.journal == nil {
		response.JSON(c, http.StatusOK, []models.DeliveryRecord{})
		return
	}
	records, err := h.journal.Recent(c.Request.Context(), 50)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read delivery journal"))
		return
	}
	if records == nil {
		records = []models.DeliveryRecord{}
	}
	response.JSON(c, http.StatusOK, records)
}

// RegisterAdmin persists the delivery recipient.
func (h *CommandHandler) RegisterAdmin(c *gin.Context) {
	var req dto.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admin payload"))
		return
	}
	identity, err := h.identity.Set(c.Request.Context(), req.ChatID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist admin identity"))
		return
	}
	// A backlog may have accumulated while no recipient existed; flush it now
	// rather than waiting for the periodic pass.
	if h.drain != nil {
		h.drain.Trigger("registration")
	}
	response.JSON(c, http.StatusOK, identity)
}
