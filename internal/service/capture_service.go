package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/camera"
	"github.com/teleguard/agent/internal/models"
	appErrors "github.com/teleguard/agent/pkg/errors"
)

type artifactAppender interface {
	Append(ctx context.Context, artifact *models.Artifact) error
}

type locationResolver interface {
	Resolve(ctx context.Context) *models.LocationRecord
}

// CaptureServiceConfig tunes the startup burst.
type CaptureServiceConfig struct {
	BurstCount  int
	WarmupDelay time.Duration
}

// CaptureService orchestrates capture bursts and location snapshots, writing
// results into the pending queue. It runs purely against local storage and
// the camera collaborator and never consults connectivity.
type CaptureService struct {
	camera   camera.Camera
	resolver locationResolver
	store    artifactAppender
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      CaptureServiceConfig
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewCaptureService constructs the scheduler.
func NewCaptureService(cam camera.Camera, resolver locationResolver, store artifactAppender, metrics *MetricsService, logger *zap.Logger, cfg CaptureServiceConfig) *CaptureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BurstCount <= 0 {
		cfg.BurstCount = 3
	}
	return &CaptureService{
		camera:   cam,
		resolver: resolver,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// RunBurst performs the configured number of capture attempts, each preceded
// by the warm-up delay, then takes exactly one location snapshot. Attempt
// failures are independent: one broken frame never aborts the sequence.
// Returns the number of photo artifacts persisted.
func (s *CaptureService) RunBurst(ctx context.Context) int {
	persisted := 0
	for i := 0; i < s.cfg.BurstCount; i++ {
		if err := s.sleep(ctx, s.cfg.WarmupDelay); err != nil {
			s.logger.Info("capture burst cancelled", zap.Int("completed", i))
			return persisted
		}

		if _, err := s.CaptureOnce(ctx); err != nil {
			s.logger.Warn("capture attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			continue
		}
		persisted++
		s.logger.Info("photo captured", zap.Int("attempt", i+1))
	}

	s.snapshotLocation(ctx)

	s.logger.Info("capture burst complete",
		zap.Int("persisted", persisted), zap.Int("attempts", s.cfg.BurstCount))
	return persisted
}

// CaptureOnce grabs one frame and durably queues it as a photo artifact.
func (s *CaptureService) CaptureOnce(ctx context.Context) (*models.Artifact, error) {
	frame, err := s.camera.Capture(ctx)
	if err != nil {
		s.observeCapture(false)
		return nil, appErrors.Wrap(err, appErrors.ErrAcquisition.Code, appErrors.ErrAcquisition.Status, "camera capture failed")
	}

	artifact := models.NewPhotoArtifact(frame, s.now().UTC())
	if err := s.store.Append(ctx, artifact); err != nil {
		s.observeCapture(false)
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist photo artifact")
	}
	s.observeCapture(true)
	return artifact, nil
}

// snapshotLocation resolves once and queues at most one location artifact.
func (s *CaptureService) snapshotLocation(ctx context.Context) {
	record := s.resolver.Resolve(ctx)
	if record.Empty() {
		s.logger.Warn("location snapshot yielded nothing")
		return
	}
	if s.metrics != nil && record.Fix != nil {
		s.metrics.ObserveLocationResolution(string(record.Fix.Source))
	}

	artifact := models.NewLocationArtifact(record, s.now().UTC())
	if err := s.store.Append(ctx, artifact); err != nil {
		s.logger.Error("failed to persist location artifact", zap.Error(err))
		return
	}
	s.logger.Info("location snapshot queued", zap.Bool("has_fix", record.Fix != nil))
}

func (s *CaptureService) observeCapture(ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveCapture(ok)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
