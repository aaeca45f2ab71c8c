package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
	appErrors "github.com/teleguard/agent/pkg/errors"
)

// RemoteSink is the delivery channel. Every call must complete or fail within
// the implementation's own bounded time.
type RemoteSink interface {
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendLocation(ctx context.Context, chatID int64, lat, lon float64) error
}

type artifactStore interface {
	List(ctx context.Context) ([]models.Artifact, error)
	Remove(ctx context.Context, id string) error
}

type identityReader interface {
	Get(ctx context.Context) (*models.AdminIdentity, error)
}

type onlineChecker interface {
	IsOnline(ctx context.Context) bool
	WaitUntilOnline(ctx context.Context, attempts int, interval time.Duration) bool
}

type deliveryJournal interface {
	Record(ctx context.Context, artifact *models.Artifact, deliveredAt time.Time) error
}

// SyncServiceConfig tunes the drain engine.
type SyncServiceConfig struct {
	DeliveryTimeout time.Duration
	StartupAttempts int
	StartupInterval time.Duration
}

// SyncService drains the pending queue to the remote sink. An artifact is
// removed only after its whole delivery sequence is confirmed; failures leave
// it queued for the next trigger. At-least-once: a crash between remote ack
// and removal resends once on the next connected drain.
type SyncService struct {
	store        artifactStore
	identity     identityReader
	connectivity onlineChecker
	sink         RemoteSink
	resolver     locationResolver
	journal      deliveryJournal
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          SyncServiceConfig
	now          func() time.Time
}

// NewSyncService constructs the engine. journal may be nil (audit disabled);
// resolver is only used for the startup announce.
func NewSyncService(store artifactStore, identity identityReader, connectivity onlineChecker, sink RemoteSink, resolver locationResolver, journal deliveryJournal, metrics *MetricsService, logger *zap.Logger, cfg SyncServiceConfig) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	return &SyncService{
		store:        store,
		identity:     identity,
		connectivity: connectivity,
		sink:         sink,
		resolver:     resolver,
		journal:      journal,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Drain attempts delivery of all currently pending artifacts, oldest first,
// and returns how many were delivered and removed. A no-op while the admin is
// unregistered or the host is offline. Per-artifact failures are logged and
// skipped; there is no in-drain retry, the next trigger is the backoff.
func (s *SyncService) Drain(ctx context.Context) (int, error) {
	admin, err := s.identity.Get(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load admin identity")
	}
	if admin == nil {
		s.logger.Debug("drain skipped: no admin registered")
		return 0, nil
	}

	online := s.connectivity.IsOnline(ctx)
	if s.metrics != nil {
		s.metrics.SetOnline(online)
	}
	if !online {
		s.logger.Debug("drain skipped: offline")
		return 0, nil
	}

	artifacts, err := s.store.List(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list pending artifacts")
	}

	if s.metrics != nil {
		s.metrics.ObserveDrain()
	}

	delivered := 0
	for i := range artifacts {
		artifact := &artifacts[i]
		if err := s.deliver(ctx, admin.ChatID, artifact); err != nil {
			if s.metrics != nil {
				s.metrics.ObserveDelivery(string(artifact.Kind), false)
			}
			s.logger.Warn("delivery failed, artifact retained",
				zap.String("artifact_id", artifact.ID),
				zap.String("kind", string(artifact.Kind)),
				zap.Error(err))
			continue
		}

		if s.journal != nil {
			if err := s.journal.Record(ctx, artifact, s.now().UTC()); err != nil {
				s.logger.Warn("journal write failed", zap.String("artifact_id", artifact.ID), zap.Error(err))
			}
		}

		if err := s.store.Remove(ctx, artifact.ID); err != nil {
			// Delivered but not removed: will resend on the next drain.
			s.logger.Error("failed to remove delivered artifact",
				zap.String("artifact_id", artifact.ID), zap.Error(err))
			continue
		}

		if s.metrics != nil {
			s.metrics.ObserveDelivery(string(artifact.Kind), true)
		}
		delivered++
		s.logger.Info("artifact delivered", zap.String("artifact_id", artifact.ID))
	}

	if s.metrics != nil {
		s.metrics.SetPending(len(artifacts) - delivered)
	}
	return delivered, nil
}

// deliver runs the full delivery sequence for one artifact. For a location
// artifact that is two dependent calls (the textual summary, then the
// coordinates) and both must succeed; a failure in either leaves the whole
// artifact queued so both are resent together.
func (s *SyncService) deliver(ctx context.Context, chatID int64, artifact *models.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	switch artifact.Kind {
	case models.ArtifactKindPhoto:
		if artifact.Photo == nil {
			return fmt.Errorf("photo artifact %s has no payload", artifact.ID)
		}
		caption := fmt.Sprintf("Auto-capture %s\n%s", artifact.Photo.Filename,
			artifact.CreatedAt.Format("2006-01-02 15:04:05"))
		return s.sink.SendPhoto(ctx, chatID, artifact.Photo.Image, caption)

	case models.ArtifactKindLocation:
		record := artifact.Location
		if record.Empty() {
			return fmt.Errorf("location artifact %s has no payload", artifact.ID)
		}
		if err := s.sink.SendMessage(ctx, chatID, locationSummary(record, artifact.CreatedAt)); err != nil {
			return err
		}
		if record.Fix != nil {
			return s.sink.SendLocation(ctx, chatID, record.Fix.Latitude, record.Fix.Longitude)
		}
		return nil

	default:
		return fmt.Errorf("unknown artifact kind %q", artifact.Kind)
	}
}

// AnnounceStartup waits for connectivity within the configured budget, sends
// the startup alert with a fresh location summary, then drains the backlog.
func (s *SyncService) AnnounceStartup(ctx context.Context) error {
	admin, err := s.identity.Get(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load admin identity")
	}
	if admin == nil {
		s.logger.Info("startup announce skipped: no admin registered")
		return nil
	}

	if !s.connectivity.WaitUntilOnline(ctx, s.cfg.StartupAttempts, s.cfg.StartupInterval) {
		return appErrors.Clone(appErrors.ErrOffline, "no connectivity for startup announce")
	}

	var record *models.LocationRecord
	if s.resolver != nil {
		record = s.resolver.Resolve(ctx)
	}

	alert := startupAlert(record, s.now())
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()
	if err := s.sink.SendMessage(sendCtx, admin.ChatID, alert); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDelivery.Code, appErrors.ErrDelivery.Status, "startup alert failed")
	}
	if record != nil && record.Fix != nil {
		if err := s.sink.SendLocation(sendCtx, admin.ChatID, record.Fix.Latitude, record.Fix.Longitude); err != nil {
			s.logger.Warn("startup location send failed", zap.Error(err))
		}
	}

	delivered, err := s.Drain(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("startup sync complete", zap.Int("delivered", delivered))
	return nil
}

func locationSummary(record *models.LocationRecord, createdAt time.Time) string {
	var b strings.Builder
	b.WriteString("Saved location\n")
	b.WriteString("Time: " + createdAt.Format("2006-01-02 15:04:05") + "\n")
	if record.Meta != nil {
		if record.Meta.IP != "" {
			b.WriteString("IP: " + record.Meta.IP + "\n")
		}
		if record.Meta.City != "" || record.Meta.Country != "" {
			b.WriteString(fmt.Sprintf("Place: %s, %s\n", record.Meta.City, record.Meta.Country))
		}
		if record.Meta.ISP != "" {
			b.WriteString("ISP: " + record.Meta.ISP + "\n")
		}
	}
	if record.Fix != nil {
		b.WriteString(fmt.Sprintf("Fix: %.5f, %.5f (±%.0fm, %s)",
			record.Fix.Latitude, record.Fix.Longitude, record.Fix.AccuracyMeters, record.Fix.Source))
	} else {
		b.WriteString("Fix: unavailable")
	}
	return b.String()
}

func startupAlert(record *models.LocationRecord, now time.Time) string {
	var b strings.Builder
	b.WriteString("STARTUP ALERT\n")
	b.WriteString("Device has been turned on\n")
	b.WriteString("Time: " + now.Format("2006-01-02 15:04:05") + "\n")
	if record != nil && record.Meta != nil {
		if record.Meta.IP != "" {
			b.WriteString("IP: " + record.Meta.IP + "\n")
		}
		if record.Meta.City != "" || record.Meta.Country != "" {
			b.WriteString(fmt.Sprintf("Place: %s, %s\n", record.Meta.City, record.Meta.Country))
		}
	}
	b.WriteString("Pending captures will follow.")
	return b.String()
}
