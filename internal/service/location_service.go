package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
)

// LocationStrategy is one fallible probe for a precise fix. Implementations
// bound their own execution time; a stalled strategy must not block the chain
// beyond its own budget.
type LocationStrategy interface {
	Name() string
	Resolve(ctx context.Context) (*models.LocationFix, error)
}

// IPLocation is the result of an IP geolocation lookup: approximate candidate
// coordinates plus descriptive metadata. Coordinates may be invalid; the
// resolver decides whether they become a fix.
type IPLocation struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Meta           *models.IPMetadata
}

// IPLookup fetches IP-derived location data.
type IPLookup interface {
	Lookup(ctx context.Context) (*IPLocation, error)
}

// LocationService fuses the ordered strategy chain with IP enrichment.
type LocationService struct {
	strategies []LocationStrategy
	ip         IPLookup
	logger     *zap.Logger
	now        func() time.Time
}

// NewLocationService builds the resolver. Strategies run in the given order;
// ip may be nil when no lookup endpoint is configured.
func NewLocationService(strategies []LocationStrategy, ip IPLookup, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{
		strategies: strategies,
		ip:         ip,
		logger:     logger,
		now:        time.Now,
	}
}

// Resolve returns the best available location record, or nil when nothing at
// all succeeded. It never returns an error: every strategy failure is an
// acquisition failure to log and skip.
//
// The first strategy yielding validated coordinates short-circuits the
// remaining precise strategies. The IP lookup always runs afterward: its
// metadata enriches whatever fix was found, and its coordinates become the
// fix only as a last resort.
func (s *LocationService) Resolve(ctx context.Context) *models.LocationRecord {
	var fix *models.LocationFix

	for _, strategy := range s.strategies {
		candidate, err := strategy.Resolve(ctx)
		if err != nil {
			s.logger.Warn("location strategy failed",
				zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		if candidate == nil {
			continue
		}
		if !models.ValidCoordinates(candidate.Latitude, candidate.Longitude) {
			s.logger.Warn("location strategy returned invalid coordinates",
				zap.String("strategy", strategy.Name()),
				zap.Float64("lat", candidate.Latitude),
				zap.Float64("lon", candidate.Longitude))
			continue
		}
		fix = candidate
		s.logger.Info("location fix acquired",
			zap.String("strategy", strategy.Name()),
			zap.Float64("accuracy_m", candidate.AccuracyMeters))
		break
	}

	var meta *models.IPMetadata
	if s.ip != nil {
		ipLoc, err := s.ip.Lookup(ctx)
		switch {
		case err != nil:
			s.logger.Warn("ip lookup failed", zap.Error(err))
		case ipLoc != nil:
			meta = ipLoc.Meta
			if fix == nil && models.ValidCoordinates(ipLoc.Latitude, ipLoc.Longitude) {
				fix = &models.LocationFix{
					Latitude:       ipLoc.Latitude,
					Longitude:      ipLoc.Longitude,
					AccuracyMeters: ipLoc.AccuracyMeters,
					Source:         models.SourceIPApproximate,
					CapturedAt:     s.now().UTC(),
				}
			}
		}
	}

	if fix == nil && meta == nil {
		return nil
	}
	return &models.LocationRecord{Fix: fix, Meta: meta}
}
