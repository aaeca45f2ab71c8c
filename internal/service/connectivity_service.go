package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
)

// ConnectivityService classifies the host as online or offline with a single
// bounded-timeout probe against one well-known endpoint. Any failure mode
// (timeout, DNS, refusal) collapses to offline; no finer reason is surfaced.
type ConnectivityService struct {
	probeURL string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewConnectivityService builds the monitor.
func NewConnectivityService(probeURL string, timeout time.Duration, client *http.Client, logger *zap.Logger) *ConnectivityService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectivityService{
		probeURL: probeURL,
		timeout:  timeout,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// IsOnline runs one probe. Any completed HTTP exchange counts as online
// regardless of status code; reaching the endpoint is the signal.
func (s *ConnectivityService) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		s.logger.Warn("connectivity probe misconfigured", zap.Error(err))
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// State returns the probe result with its timestamp.
func (s *ConnectivityService) State(ctx context.Context) models.ConnectivityState {
	return models.ConnectivityState{
		Online:    s.IsOnline(ctx),
		CheckedAt: s.now().UTC(),
	}
}

// WaitUntilOnline blocks until a probe succeeds, up to the given attempt
// count spaced by interval. Returns false when the budget is exhausted or the
// context ends first.
func (s *ConnectivityService) WaitUntilOnline(ctx context.Context, attempts int, interval time.Duration) bool {
	for i := 0; i < attempts; i++ {
		if s.IsOnline(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return s.IsOnline(ctx)
}
