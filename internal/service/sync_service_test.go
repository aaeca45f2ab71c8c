package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleguard/agent/internal/models"
)

type storeStub struct {
	artifacts []models.Artifact
	listErr   error
	removeErr error
	removed   []string
}

func (s *storeStub) List(ctx context.Context) ([]models.Artifact, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out, nil
}

func (s *storeStub) Remove(ctx context.Context, id string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, id)
	for i := range s.artifacts {
		if s.artifacts[i].ID == id {
			s.artifacts = append(s.artifacts[:i], s.artifacts[i+1:]...)
			break
		}
	}
	return nil
}

type identityStub struct {
	identity *models.AdminIdentity
	err      error
}

func (s *identityStub) Get(ctx context.Context) (*models.AdminIdentity, error) {
	return s.identity, s.err
}

type connectivityStub struct {
	online bool
	probes int
}

func (s *connectivityStub) IsOnline(ctx context.Context) bool {
	s.probes++
	return s.online
}

func (s *connectivityStub) WaitUntilOnline(ctx context.Context, attempts int, interval time.Duration) bool {
	s.probes++
	return s.online
}

type sinkCall struct {
	method string
	chatID int64
	text   string
	lat    float64
	lon    float64
}

type sinkStub struct {
	calls []sinkCall

	photoErr    error
	messageErr  error
	locationErr error
}

func (s *sinkStub) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	if s.photoErr != nil {
		return s.photoErr
	}
	s.calls = append(s.calls, sinkCall{method: "photo", chatID: chatID, text: caption})
	return nil
}

func (s *sinkStub) SendMessage(ctx context.Context, chatID int64, text string) error {
	if s.messageErr != nil {
		return s.messageErr
	}
	s.calls = append(s.calls, sinkCall{method: "message", chatID: chatID, text: text})
	return nil
}

func (s *sinkStub) SendLocation(ctx context.Context, chatID int64, lat, lon float64) error {
	if s.locationErr != nil {
		return s.locationErr
	}
	s.calls = append(s.calls, sinkCall{method: "location", chatID: chatID, lat: lat, lon: lon})
	return nil
}

type journalStub struct {
	recorded []string
	err      error
}

func (j *journalStub) Record(ctx context.Context, artifact *models.Artifact, deliveredAt time.Time) error {
	if j.err != nil {
		return j.err
	}
	j.recorded = append(j.recorded, artifact.ID)
	return nil
}

func registeredAdmin() *identityStub {
	return &identityStub{identity: &models.AdminIdentity{ChatID: 42, RegisteredAt: time.Now()}}
}

func photoArtifact(t *testing.T) models.Artifact {
	t.Helper()
	return *models.NewPhotoArtifact([]byte("frame"), time.Now().UTC())
}

func locationArtifact(t *testing.T, fix *models.LocationFix) models.Artifact {
	t.Helper()
	record := &models.LocationRecord{Fix: fix, Meta: &models.IPMetadata{IP: "203.0.113.9", City: "Paris", Country: "France"}}
	return *models.NewLocationArtifact(record, time.Now().UTC())
}

func newSyncService(store *storeStub, identity *identityStub, conn *connectivityStub, sink *sinkStub, journal *journalStub) *SyncService {
	if journal != nil {
		return NewSyncService(store, identity, conn, sink, nil, journal, nil, nil, SyncServiceConfig{})
	}
	return NewSyncService(store, identity, conn, sink, nil, nil, nil, nil, SyncServiceConfig{})
}

func TestDrainNoAdminIsNoOp(t *testing.T) {
	store := &storeStub{artifacts: []models.Artifact{photoArtifact(t)}}
	conn := &connectivityStub{online: true}
	sink := &sinkStub{}

	svc := newSyncService(store, &identityStub{}, conn, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, sink.calls)
	assert.Len(t, store.artifacts, 1)
}

func TestDrainOfflineIsNoOp(t *testing.T) {
	store := &storeStub{artifacts: []models.Artifact{photoArtifact(t)}}
	sink := &sinkStub{}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: false}, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, sink.calls)
	assert.Len(t, store.artifacts, 1)
}

func TestDrainDeliversPhotoAndRemoves(t *testing.T) {
	artifact := photoArtifact(t)
	store := &storeStub{artifacts: []models.Artifact{artifact}}
	sink := &sinkStub{}
	journal := &journalStub{}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, journal)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "photo", sink.calls[0].method)
	assert.Equal(t, int64(42), sink.calls[0].chatID)
	assert.Contains(t, sink.calls[0].text, artifact.Photo.Filename)
	assert.Empty(t, store.artifacts)
	assert.Equal(t, []string{artifact.ID}, journal.recorded)
}

func TestDrainLocationSendsMessageThenCoordinates(t *testing.T) {
	fix := &models.LocationFix{Latitude: 48.8566, Longitude: 2.3522, AccuracyMeters: 40, Source: models.SourceWifiTrilateration}
	store := &storeStub{artifacts: []models.Artifact{locationArtifact(t, fix)}}
	sink := &sinkStub{}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, sink.calls, 2)
	assert.Equal(t, "message", sink.calls[0].method)
	assert.Contains(t, sink.calls[0].text, "Paris")
	assert.Equal(t, "location", sink.calls[1].method)
	assert.InDelta(t, 48.8566, sink.calls[1].lat, 1e-9)
	assert.Empty(t, store.artifacts)
}

func TestDrainLocationWithoutFixSendsOnlyMessage(t *testing.T) {
	store := &storeStub{artifacts: []models.Artifact{locationArtifact(t, nil)}}
	sink := &sinkStub{}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "message", sink.calls[0].method)
	assert.Contains(t, sink.calls[0].text, "Fix: unavailable")
}

func TestDrainPartialLocationFailureKeepsArtifactQueued(t *testing.T) {
	fix := &models.LocationFix{Latitude: 48.85, Longitude: 2.35, Source: models.SourceIPApproximate}
	store := &storeStub{artifacts: []models.Artifact{locationArtifact(t, fix)}}
	sink := &sinkStub{locationErr: errors.New("429 too many requests")}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
	// Summary went out but the coordinates did not; the artifact stays queued.
	assert.Len(t, store.artifacts, 1)

	// Next drain resends the whole sequence.
	sink.locationErr = nil
	delivered, err = svc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Empty(t, store.artifacts)
	methods := make([]string, 0, len(sink.calls))
	for _, c := range sink.calls {
		methods = append(methods, c.method)
	}
	assert.Equal(t, "message message location", strings.Join(methods, " "))
}

func TestDrainFailedDeliveryRetainsAndContinues(t *testing.T) {
	broken := photoArtifact(t)
	ok := locationArtifact(t, nil)
	store := &storeStub{artifacts: []models.Artifact{broken, ok}}
	sink := &sinkStub{photoErr: errors.New("telegram: bad gateway")}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, store.artifacts, 1)
	assert.Equal(t, broken.ID, store.artifacts[0].ID)
}

func TestDrainJournalFailureDoesNotBlockRemoval(t *testing.T) {
	store := &storeStub{artifacts: []models.Artifact{photoArtifact(t)}}
	journal := &journalStub{err: errors.New("database is locked")}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, &sinkStub{}, journal)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Empty(t, store.artifacts)
}

func TestDrainRemoveFailureNotCountedDelivered(t *testing.T) {
	store := &storeStub{artifacts: []models.Artifact{photoArtifact(t)}, removeErr: errors.New("read-only filesystem")}

	svc := newSyncService(store, registeredAdmin(), &connectivityStub{online: true}, &sinkStub{}, nil)
	delivered, err := svc.Drain(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestAnnounceStartupSendsAlertThenDrains(t *testing.T) {
	queued := photoArtifact(t)
	store := &storeStub{artifacts: []models.Artifact{queued}}
	sink := &sinkStub{}
	resolver := &resolverStub{record: &models.LocationRecord{
		Fix:  &models.LocationFix{Latitude: 48.85, Longitude: 2.35, Source: models.SourceWifiTrilateration},
		Meta: &models.IPMetadata{IP: "203.0.113.9", City: "Paris", Country: "France"},
	}}

	svc := NewSyncService(store, registeredAdmin(), &connectivityStub{online: true}, sink, resolver, nil, nil, nil, SyncServiceConfig{StartupAttempts: 1})
	require.NoError(t, svc.AnnounceStartup(context.Background()))

	require.Len(t, sink.calls, 3)
	assert.Equal(t, "message", sink.calls[0].method)
	assert.Contains(t, sink.calls[0].text, "STARTUP ALERT")
	assert.Contains(t, sink.calls[0].text, "Paris")
	assert.Equal(t, "location", sink.calls[1].method)
	assert.Equal(t, "photo", sink.calls[2].method)
	assert.Empty(t, store.artifacts)
}

func TestAnnounceStartupOfflineBudgetExhausted(t *testing.T) {
	sink := &sinkStub{}
	svc := newSyncService(&storeStub{}, registeredAdmin(), &connectivityStub{online: false}, sink, nil)

	err := svc.AnnounceStartup(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.calls)
}

func TestAnnounceStartupNoAdminIsNoOp(t *testing.T) {
	sink := &sinkStub{}
	svc := newSyncService(&storeStub{}, &identityStub{}, &connectivityStub{online: true}, sink, nil)

	require.NoError(t, svc.AnnounceStartup(context.Background()))
	assert.Empty(t, sink.calls)
}
