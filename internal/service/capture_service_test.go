package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleguard/agent/internal/models"
)

type cameraStub struct {
	frames [][]byte
	errs   []error

	calls int
}

func (c *cameraStub) Capture(ctx context.Context) ([]byte, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.frames) {
		return c.frames[i], nil
	}
	return []byte("frame"), nil
}

type appenderStub struct {
	appended []*models.Artifact
	err      error
}

func (a *appenderStub) Append(ctx context.Context, artifact *models.Artifact) error {
	if a.err != nil {
		return a.err
	}
	a.appended = append(a.appended, artifact)
	return nil
}

type resolverStub struct {
	record *models.LocationRecord
	calls  int
}

func (r *resolverStub) Resolve(ctx context.Context) *models.LocationRecord {
	r.calls++
	return r.record
}

func (a *appenderStub) byKind(kind models.ArtifactKind) []*models.Artifact {
	var out []*models.Artifact
	for _, artifact := range a.appended {
		if artifact.Kind == kind {
			out = append(out, artifact)
		}
	}
	return out
}

func TestCaptureOnce(t *testing.T) {
	store := &appenderStub{}
	svc := NewCaptureService(&cameraStub{frames: [][]byte{[]byte("jpeg-bytes")}}, &resolverStub{}, store, nil, nil, CaptureServiceConfig{})

	artifact, err := svc.CaptureOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactKindPhoto, artifact.Kind)
	require.NotNil(t, artifact.Photo)
	assert.Equal(t, []byte("jpeg-bytes"), artifact.Photo.Image)
	require.Len(t, store.appended, 1)
	assert.Equal(t, artifact.ID, store.appended[0].ID)
}

func TestCaptureOnceCameraFailure(t *testing.T) {
	store := &appenderStub{}
	svc := NewCaptureService(&cameraStub{errs: []error{errors.New("device busy")}}, &resolverStub{}, store, nil, nil, CaptureServiceConfig{})

	_, err := svc.CaptureOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.appended)
}

func TestCaptureOnceStorageFailure(t *testing.T) {
	store := &appenderStub{err: errors.New("disk full")}
	svc := NewCaptureService(&cameraStub{}, &resolverStub{}, store, nil, nil, CaptureServiceConfig{})

	_, err := svc.CaptureOnce(context.Background())
	require.Error(t, err)
}

func TestRunBurstSurvivesOneBadFrame(t *testing.T) {
	cam := &cameraStub{errs: []error{nil, errors.New("torn frame"), nil}}
	store := &appenderStub{}
	resolver := &resolverStub{record: &models.LocationRecord{
		Fix: &models.LocationFix{Latitude: 48.85, Longitude: 2.35, Source: models.SourceWifiTrilateration},
	}}

	svc := NewCaptureService(cam, resolver, store, nil, nil, CaptureServiceConfig{BurstCount: 3})
	persisted := svc.RunBurst(context.Background())

	assert.Equal(t, 2, persisted)
	assert.Equal(t, 3, cam.calls)
	assert.Len(t, store.byKind(models.ArtifactKindPhoto), 2)
	// Exactly one location snapshot regardless of burst size.
	assert.Equal(t, 1, resolver.calls)
	assert.Len(t, store.byKind(models.ArtifactKindLocation), 1)
}

func TestRunBurstNoLocationArtifactWhenResolutionEmpty(t *testing.T) {
	store := &appenderStub{}
	svc := NewCaptureService(&cameraStub{}, &resolverStub{}, store, nil, nil, CaptureServiceConfig{BurstCount: 2})

	persisted := svc.RunBurst(context.Background())

	assert.Equal(t, 2, persisted)
	assert.Empty(t, store.byKind(models.ArtifactKindLocation))
}

func TestRunBurstCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cam := &cameraStub{}
	store := &appenderStub{}
	svc := NewCaptureService(cam, &resolverStub{}, store, nil, nil, CaptureServiceConfig{BurstCount: 3})

	persisted := svc.RunBurst(ctx)
	assert.Zero(t, persisted)
	assert.Zero(t, cam.calls)
	assert.Empty(t, store.appended)
}
