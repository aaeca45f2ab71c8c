package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind identifies the payload carried by a pending artifact.
type ArtifactKind string

const (
	ArtifactKindPhoto    ArtifactKind = "PHOTO"
	ArtifactKindLocation ArtifactKind = "LOCATION"
)

// Artifact is one durably queued unit of captured data awaiting delivery.
// Artifacts are immutable: the capture pipeline creates them, the sync engine
// reads and removes them, nothing updates them in place.
type Artifact struct {
	ID        string          `json:"id"`
	Kind      ArtifactKind    `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Photo     *PhotoPayload   `json:"photo,omitempty"`
	Location  *LocationRecord `json:"location,omitempty"`
}

// PhotoPayload holds one captured frame. Image bytes are embedded so the
// persisted record is fully self-contained.
type PhotoPayload struct {
	Filename string `json:"filename"`
	Image    []byte `json:"image"`
}

// NewArtifactID returns a unique id whose lexical order matches creation
// order: zero-padded unix nanoseconds followed by a uuid tiebreaker.
func NewArtifactID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString())
}

// NewPhotoArtifact wraps a captured frame into an artifact.
func NewPhotoArtifact(image []byte, now time.Time) *Artifact {
	id := NewArtifactID(now)
	return &Artifact{
		ID:        id,
		Kind:      ArtifactKindPhoto,
		CreatedAt: now,
		Photo: &PhotoPayload{
			Filename: fmt.Sprintf("capture_%s.jpg", now.Format("20060102_150405")),
			Image:    image,
		},
	}
}

// NewLocationArtifact wraps a resolved location record into an artifact.
func NewLocationArtifact(record *LocationRecord, now time.Time) *Artifact {
	return &Artifact{
		ID:        NewArtifactID(now),
		Kind:      ArtifactKindLocation,
		CreatedAt: now,
		Location:  record,
	}
}

// SizeBytes reports the payload size for status/pending views.
func (a *Artifact) SizeBytes() int {
	if a.Photo != nil {
		return len(a.Photo.Image)
	}
	return 0
}
