package models

import "time"

// DeliveryRecord is one row of the delivery journal: an artifact confirmed by
// the remote sink. Audit only; the pending queue itself lives in the artifact
// directory.
type DeliveryRecord struct {
	ArtifactID  string       `db:"artifact_id" json:"artifact_id"`
	Kind        ArtifactKind `db:"kind" json:"kind"`
	DeliveredAt time.Time    `db:"delivered_at" json:"delivered_at"`
}
