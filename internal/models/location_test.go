package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		name  string
		lat   float64
		lon   float64
		valid bool
	}{
		{"san francisco", 37.7, -122.4, true},
		{"southern hemisphere", -33.86, 151.2, true},
		{"lat boundary", 90, 10, true},
		{"lon boundary", 10, -180, true},
		{"zero lat only", 0, 12.5, true},
		{"zero lon only", 48.85, 0, true},
		{"both zero", 0, 0, false},
		{"lat out of range", 90.1, 10, false},
		{"lon out of range", 10, 180.5, false},
		{"both out of range", -120, 300, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidCoordinates(tc.lat, tc.lon))
		})
	}
}

func TestLocationRecordEmpty(t *testing.T) {
	assert.True(t, (*LocationRecord)(nil).Empty())
	assert.True(t, (&LocationRecord{}).Empty())
	assert.False(t, (&LocationRecord{Meta: &IPMetadata{City: "Paris"}}).Empty())
	assert.False(t, (&LocationRecord{Fix: &LocationFix{Latitude: 1, Longitude: 1}}).Empty())
}
