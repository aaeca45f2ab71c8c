package models

import "time"

// LocationSource tags how a fix was obtained, in decreasing accuracy order.
type LocationSource string

const (
	SourceDeviceSensor      LocationSource = "DEVICE_SENSOR"
	SourceWifiTrilateration LocationSource = "WIFI_TRILATERATION"
	SourceIPApproximate     LocationSource = "IP_APPROXIMATE"
)

// LocationFix is a resolved coordinate pair with accuracy and source tag.
type LocationFix struct {
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	AccuracyMeters float64        `json:"accuracy_meters"`
	Source         LocationSource `json:"source"`
	CapturedAt     time.Time      `json:"captured_at"`
}

// IPMetadata is descriptive enrichment derived from an IP geolocation lookup.
type IPMetadata struct {
	IP       string `json:"ip,omitempty"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	ISP      string `json:"isp,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// LocationRecord is the unit persisted by a location snapshot: at most one
// fix, plus whatever IP metadata was available. Fix is nil when no strategy
// produced valid coordinates; (0,0) is never stored as a real fix.
type LocationRecord struct {
	Fix  *LocationFix `json:"fix,omitempty"`
	Meta *IPMetadata  `json:"meta,omitempty"`
}

// ValidCoordinates reports whether a candidate pair can be accepted as a real
// fix: both in range and not both exactly zero.
func ValidCoordinates(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Empty reports whether the record carries neither a fix nor metadata.
func (r *LocationRecord) Empty() bool {
	return r == nil || (r.Fix == nil && r.Meta == nil)
}
