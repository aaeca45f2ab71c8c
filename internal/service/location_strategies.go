package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
)

// DeviceSensorStrategy shells out to a platform location helper expected to
// print "lat,lon[,accuracy]" on stdout (e.g. a GeoCoordinateWatcher wrapper
// on Windows, geoclue via `where-am-i` on Linux).
type DeviceSensorStrategy struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewDeviceSensorStrategy builds the strategy.
func NewDeviceSensorStrategy(command []string, timeout time.Duration, logger *zap.Logger) (*DeviceSensorStrategy, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("device location command not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceSensorStrategy{command: command, timeout: timeout, logger: logger, now: time.Now}, nil
}

func (s *DeviceSensorStrategy) Name() string { return "device_sensor" }

func (s *DeviceSensorStrategy) Resolve(ctx context.Context) (*models.LocationFix, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.command[0], s.command[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("device location helper: %w", err)
	}

	lat, lon, accuracy, err := parseCoordinateLine(string(out))
	if err != nil {
		return nil, err
	}
	return &models.LocationFix{
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: accuracy,
		Source:         models.SourceDeviceSensor,
		CapturedAt:     s.now().UTC(),
	}, nil
}

// parseCoordinateLine extracts "lat,lon[,accuracy]" from the first non-empty
// output line.
func parseCoordinateLine(out string) (lat, lon, accuracy float64, err error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return 0, 0, 0, fmt.Errorf("unexpected helper output %q", line)
		}
		lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("parse latitude: %w", err)
		}
		lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("parse longitude: %w", err)
		}
		if len(parts) > 2 {
			accuracy, _ = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		}
		return lat, lon, accuracy, nil
	}
	return 0, 0, 0, fmt.Errorf("empty helper output")
}

// WifiStrategy scans nearby access points with a platform command and
// trilaterates through a geolocation service speaking the wifiAccessPoints
// JSON dialect.
type WifiStrategy struct {
	scanCommand  []string
	geolocateURL string
	timeout      time.Duration
	client       *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// NewWifiStrategy builds the strategy.
func NewWifiStrategy(scanCommand []string, geolocateURL string, timeout time.Duration, client *http.Client, logger *zap.Logger) (*WifiStrategy, error) {
	if len(scanCommand) == 0 {
		return nil, fmt.Errorf("wifi scan command not configured")
	}
	if geolocateURL == "" {
		return nil, fmt.Errorf("wifi geolocate url not configured")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WifiStrategy{
		scanCommand:  scanCommand,
		geolocateURL: geolocateURL,
		timeout:      timeout,
		client:       client,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (s *WifiStrategy) Name() string { return "wifi_trilateration" }

type wifiAccessPoint struct {
	MACAddress     string `json:"macAddress"`
	SignalStrength int    `json:"signalStrength"`
}

type geolocateRequest struct {
	WifiAccessPoints []wifiAccessPoint `json:"wifiAccessPoints"`
}

type geolocateResponse struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

func (s *WifiStrategy) Resolve(ctx context.Context) (*models.LocationFix, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.scanCommand[0], s.scanCommand[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("wifi scan: %w", err)
	}

	accessPoints := parseWifiScan(string(out))
	// One access point is not enough to trilaterate.
	if len(accessPoints) < 2 {
		return nil, fmt.Errorf("wifi scan found %d usable access points", len(accessPoints))
	}
	if len(accessPoints) > 10 {
		accessPoints = accessPoints[:10]
	}

	body, err := json.Marshal(geolocateRequest{WifiAccessPoints: accessPoints})
	if err != nil {
		return nil, fmt.Errorf("encode geolocate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.geolocateURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build geolocate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocate request: status %d", resp.StatusCode)
	}

	var decoded geolocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode geolocate response: %w", err)
	}

	return &models.LocationFix{
		Latitude:       decoded.Location.Lat,
		Longitude:      decoded.Location.Lng,
		AccuracyMeters: decoded.Accuracy,
		Source:         models.SourceWifiTrilateration,
		CapturedAt:     s.now().UTC(),
	}, nil
}

var macPattern = regexp.MustCompile(`(?i)\b([0-9a-f]{2}[:-]){5}[0-9a-f]{2}\b`)

// parseWifiScan pulls (bssid, signal) pairs out of scanner output. Each line
// is expected to contain a MAC address and a signal percentage; the percent
// is converted to approximate dBm the same way the signal meters do:
// dBm = pct/2 - 100.
func parseWifiScan(out string) []wifiAccessPoint {
	var accessPoints []wifiAccessPoint
	for _, line := range strings.Split(out, "\n") {
		mac := macPattern.FindString(line)
		if mac == "" {
			continue
		}
		rest := strings.Replace(line, mac, "", 1)
		pct := -1
		for _, field := range strings.Fields(rest) {
			field = strings.TrimSuffix(field, "%")
			n, err := strconv.Atoi(field)
			if err != nil || n < 0 || n > 100 {
				continue
			}
			pct = n
			break
		}
		if pct < 0 {
			continue
		}
		accessPoints = append(accessPoints, wifiAccessPoint{
			MACAddress:     strings.ToLower(strings.ReplaceAll(mac, "-", ":")),
			SignalStrength: pct/2 - 100,
		})
	}
	return accessPoints
}

// IPAPILookup queries an ip-api.com style endpoint for approximate
// coordinates and connection metadata.
type IPAPILookup struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewIPAPILookup builds the lookup client.
func NewIPAPILookup(url string, timeout time.Duration, client *http.Client) *IPAPILookup {
	if client == nil {
		client = http.DefaultClient
	}
	return &IPAPILookup{url: url, timeout: timeout, client: client}
}

type ipAPIResponse struct {
	Status     string  `json:"status"`
	Query      string  `json:"query"`
	Country    string  `json:"country"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	ISP        string  `json:"isp"`
	Timezone   string  `json:"timezone"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Lookup fetches the IP-derived location.
func (l *IPAPILookup) Lookup(ctx context.Context) (*IPLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ip lookup request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip lookup request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip lookup request: status %d", resp.StatusCode)
	}

	var decoded ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode ip lookup response: %w", err)
	}
	if decoded.Status != "success" {
		return nil, fmt.Errorf("ip lookup returned status %q", decoded.Status)
	}

	return &IPLocation{
		Latitude:  decoded.Lat,
		Longitude: decoded.Lon,
		// IP geolocation is city-level at best.
		AccuracyMeters: 5000,
		Meta: &models.IPMetadata{
			IP:       decoded.Query,
			Country:  decoded.Country,
			City:     decoded.City,
			Region:   decoded.RegionName,
			ISP:      decoded.ISP,
			Timezone: decoded.Timezone,
		},
	}, nil
}
