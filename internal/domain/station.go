package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

type StationType string

const (
	StationTrain         StationType = "train_station"
	StationMetro         StationType = "metro_station"
	StationTram          StationType = "tram_stop"
	StationBusStop       StationType = "bus_stop"
	StationBusStation    StationType = "bus_station"
	StationFerryTerminal StationType = "ferry_terminal"
	StationTaxiStand     StationType = "taxi_stand"
	StationMultimodalHub StationType = "multimodal_hub"
)

func (t StationType) Valid() bool {
	switch t {
	case StationTrain, StationMetro, StationTram, StationBusStop,
		StationBusStation, StationFerryTerminal, StationTaxiStand, StationMultimodalHub:
		return true
	}
	return false
}

type StationStatus string

const (
	StationActive      StationStatus = "active"
	StationMaintenance StationStatus = "maintenance"
	StationClosed      StationStatus = "closed"
	StationPlanned     StationStatus = "planned"
)

func (s StationStatus) Valid() bool {
	switch s {
	case StationActive, StationMaintenance, StationClosed, StationPlanned:
		return true
	}
	return false
}

// Feature is a single accessibility or comfort amenity flag.
type Feature uint32

const (
	FeatureElevator Feature = 1 << iota
	FeatureEscalator
	FeatureRamp
	FeatureTactilePaving
	FeatureAudioAnnouncements
	FeatureVisualDisplays
	FeatureWheelchairAccess
	FeatureAccessibleToilets
	FeatureShelter
	FeatureSeating
	FeatureWifi
	FeatureHeating
	FeatureLighting
	FeatureToilets
	FeatureVending
	FeatureCCTV
)

var featureNames = map[Feature]string{
	FeatureElevator:           "elevator",
	FeatureEscalator:          "escalator",
	FeatureRamp:               "ramp",
	FeatureTactilePaving:      "tactile_paving",
	FeatureAudioAnnouncements: "audio_announcements",
	FeatureVisualDisplays:     "visual_displays",
	FeatureWheelchairAccess:   "wheelchair_access",
	FeatureAccessibleToilets:  "accessible_toilets",
	FeatureShelter:            "shelter",
	FeatureSeating:            "seating",
	FeatureWifi:               "wifi",
	FeatureHeating:            "heating",
	FeatureLighting:           "lighting",
	FeatureToilets:            "toilets",
	FeatureVending:            "vending",
	FeatureCCTV:               "cctv",
}

func (f Feature) String() string {
	if n, ok := featureNames[f]; ok {
		return n
	}
	return fmt.Sprintf("feature(%d)", uint32(f))
}

// ParseFeature maps a feature name (as used in seed files) to its flag.
func ParseFeature(name string) (Feature, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range featureNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown station feature %q", name)
}

// Features is a set of Feature flags.
type Features uint32

func NewFeatures(fs ...Feature) Features {
	var set Features
	for _, f := range fs {
		set |= Features(f)
	}
	return set
}

func (s Features) Has(f Feature) bool { return s&Features(f) != 0 }

func (s Features) With(f Feature) Features { return s | Features(f) }

func (s Features) Without(f Feature) Features { return s &^ Features(f) }

type Position struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z,omitempty"` // underground (<0) or elevated (>0)
}

// DistanceTo is the planar distance between two positions.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

type QueueStatus string

const (
	QueueEmpty    QueueStatus = "empty"
	QueueLow      QueueStatus = "low"
	QueueModerate QueueStatus = "moderate"
	QueueHigh     QueueStatus = "high"
	QueueCritical QueueStatus = "critical"
)

type Station struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Code     string        `json:"code"`
	Type     StationType   `json:"type"`
	Position Position      `json:"position"`
	Status   StationStatus `json:"status"`

	Condition               int `json:"condition"`
	CurrentQueueLength      int `json:"current_queue_length"`
	MaxQueueLength          int `json:"max_queue_length"`
	MaintenanceIntervalDays int `json:"maintenance_interval_days"`

	Features      Features `json:"features"`
	ConnectionIDs []string `json:"connection_ids,omitempty"`

	TotalPassengersServed int        `json:"total_passengers_served"`
	ServedToday           int        `json:"served_today"`
	StatsDay              string     `json:"stats_day,omitempty"`
	DaysTracked           int        `json:"days_tracked"`
	DailyAverage          float64    `json:"daily_average"`
	DailyPeak             int        `json:"daily_peak"`
	LastServedAt          *time.Time `json:"last_served_at,omitempty"`

	TotalMaintenanceCost Money      `json:"total_maintenance_cost"`
	LastMaintenanceAt    *time.Time `json:"last_maintenance_at,omitempty"`
	NextMaintenanceAt    *time.Time `json:"next_maintenance_at,omitempty"`

	Policy *StationPolicy `json:"-"`
}

// NewStation creates an active, fully conditioned station with an empty queue.
// A nil policy means DefaultStationPolicy.
func NewStation(id, name, code string, typ StationType, pos Position, policy *StationPolicy) (*Station, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("new station: %w", ErrInvalidID)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("new station %s: unknown type %q", id, typ)
	}
	s := &Station{
		ID:       id,
		Name:     name,
		Code:     code,
		Type:     typ,
		Position: pos,
		Status:   StationActive,
		Policy:   policy,
	}
	p := s.policy()
	s.Condition = 100
	s.MaxQueueLength = p.MaxQueueLength
	s.MaintenanceIntervalDays = p.MaintenanceIntervalDays
	return s, nil
}

var defaultStationPolicy = DefaultStationPolicy()

func (s *Station) policy() *StationPolicy {
	if s.Policy == nil {
		return &defaultStationPolicy
	}
	return s.Policy
}

func (s *Station) IsOperational() bool {
	return s.Status == StationActive && s.Condition >= s.policy().CriticalCondition
}

// AddToQueue adds n waiting passengers. It is a no-op returning false when
// the queue would exceed MaxQueueLength.
func (s *Station) AddToQueue(n int) bool {
	if n < 0 || s.CurrentQueueLength+n > s.MaxQueueLength {
		return false
	}
	s.CurrentQueueLength += n
	return true
}

// RemoveFromQueue removes up to n passengers and returns how many left.
func (s *Station) RemoveFromQueue(n int) int {
	if n <= 0 {
		return 0
	}
	removed := min(n, s.CurrentQueueLength)
	s.CurrentQueueLength -= removed
	return removed
}

// BoardVehicle moves up to capacity waiting passengers onto a vehicle and
// records them in the station statistics.
func (s *Station) BoardVehicle(capacity int, now time.Time) int {
	if capacity <= 0 {
		return 0
	}
	boarded := min(capacity, s.CurrentQueueLength)
	if boarded == 0 {
		return 0
	}
	s.CurrentQueueLength -= boarded
	s.recordServed(boarded, now)
	return boarded
}

func (s *Station) recordServed(n int, now time.Time) {
	day := now.Format(time.DateOnly)
	if s.StatsDay != day {
		if s.StatsDay != "" {
			s.DaysTracked++
			s.DailyAverage += (float64(s.ServedToday) - s.DailyAverage) / float64(s.DaysTracked)
		}
		s.StatsDay = day
		s.ServedToday = 0
	}
	s.ServedToday += n
	if s.ServedToday > s.DailyPeak {
		s.DailyPeak = s.ServedToday
	}
	s.TotalPassengersServed += n
	t := now
	s.LastServedAt = &t
}

func (s *Station) IsOvercrowded() bool {
	return s.CurrentQueueLength == s.MaxQueueLength
}

// OccupancyRate is the queue length as a percentage of MaxQueueLength.
func (s *Station) OccupancyRate() float64 {
	if s.MaxQueueLength <= 0 {
		return 0
	}
	return 100 * float64(s.CurrentQueueLength) / float64(s.MaxQueueLength)
}

func (s *Station) QueueStatus() QueueStatus {
	if s.CurrentQueueLength == 0 {
		return QueueEmpty
	}
	rate := s.OccupancyRate()
	switch {
	case rate < 34:
		return QueueLow
	case rate < 67:
		return QueueModerate
	case rate < 90:
		return QueueHigh
	default:
		return QueueCritical
	}
}

// DegradeCondition lowers the condition; a station that falls below the
// critical level is taken out of service for maintenance.
func (s *Station) DegradeCondition(amount int) {
	if amount <= 0 {
		return
	}
	s.setCondition(s.Condition - amount)
	if s.Condition < s.policy().CriticalCondition && s.Status == StationActive {
		s.Status = StationMaintenance
	}
}

func (s *Station) PerformMaintenance(cost Money, now time.Time) {
	p := s.policy()
	s.setCondition(s.Condition + p.MaintenanceRecovery)
	s.TotalMaintenanceCost += cost
	t := now
	s.LastMaintenanceAt = &t
	next := now.AddDate(0, 0, s.MaintenanceIntervalDays)
	s.NextMaintenanceAt = &next
	if s.Status == StationMaintenance && s.Condition >= p.CriticalCondition {
		s.Status = StationActive
	}
}

func (s *Station) NeedsMaintenance(now time.Time) bool {
	if s.Condition < s.policy().MaintenanceCondition {
		return true
	}
	return s.NextMaintenanceAt != nil && !now.Before(*s.NextMaintenanceAt)
}

func (s *Station) setCondition(v int) {
	s.Condition = max(0, min(100, v))
}

func (s *Station) AccessibilityScore() int {
	return s.score(s.policy().AccessibilityWeights)
}

func (s *Station) ComfortScore() int {
	return s.score(s.policy().ComfortWeights)
}

func (s *Station) score(weights map[Feature]int) int {
	total := 0
	for f, w := range weights {
		if s.Features.Has(f) {
			total += w
		}
	}
	return min(total, 100)
}

// AddConnection links this station to another one for transfers.
func (s *Station) AddConnection(otherID string) error {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" || otherID == s.ID {
		return fmt.Errorf("add connection %s -> %q: %w", s.ID, otherID, ErrInvalidID)
	}
	i, found := slices.BinarySearch(s.ConnectionIDs, otherID)
	if !found {
		s.ConnectionIDs = slices.Insert(s.ConnectionIDs, i, otherID)
	}
	return nil
}

func (s *Station) RemoveConnection(otherID string) bool {
	i, found := slices.BinarySearch(s.ConnectionIDs, otherID)
	if !found {
		return false
	}
	s.ConnectionIDs = slices.Delete(s.ConnectionIDs, i, i+1)
	return true
}

func (s *Station) IsMultimodal() bool { return len(s.ConnectionIDs) > 0 }

// Connections returns the connected station ids in sorted order.
func (s *Station) Connections() []string { return slices.Clone(s.ConnectionIDs) }

func (s *Station) IsConnectedTo(otherID string) bool {
	_, found := slices.BinarySearch(s.ConnectionIDs, otherID)
	return found
}

// Close permanently takes the station out of service. Stations are never
// deleted.
func (s *Station) Close() bool {
	if s.Status == StationClosed {
		return false
	}
	s.Status = StationClosed
	s.CurrentQueueLength = 0
	return true
}

// Open puts a planned or closed station into service.
func (s *Station) Open() bool {
	if s.Status != StationPlanned && s.Status != StationClosed {
		return false
	}
	s.Status = StationActive
	return true
}

func (s *Station) Clone() *Station {
	c := *s
	c.Position.Z = clonePtr(s.Position.Z)
	c.ConnectionIDs = slices.Clone(s.ConnectionIDs)
	c.LastServedAt = clonePtr(s.LastServedAt)
	c.LastMaintenanceAt = clonePtr(s.LastMaintenanceAt)
	c.NextMaintenanceAt = clonePtr(s.NextMaintenanceAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
