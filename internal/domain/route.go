package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type RouteMode string

const (
	ModeRail  RouteMode = "rail"
	ModeMetro RouteMode = "metro"
	ModeTram  RouteMode = "tram"
	ModeBus   RouteMode = "bus"
	ModeFerry RouteMode = "ferry"
)

func (m RouteMode) Valid() bool {
	switch m {
	case ModeRail, ModeMetro, ModeTram, ModeBus, ModeFerry:
		return true
	}
	return false
}

// TimeOfDay is minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("parse time of day %q: bad hour", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("parse time of day %q: bad minute", s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func timeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

type RouteStation struct {
	StationID              string  `json:"station_id"`
	SequenceOrder          int     `json:"sequence_order"`
	TravelTimeFromPrevious int     `json:"travel_time_from_previous"` // minutes
	DistanceFromPreviousKm float64 `json:"distance_from_previous_km"`
	EstimatedStopMinutes   int     `json:"estimated_stop_minutes,omitempty"`
}

type Route struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Code             string         `json:"code"`
	Mode             RouteMode      `json:"mode"`
	Active           bool           `json:"active"`
	ScheduleStart    TimeOfDay      `json:"schedule_start"`
	ScheduleEnd      TimeOfDay      `json:"schedule_end"`
	FrequencyMinutes int            `json:"frequency_minutes"`
	BaseFare         Money          `json:"base_fare"`
	Stations         []RouteStation `json:"stations"` // ordered by SequenceOrder
}

type RouteStatistics struct {
	StationCount       int     `json:"station_count"`
	TotalDistanceKm    float64 `json:"total_distance_km"`
	TotalTravelMinutes int     `json:"total_travel_minutes"`
}

// Arrival describes the route expected to serve a station soonest.
type Arrival struct {
	RouteID          string `json:"route_id"`
	RouteName        string `json:"route_name"`
	FrequencyMinutes int    `json:"frequency_minutes"`
}

func NewRoute(id, name, code string, mode RouteMode, frequencyMinutes int) (*Route, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("new route: %w", ErrInvalidID)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("new route %s: unknown mode %q", id, mode)
	}
	return &Route{
		ID:               id,
		Name:             name,
		Code:             code,
		Mode:             mode,
		Active:           true,
		FrequencyMinutes: frequencyMinutes,
	}, nil
}

// AddStation inserts a stop at its sequence position.
func (r *Route) AddStation(rs RouteStation) error {
	if strings.TrimSpace(rs.StationID) == "" {
		return fmt.Errorf("add station to route %s: %w", r.ID, ErrInvalidID)
	}
	if rs.TravelTimeFromPrevious < 0 || rs.DistanceFromPreviousKm < 0 || rs.EstimatedStopMinutes < 0 {
		return fmt.Errorf("add station %s to route %s: %w", rs.StationID, r.ID, ErrInvalidSegment)
	}
	for _, existing := range r.Stations {
		if existing.StationID == rs.StationID {
			return fmt.Errorf("add station %s to route %s: %w", rs.StationID, r.ID, ErrDuplicateStation)
		}
		if existing.SequenceOrder == rs.SequenceOrder {
			return fmt.Errorf("add station %s to route %s at %d: %w", rs.StationID, r.ID, rs.SequenceOrder, ErrDuplicateSequence)
		}
	}
	i, _ := slices.BinarySearchFunc(r.Stations, rs.SequenceOrder, func(e RouteStation, seq int) int {
		return e.SequenceOrder - seq
	})
	r.Stations = slices.Insert(r.Stations, i, rs)
	return nil
}

func (r *Route) RemoveStation(stationID string) bool {
	i := r.index(stationID)
	if i < 0 {
		return false
	}
	r.Stations = slices.Delete(r.Stations, i, i+1)
	return true
}

func (r *Route) index(stationID string) int {
	return slices.IndexFunc(r.Stations, func(rs RouteStation) bool { return rs.StationID == stationID })
}

func (r *Route) HasStation(stationID string) bool { return r.index(stationID) >= 0 }

// TripDuration returns the minutes from departing origin to arriving at
// destination: every incoming travel time up to the destination plus the
// dwell time of each stop in between.
func (r *Route) TripDuration(originID, destinationID string) (int, error) {
	oi, di := r.index(originID), r.index(destinationID)
	if oi < 0 {
		return 0, fmt.Errorf("trip duration on route %s: origin %s: %w", r.ID, originID, ErrStationNotOnRoute)
	}
	if di < 0 {
		return 0, fmt.Errorf("trip duration on route %s: destination %s: %w", r.ID, destinationID, ErrStationNotOnRoute)
	}
	if r.Stations[oi].SequenceOrder >= r.Stations[di].SequenceOrder {
		return 0, fmt.Errorf("trip duration on route %s: %s -> %s: %w", r.ID, originID, destinationID, ErrWrongDirection)
	}
	total := 0
	for k := oi + 1; k <= di; k++ {
		total += r.Stations[k].TravelTimeFromPrevious
		if k < di {
			total += r.Stations[k].EstimatedStopMinutes
		}
	}
	return total, nil
}

func (r *Route) Statistics() RouteStatistics {
	st := RouteStatistics{StationCount: len(r.Stations)}
	for _, rs := range r.Stations {
		st.TotalDistanceKm += rs.DistanceFromPreviousKm
		st.TotalTravelMinutes += rs.TravelTimeFromPrevious
	}
	return st
}

func (r *Route) First() (RouteStation, bool) {
	if len(r.Stations) == 0 {
		return RouteStation{}, false
	}
	return r.Stations[0], true
}

func (r *Route) Terminus() (RouteStation, bool) {
	if len(r.Stations) == 0 {
		return RouteStation{}, false
	}
	return r.Stations[len(r.Stations)-1], true
}

// StationAfter returns the stop following stationID, if any.
func (r *Route) StationAfter(stationID string) (RouteStation, bool) {
	i := r.index(stationID)
	if i < 0 || i+1 >= len(r.Stations) {
		return RouteStation{}, false
	}
	return r.Stations[i+1], true
}

// OperatesAt reports whether t falls inside the daily schedule window. Equal
// start and end mean the route runs all day; an end before the start wraps
// past midnight.
func (r *Route) OperatesAt(t time.Time) bool {
	if !r.Active {
		return false
	}
	m := timeOfDay(t)
	switch {
	case r.ScheduleStart == r.ScheduleEnd:
		return true
	case r.ScheduleStart < r.ScheduleEnd:
		return m >= r.ScheduleStart && m < r.ScheduleEnd
	default:
		return m >= r.ScheduleStart || m < r.ScheduleEnd
	}
}

// NextDeparture returns the first departure from the origin at or after t.
func (r *Route) NextDeparture(after time.Time) (time.Time, bool) {
	if !r.Active || r.FrequencyMinutes <= 0 {
		return time.Time{}, false
	}
	freq := time.Duration(r.FrequencyMinutes) * time.Minute
	y, mo, d := after.Date()
	var best time.Time
	for offset := -1; offset <= 1; offset++ {
		base := time.Date(y, mo, d+offset, 0, 0, 0, 0, after.Location())
		first := base.Add(time.Duration(r.ScheduleStart) * time.Minute)
		end := base.Add(time.Duration(r.ScheduleEnd) * time.Minute)
		if r.ScheduleEnd <= r.ScheduleStart {
			end = end.Add(24 * time.Hour)
		}
		dep := first
		if after.After(first) {
			steps := (after.Sub(first) + freq - 1) / freq
			dep = first.Add(steps * freq)
		}
		if !dep.Before(end) || dep.Before(after) {
			continue
		}
		if best.IsZero() || dep.Before(best) {
			best = dep
		}
	}
	return best, !best.IsZero()
}

// NextVehicleArrival picks, among the active routes serving stationID, the
// one with the shortest headway. A non-empty routeID restricts the search to
// that route.
func NextVehicleArrival(routes []*Route, stationID, routeID string) (Arrival, bool) {
	var best *Route
	for _, r := range routes {
		if r == nil || !r.Active || r.FrequencyMinutes <= 0 {
			continue
		}
		if routeID != "" && r.ID != routeID {
			continue
		}
		if !r.HasStation(stationID) {
			continue
		}
		if best == nil || r.FrequencyMinutes < best.FrequencyMinutes ||
			(r.FrequencyMinutes == best.FrequencyMinutes && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return Arrival{}, false
	}
	return Arrival{RouteID: best.ID, RouteName: best.Name, FrequencyMinutes: best.FrequencyMinutes}, true
}

func (r *Route) Clone() *Route {
	c := *r
	c.Stations = slices.Clone(r.Stations)
	return &c
}
