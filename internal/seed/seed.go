// Package seed loads a transit network from a YAML file and writes it through
// the repositories. Entities may reference each other by id or code; missing
// ids are generated.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

type File struct {
	Stations []StationSpec `yaml:"stations"`
	Vehicles []VehicleSpec `yaml:"vehicles"`
	Routes   []RouteSpec   `yaml:"routes"`
}

type StationSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Code        string   `yaml:"code"`
	Type        string   `yaml:"type"`
	X           float64  `yaml:"x"`
	Y           float64  `yaml:"y"`
	Z           *float64 `yaml:"z"`
	Status      string   `yaml:"status"`
	Queue       int      `yaml:"queue"`
	Features    []string `yaml:"features"`
	Connections []string `yaml:"connections"`
}

type VehicleSpec struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Fuel     string   `yaml:"fuel"`
	Route    string   `yaml:"route"`
	WearRate *float64 `yaml:"wear_rate"`
}

type RouteSpec struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Code      string     `yaml:"code"`
	Mode      string     `yaml:"mode"`
	Frequency int        `yaml:"frequency_minutes"`
	Start     string     `yaml:"start"`
	End       string     `yaml:"end"`
	BaseFare  float64    `yaml:"base_fare"`
	Inactive  bool       `yaml:"inactive"`
	Stops     []StopSpec `yaml:"stops"`
}

type StopSpec struct {
	Station       string  `yaml:"station"`
	DistanceKm    float64 `yaml:"distance_km"`
	TravelMinutes int     `yaml:"travel_minutes"`
	DwellMinutes  int     `yaml:"dwell_minutes"`
}

// Policies are attached to every entity built from a file.
type Policies struct {
	Station         *domain.StationPolicy
	Vehicle         *domain.VehiclePolicy
	VehicleWearRate float64 // overrides the per-kind default when > 0
}

type Network struct {
	Stations []*domain.Station
	Vehicles []*domain.Vehicle
	Routes   []*domain.Route
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// refs resolves id-or-code references.
type refs map[string]string

func (r refs) add(id, code string) error {
	if _, dup := r[id]; dup {
		return fmt.Errorf("duplicate id %q", id)
	}
	r[id] = id
	if code != "" && code != id {
		if _, dup := r[code]; dup {
			return fmt.Errorf("duplicate code %q", code)
		}
		r[code] = id
	}
	return nil
}

func idOrNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// Build turns a parsed file into domain entities.
func (f *File) Build(p Policies) (*Network, error) {
	n := &Network{}
	stationRefs, routeRefs := refs{}, refs{}

	for _, ss := range f.Stations {
		s, err := domain.NewStation(idOrNew(ss.ID), ss.Name, ss.Code, domain.StationType(ss.Type), domain.Position{X: ss.X, Y: ss.Y, Z: ss.Z}, p.Station)
		if err != nil {
			return nil, err
		}
		if err := stationRefs.add(s.ID, s.Code); err != nil {
			return nil, fmt.Errorf("station: %w", err)
		}
		if ss.Status != "" {
			st := domain.StationStatus(ss.Status)
			if !st.Valid() {
				return nil, fmt.Errorf("station %s: unknown status %q", s.ID, ss.Status)
			}
			s.Status = st
		}
		for _, name := range ss.Features {
			feat, err := domain.ParseFeature(name)
			if err != nil {
				return nil, fmt.Errorf("station %s: %w", s.ID, err)
			}
			s.Features = s.Features.With(feat)
		}
		if ss.Queue > 0 && !s.AddToQueue(ss.Queue) {
			return nil, fmt.Errorf("station %s: queue %d exceeds limit %d", s.ID, ss.Queue, s.MaxQueueLength)
		}
		n.Stations = append(n.Stations, s)
	}

	// Connections may point forward in the file, so they resolve in a second
	// pass. A connection is symmetric: both ends record it.
	byID := make(map[string]*domain.Station, len(n.Stations))
	for _, s := range n.Stations {
		byID[s.ID] = s
	}
	for i, ss := range f.Stations {
		s := n.Stations[i]
		for _, ref := range ss.Connections {
			other, ok := stationRefs[ref]
			if !ok {
				return nil, fmt.Errorf("station %s: unknown connection %q", s.ID, ref)
			}
			if err := s.AddConnection(other); err != nil {
				return nil, fmt.Errorf("station %s: %w", s.ID, err)
			}
			if err := byID[other].AddConnection(s.ID); err != nil {
				return nil, fmt.Errorf("station %s: %w", other, err)
			}
		}
	}

	for _, rs := range f.Routes {
		r, err := buildRoute(rs, stationRefs)
		if err != nil {
			return nil, err
		}
		if err := routeRefs.add(r.ID, r.Code); err != nil {
			return nil, fmt.Errorf("route: %w", err)
		}
		n.Routes = append(n.Routes, r)
	}

	seen := map[string]bool{}
	for _, vs := range f.Vehicles {
		v, err := domain.NewVehicle(idOrNew(vs.ID), vs.Name, domain.VehicleKind(vs.Kind), domain.FuelKind(vs.Fuel), p.Vehicle)
		if err != nil {
			return nil, err
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("vehicle: duplicate id %q", v.ID)
		}
		seen[v.ID] = true
		switch {
		case vs.WearRate != nil:
			v.WearRate = *vs.WearRate
		case p.VehicleWearRate > 0:
			v.WearRate = p.VehicleWearRate
		}
		if vs.Route != "" {
			id, ok := routeRefs[vs.Route]
			if !ok {
				return nil, fmt.Errorf("vehicle %s: unknown route %q", v.ID, vs.Route)
			}
			v.AssignedRouteID = id
		}
		n.Vehicles = append(n.Vehicles, v)
	}
	return n, nil
}

func buildRoute(rs RouteSpec, stations refs) (*domain.Route, error) {
	r, err := domain.NewRoute(idOrNew(rs.ID), rs.Name, rs.Code, domain.RouteMode(rs.Mode), rs.Frequency)
	if err != nil {
		return nil, err
	}
	r.Active = !rs.Inactive
	r.BaseFare = domain.MoneyFromFloat(rs.BaseFare)
	if rs.Start != "" {
		if r.ScheduleStart, err = domain.ParseTimeOfDay(rs.Start); err != nil {
			return nil, fmt.Errorf("route %s: %w", r.ID, err)
		}
	}
	if rs.End != "" {
		if r.ScheduleEnd, err = domain.ParseTimeOfDay(rs.End); err != nil {
			return nil, fmt.Errorf("route %s: %w", r.ID, err)
		}
	}
	for i, stop := range rs.Stops {
		id, ok := stations[stop.Station]
		if !ok {
			return nil, fmt.Errorf("route %s: unknown station %q", r.ID, stop.Station)
		}
		err := r.AddStation(domain.RouteStation{
			StationID:              id,
			SequenceOrder:          i + 1,
			TravelTimeFromPrevious: stop.TravelMinutes,
			DistanceFromPreviousKm: stop.DistanceKm,
			EstimatedStopMinutes:   stop.DwellMinutes,
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Apply saves every entity of n. Existing rows with the same id are replaced.
func Apply(ctx context.Context, store ports.Store, n *Network) error {
	for _, s := range n.Stations {
		if err := store.SaveStation(ctx, s); err != nil {
			return fmt.Errorf("seed station %s: %w", s.ID, err)
		}
	}
	for _, r := range n.Routes {
		if err := store.SaveRoute(ctx, r); err != nil {
			return fmt.Errorf("seed route %s: %w", r.ID, err)
		}
	}
	for _, v := range n.Vehicles {
		if err := store.SaveVehicle(ctx, v); err != nil {
			return fmt.Errorf("seed vehicle %s: %w", v.ID, err)
		}
	}
	log.Info().
		Int("stations", len(n.Stations)).
		Int("routes", len(n.Routes)).
		Int("vehicles", len(n.Vehicles)).
		Msg("network seeded")
	return nil
}
