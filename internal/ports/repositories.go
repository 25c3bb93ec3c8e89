// Package ports declares the persistence contracts the simulation and fare
// services depend on. Implementations live in internal/store (in memory) and
// internal/db (PostgreSQL).
package ports

import (
	"context"
	"errors"
	"time"

	"transit-sim/internal/domain"
)

// ErrNotFound is returned by Get when no entity has the requested id.
var ErrNotFound = errors.New("not found")

// StationFilter narrows List results. Zero values match everything. Near
// with a positive Radius keeps stations within that planar distance.
type StationFilter struct {
	Type   domain.StationType
	Status domain.StationStatus
	Near   *domain.Position
	Radius float64
}

func (f StationFilter) Match(s *domain.Station) bool {
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Near != nil && f.Radius > 0 && s.Position.DistanceTo(*f.Near) > f.Radius {
		return false
	}
	return true
}

type VehicleFilter struct {
	Kind      domain.VehicleKind
	Status    domain.VehicleStatus
	RouteID   string
	StationID string
}

func (f VehicleFilter) Match(v *domain.Vehicle) bool {
	if f.Kind != "" && v.Kind != f.Kind {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.RouteID != "" && v.AssignedRouteID != f.RouteID {
		return false
	}
	if f.StationID != "" && v.CurrentStationID != f.StationID {
		return false
	}
	return true
}

// TicketFilter selects tickets. ValidAt keeps tickets whose validity window
// contains the instant, without changing their status.
type TicketFilter struct {
	AgentID string
	Status  domain.TicketStatus
	ValidAt *time.Time
}

func (f TicketFilter) Match(t *domain.Ticket) bool {
	if f.AgentID != "" && t.AgentID != f.AgentID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ValidAt != nil {
		if f.ValidAt.Before(t.ValidFrom) {
			return false
		}
		if t.ValidUntil != nil && !f.ValidAt.Before(*t.ValidUntil) {
			return false
		}
	}
	return true
}

type RouteFilter struct {
	StationID  string
	ActiveOnly bool
}

func (f RouteFilter) Match(r *domain.Route) bool {
	if f.ActiveOnly && !r.Active {
		return false
	}
	if f.StationID != "" && !r.HasStation(f.StationID) {
		return false
	}
	return true
}

type StationRepository interface {
	GetStation(ctx context.Context, id string) (*domain.Station, error)
	SaveStation(ctx context.Context, s *domain.Station) error
	ListStations(ctx context.Context, f StationFilter) ([]*domain.Station, error)
}

type VehicleRepository interface {
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	SaveVehicle(ctx context.Context, v *domain.Vehicle) error
	ListVehicles(ctx context.Context, f VehicleFilter) ([]*domain.Vehicle, error)
}

type TicketRepository interface {
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	SaveTicket(ctx context.Context, t *domain.Ticket) error
	ListTickets(ctx context.Context, f TicketFilter) ([]*domain.Ticket, error)
}

type RouteRepository interface {
	GetRoute(ctx context.Context, id string) (*domain.Route, error)
	SaveRoute(ctx context.Context, r *domain.Route) error
	ListRoutes(ctx context.Context, f RouteFilter) ([]*domain.Route, error)
}

// Store bundles every repository. List results are ordered by id.
type Store interface {
	StationRepository
	VehicleRepository
	TicketRepository
	RouteRepository
}
