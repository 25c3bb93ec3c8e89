// Package store holds the in-memory implementation of the repository ports.
// Entities are cloned on the way in and on the way out so callers never share
// state with the store.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

type table[T any] struct {
	rows  map[string]*T
	clone func(*T) *T
}

func newTable[T any](clone func(*T) *T) table[T] {
	return table[T]{rows: map[string]*T{}, clone: clone}
}

func (t table[T]) get(kind, id string) (*T, error) {
	row, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, ports.ErrNotFound)
	}
	return t.clone(row), nil
}

func (t table[T]) put(id string, row *T) {
	t.rows[id] = t.clone(row)
}

func (t table[T]) list(match func(*T) bool) []*T {
	ids := make([]string, 0, len(t.rows))
	for id, row := range t.rows {
		if match(row) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.clone(t.rows[id]))
	}
	return out
}

// Memory is a mutex-guarded ports.Store.
type Memory struct {
	mu       sync.RWMutex
	stations table[domain.Station]
	vehicles table[domain.Vehicle]
	tickets  table[domain.Ticket]
	routes   table[domain.Route]
}

var _ ports.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		stations: newTable((*domain.Station).Clone),
		vehicles: newTable((*domain.Vehicle).Clone),
		tickets:  newTable((*domain.Ticket).Clone),
		routes:   newTable((*domain.Route).Clone),
	}
}

func checkID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("save %s: %w", kind, domain.ErrInvalidID)
	}
	return nil
}

func (m *Memory) GetStation(_ context.Context, id string) (*domain.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stations.get("station", id)
}

func (m *Memory) SaveStation(_ context.Context, s *domain.Station) error {
	if err := checkID("station", s.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations.put(s.ID, s)
	return nil
}

func (m *Memory) ListStations(_ context.Context, f ports.StationFilter) ([]*domain.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stations.list(f.Match), nil
}

func (m *Memory) GetVehicle(_ context.Context, id string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles.get("vehicle", id)
}

func (m *Memory) SaveVehicle(_ context.Context, v *domain.Vehicle) error {
	if err := checkID("vehicle", v.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles.put(v.ID, v)
	return nil
}

func (m *Memory) ListVehicles(_ context.Context, f ports.VehicleFilter) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles.list(f.Match), nil
}

func (m *Memory) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tickets.get("ticket", id)
}

func (m *Memory) SaveTicket(_ context.Context, t *domain.Ticket) error {
	if err := checkID("ticket", t.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets.put(t.ID, t)
	return nil
}

func (m *Memory) ListTickets(_ context.Context, f ports.TicketFilter) ([]*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tickets.list(f.Match), nil
}

func (m *Memory) GetRoute(_ context.Context, id string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes.get("route", id)
}

func (m *Memory) SaveRoute(_ context.Context, r *domain.Route) error {
	if err := checkID("route", r.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes.put(r.ID, r)
	return nil
}

func (m *Memory) ListRoutes(_ context.Context, f ports.RouteFilter) ([]*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes.list(f.Match), nil
}
