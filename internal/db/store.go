package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

// Store implements ports.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ ports.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// where accumulates numbered placeholders for a filtered SELECT.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(cond string) { w.conds = append(w.conds, cond) }

func (w *where) query(table string) string {
	q := "SELECT state FROM " + table
	if len(w.conds) > 0 {
		q += " WHERE " + strings.Join(w.conds, " AND ")
	}
	return q + " ORDER BY id"
}

func getState[T any](ctx context.Context, db *sql.DB, table, id string) (*T, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, "SELECT state FROM "+table+" WHERE id = $1", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s %s: %w", table, id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", table, id, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	return &v, nil
}

func listStates[T any](ctx context.Context, db *sql.DB, table string, w *where) ([]*T, error) {
	rows, err := db.QueryContext(ctx, w.query(table), w.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func encode(kind, id string, v any) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("save %s: %w", kind, domain.ErrInvalidID)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	return b, nil
}

func (s *Store) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	return getState[domain.Station](ctx, s.db, "stations", id)
}

func (s *Store) SaveStation(ctx context.Context, st *domain.Station) error {
	b, err := encode("station", st.ID, st)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO stations (id, type, status, x, y, state, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
  type = EXCLUDED.type, status = EXCLUDED.status, x = EXCLUDED.x, y = EXCLUDED.y,
  state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, q, st.ID, string(st.Type), string(st.Status), st.Position.X, st.Position.Y, b); err != nil {
		return fmt.Errorf("save station %s: %w", st.ID, err)
	}
	return nil
}

func stationWhere(f ports.StationFilter) *where {
	w := &where{}
	if f.Type != "" {
		w.add("type = " + w.arg(string(f.Type)))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.Near != nil && f.Radius > 0 {
		w.add(fmt.Sprintf("(x - %s)^2 + (y - %s)^2 <= %s", w.arg(f.Near.X), w.arg(f.Near.Y), w.arg(f.Radius*f.Radius)))
	}
	return w
}

func (s *Store) ListStations(ctx context.Context, f ports.StationFilter) ([]*domain.Station, error) {
	return listStates[domain.Station](ctx, s.db, "stations", stationWhere(f))
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return getState[domain.Vehicle](ctx, s.db, "vehicles", id)
}

func (s *Store) SaveVehicle(ctx context.Context, v *domain.Vehicle) error {
	b, err := encode("vehicle", v.ID, v)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO vehicles (id, kind, status, assigned_route_id, current_station_id, state, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
  kind = EXCLUDED.kind, status = EXCLUDED.status,
  assigned_route_id = EXCLUDED.assigned_route_id, current_station_id = EXCLUDED.current_station_id,
  state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, q, v.ID, string(v.Kind), string(v.Status), v.AssignedRouteID, v.CurrentStationID, b); err != nil {
		return fmt.Errorf("save vehicle %s: %w", v.ID, err)
	}
	return nil
}

func vehicleWhere(f ports.VehicleFilter) *where {
	w := &where{}
	if f.Kind != "" {
		w.add("kind = " + w.arg(string(f.Kind)))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.RouteID != "" {
		w.add("assigned_route_id = " + w.arg(f.RouteID))
	}
	if f.StationID != "" {
		w.add("current_station_id = " + w.arg(f.StationID))
	}
	return w
}

func (s *Store) ListVehicles(ctx context.Context, f ports.VehicleFilter) ([]*domain.Vehicle, error) {
	return listStates[domain.Vehicle](ctx, s.db, "vehicles", vehicleWhere(f))
}

func (s *Store) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return getState[domain.Ticket](ctx, s.db, "tickets", id)
}

func (s *Store) SaveTicket(ctx context.Context, t *domain.Ticket) error {
	b, err := encode("ticket", t.ID, t)
	if err != nil {
		return err
	}
	var until sql.NullTime
	if t.ValidUntil != nil {
		until = sql.NullTime{Time: *t.ValidUntil, Valid: true}
	}
	const q = `
INSERT INTO tickets (id, agent_id, status, valid_from, valid_until, state, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
  agent_id = EXCLUDED.agent_id, status = EXCLUDED.status,
  valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
  state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.AgentID, string(t.Status), t.ValidFrom, until, b); err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}
	return nil
}

func ticketWhere(f ports.TicketFilter) *where {
	w := &where{}
	if f.AgentID != "" {
		w.add("agent_id = " + w.arg(f.AgentID))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.ValidAt != nil {
		at := w.arg(*f.ValidAt)
		w.add("valid_from <= " + at)
		w.add("(valid_until IS NULL OR valid_until > " + at + ")")
	}
	return w
}

func (s *Store) ListTickets(ctx context.Context, f ports.TicketFilter) ([]*domain.Ticket, error) {
	return listStates[domain.Ticket](ctx, s.db, "tickets", ticketWhere(f))
}

func (s *Store) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	return getState[domain.Route](ctx, s.db, "routes", id)
}

func (s *Store) SaveRoute(ctx context.Context, r *domain.Route) error {
	b, err := encode("route", r.ID, r)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO routes (id, active, state, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
  active = EXCLUDED.active, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.Active, b); err != nil {
		return fmt.Errorf("save route %s: %w", r.ID, err)
	}
	return nil
}

func routeWhere(f ports.RouteFilter) *where {
	w := &where{}
	if f.ActiveOnly {
		w.add("active")
	}
	if f.StationID != "" {
		w.add("state->'stations' @> jsonb_build_array(jsonb_build_object('station_id', " + w.arg(f.StationID) + "::text))")
	}
	return w
}

func (s *Store) ListRoutes(ctx context.Context, f ports.RouteFilter) ([]*domain.Route, error) {
	return listStates[domain.Route](ctx, s.db, "routes", routeWhere(f))
}
