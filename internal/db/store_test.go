package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

func TestStationWhere(t *testing.T) {
	w := stationWhere(ports.StationFilter{})
	assert.Equal(t, "SELECT state FROM stations ORDER BY id", w.query("stations"))
	assert.Empty(t, w.args)

	w = stationWhere(ports.StationFilter{
		Type:   domain.StationBusStop,
		Status: domain.StationActive,
		Near:   &domain.Position{X: 1, Y: 2},
		Radius: 3,
	})
	assert.Equal(t,
		"SELECT state FROM stations WHERE type = $1 AND status = $2 AND (x - $3)^2 + (y - $4)^2 <= $5 ORDER BY id",
		w.query("stations"))
	assert.Equal(t, []any{"bus_stop", "active", 1.0, 2.0, 9.0}, w.args)
}

func TestVehicleWhere(t *testing.T) {
	w := vehicleWhere(ports.VehicleFilter{RouteID: "r-1", StationID: "st-1"})
	assert.Equal(t,
		"SELECT state FROM vehicles WHERE assigned_route_id = $1 AND current_station_id = $2 ORDER BY id",
		w.query("vehicles"))
	assert.Equal(t, []any{"r-1", "st-1"}, w.args)
}

func TestTicketWhereReusesInstant(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	w := ticketWhere(ports.TicketFilter{AgentID: "ag", ValidAt: &at})
	assert.Equal(t,
		"SELECT state FROM tickets WHERE agent_id = $1 AND valid_from <= $2 AND (valid_until IS NULL OR valid_until > $2) ORDER BY id",
		w.query("tickets"))
	assert.Len(t, w.args, 2)
}

func TestRouteWhere(t *testing.T) {
	w := routeWhere(ports.RouteFilter{ActiveOnly: true, StationID: "a"})
	assert.Contains(t, w.query("routes"), "WHERE active AND state->'stations' @>")
	assert.Equal(t, []any{"a"}, w.args)
}

func TestEncodeRejectsEmptyID(t *testing.T) {
	_, err := encode("route", " ", &domain.Route{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
