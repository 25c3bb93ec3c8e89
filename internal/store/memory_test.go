package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestMemoryStationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	s, err := domain.NewStation("st-1", "Central", "CEN", domain.StationTrain, domain.Position{X: 0, Y: 0}, nil)
	require.NoError(t, err)
	require.NoError(t, m.SaveStation(ctx, s))

	s.AddToQueue(10)
	got, err := m.GetStation(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentQueueLength, "store keeps its own copy")

	got.AddToQueue(5)
	again, err := m.GetStation(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.CurrentQueueLength)

	_, err = m.GetStation(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestMemoryRejectsEmptyID(t *testing.T) {
	m := NewMemory()
	err := m.SaveRoute(context.Background(), &domain.Route{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestMemoryListStationsFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, st := range []struct {
		id   string
		typ  domain.StationType
		x, y float64
	}{
		{"c", domain.StationBusStop, 3, 4},
		{"a", domain.StationTrain, 0, 1},
		{"b", domain.StationBusStop, 10, 10},
	} {
		s, err := domain.NewStation(st.id, st.id, st.id, st.typ, domain.Position{X: st.x, Y: st.y}, nil)
		require.NoError(t, err)
		require.NoError(t, m.SaveStation(ctx, s))
	}

	all, err := m.ListStations(ctx, ports.StationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, stationIDs(all))

	buses, err := m.ListStations(ctx, ports.StationFilter{Type: domain.StationBusStop})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, stationIDs(buses))

	near, err := m.ListStations(ctx, ports.StationFilter{Near: &domain.Position{}, Radius: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, stationIDs(near))
}

func TestMemoryListVehiclesFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	bus, err := domain.NewVehicle("v-1", "Bus 1", domain.VehicleBus, domain.FuelDiesel, nil)
	require.NoError(t, err)
	_, err = bus.StartTrip("r-1", "st-2")
	require.NoError(t, err)
	tram, err := domain.NewVehicle("v-2", "Tram 1", domain.VehicleTram, domain.FuelElectric, nil)
	require.NoError(t, err)
	_, err = tram.Dock("st-1")
	require.NoError(t, err)
	require.NoError(t, m.SaveVehicle(ctx, bus))
	require.NoError(t, m.SaveVehicle(ctx, tram))

	got, err := m.ListVehicles(ctx, ports.VehicleFilter{RouteID: "r-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v-1", got[0].ID)

	got, err = m.ListVehicles(ctx, ports.VehicleFilter{StationID: "st-1", Status: domain.VehicleDocked})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v-2", got[0].ID)

	got, err = m.ListVehicles(ctx, ports.VehicleFilter{Kind: domain.VehicleTrain})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryListTicketsValidAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	single, err := domain.Purchase(domain.PurchaseRequest{ID: "t-1", AgentID: "ag", Type: domain.TicketSingle}, 0, now)
	require.NoError(t, err)
	week, err := domain.Purchase(domain.PurchaseRequest{ID: "t-2", AgentID: "ag", Type: domain.TicketWeekPass}, 0, now)
	require.NoError(t, err)
	other, err := domain.Purchase(domain.PurchaseRequest{ID: "t-3", AgentID: "zz", Type: domain.TicketWeekPass}, 0, now)
	require.NoError(t, err)
	for _, tk := range []*domain.Ticket{single, week, other} {
		require.NoError(t, m.SaveTicket(ctx, tk))
	}

	later := now.Add(3 * time.Hour)
	got, err := m.ListTickets(ctx, ports.TicketFilter{AgentID: "ag", ValidAt: &later})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t-2", got[0].ID)
	assert.Equal(t, domain.TicketActive, got[0].Status)
}

func TestMemoryListRoutesByStation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r1, err := domain.NewRoute("r-1", "One", "1", domain.ModeBus, 10)
	require.NoError(t, err)
	require.NoError(t, r1.AddStation(domain.RouteStation{StationID: "a", SequenceOrder: 1}))
	r2, err := domain.NewRoute("r-2", "Two", "2", domain.ModeBus, 10)
	require.NoError(t, err)
	require.NoError(t, r2.AddStation(domain.RouteStation{StationID: "a", SequenceOrder: 1}))
	r2.Active = false
	require.NoError(t, m.SaveRoute(ctx, r1))
	require.NoError(t, m.SaveRoute(ctx, r2))

	got, err := m.ListRoutes(ctx, ports.RouteFilter{StationID: "a", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r-1", got[0].ID)

	got, err = m.ListRoutes(ctx, ports.RouteFilter{StationID: "a"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func stationIDs(ss []*domain.Station) []string {
	ids := make([]string, 0, len(ss))
	for _, s := range ss {
		ids = append(ids, s.ID)
	}
	return ids
}
