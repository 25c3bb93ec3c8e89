package seed

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
	"transit-sim/internal/store"
)

func loadNetwork(t *testing.T, p Policies) *Network {
	t.Helper()
	f, err := Load("testdata/network.yaml")
	require.NoError(t, err)
	n, err := f.Build(p)
	require.NoError(t, err)
	return n
}

func TestBuildStations(t *testing.T) {
	n := loadNetwork(t, Policies{})
	require.Len(t, n.Stations, 3)

	central := n.Stations[0]
	assert.Equal(t, domain.StationMultimodalHub, central.Type)
	assert.True(t, central.Features.Has(domain.FeatureElevator))
	assert.True(t, central.Features.Has(domain.FeatureWifi))
	assert.False(t, central.Features.Has(domain.FeatureCCTV))

	park := n.Stations[1]
	assert.Equal(t, 12, park.CurrentQueueLength)

	harbour := n.Stations[2]
	_, err := uuid.Parse(harbour.ID)
	assert.NoError(t, err, "missing ids are generated")
	assert.Equal(t, domain.StationMaintenance, harbour.Status)
	require.NotNil(t, harbour.Position.Z)
	assert.Equal(t, -1.5, *harbour.Position.Z)
	assert.Equal(t, []string{harbour.ID}, central.Connections())
	assert.Equal(t, []string{central.ID}, harbour.Connections(), "connections are recorded on both ends")
	assert.True(t, harbour.IsConnectedTo(central.ID))
	assert.False(t, park.IsMultimodal())
}

func TestBuildRoutesAndVehicles(t *testing.T) {
	n := loadNetwork(t, Policies{VehicleWearRate: 0.2})
	require.Len(t, n.Routes, 1)

	r := n.Routes[0]
	assert.Equal(t, "r-7", r.ID)
	assert.Equal(t, "05:30", r.ScheduleStart.String())
	assert.Equal(t, "00:30", r.ScheduleEnd.String())
	assert.Equal(t, domain.NewMoney(2, 50), r.BaseFare)
	assert.Equal(t, 12, r.FrequencyMinutes)
	require.Len(t, r.Stations, 3)
	assert.Equal(t, "st-central", r.Stations[0].StationID)
	assert.Equal(t, n.Stations[2].ID, r.Stations[2].StationID)
	d, err := r.TripDuration("st-central", n.Stations[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 18, d)

	require.Len(t, n.Vehicles, 3)
	assert.Equal(t, "r-7", n.Vehicles[0].AssignedRouteID, "route resolved by code")
	assert.Equal(t, 0.2, n.Vehicles[0].WearRate)
	assert.Equal(t, 0.05, n.Vehicles[1].WearRate, "per-vehicle override wins")
	assert.Equal(t, domain.VehicleFerry, n.Vehicles[2].Kind)
	assert.Empty(t, n.Vehicles[2].AssignedRouteID)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	n := loadNetwork(t, Policies{})

	require.NoError(t, Apply(ctx, mem, n))

	stations, err := mem.ListStations(ctx, ports.StationFilter{})
	require.NoError(t, err)
	assert.Len(t, stations, 3)
	onRoute, err := mem.ListVehicles(ctx, ports.VehicleFilter{RouteID: "r-7"})
	require.NoError(t, err)
	assert.Len(t, onRoute, 2)
	routes, err := mem.ListRoutes(ctx, ports.RouteFilter{StationID: "st-park"})
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "stations:\n  - id: a\n    type: bus_stop\n    colour: red\n"},
		{"bad station type", "stations:\n  - id: a\n    type: spaceport\n"},
		{"bad feature", "stations:\n  - id: a\n    type: bus_stop\n    features: [jacuzzi]\n"},
		{"duplicate station", "stations:\n  - id: a\n    type: bus_stop\n  - id: a\n    type: bus_stop\n"},
		{"self connection", "stations:\n  - id: a\n    type: bus_stop\n    connections: [a]\n"},
		{"unknown connection", "stations:\n  - id: a\n    type: bus_stop\n    connections: [b]\n"},
		{"queue over limit", "stations:\n  - id: a\n    type: bus_stop\n    queue: 1000\n"},
		{"unknown stop", "routes:\n  - id: r\n    mode: bus\n    stops:\n      - station: nowhere\n"},
		{"bad schedule", "routes:\n  - id: r\n    mode: bus\n    start: \"25:00\"\n"},
		{"bad mode", "routes:\n  - id: r\n    mode: zeppelin\n"},
		{"unknown vehicle route", "vehicles:\n  - id: v\n    kind: bus\n    fuel: diesel\n    route: r\n"},
		{"bad fuel", "vehicles:\n  - id: v\n    kind: bus\n    fuel: steam\n"},
		{"duplicate vehicle", "vehicles:\n  - id: v\n    kind: bus\n    fuel: diesel\n  - id: v\n    kind: taxi\n    fuel: petrol\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse([]byte(tc.doc))
			if err == nil {
				_, err = f.Build(Policies{})
			}
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	n, err := f.Build(Policies{})
	require.NoError(t, err)
	assert.Empty(t, n.Stations)
}
