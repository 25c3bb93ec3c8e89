package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"transit-sim/internal/domain"
	"transit-sim/internal/metrics"
	"transit-sim/internal/ports"
	"transit-sim/internal/publisher"
)

// arrivalEpsilon absorbs float error when a move lands exactly on a stop.
const arrivalEpsilon = 1e-9

type Publisher interface {
	PublishVehicle(msg publisher.VehicleMessage) error
	PublishStation(msg publisher.StationMessage) error
}

// Fares sells and checks tickets for riders boarding at a stop.
type Fares interface {
	Purchase(ctx context.Context, req domain.PurchaseRequest, balance domain.Money) (*domain.Ticket, error)
	Validate(ctx context.Context, ticketID, routeID string) (bool, error)
}

type Options struct {
	TickInterval    time.Duration
	SpeedMultiplier float64
	Workers         int
	Seed            uint64

	StationPolicy *domain.StationPolicy
	VehiclePolicy *domain.VehiclePolicy

	PassengerArrivalRate   float64 // mean arrivals per station per simulated minute
	StationWearPerTick     int
	StationMaintenanceCost domain.Money
	RefuelBelowPercent     float64
	AccidentProbability    float64 // per moving vehicle per tick

	// Fares, when set, validates a ticket for every boarding rider. Riders
	// are drawn from a population of Riders agents holding one ticket each.
	Fares  Fares
	Riders int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.SpeedMultiplier <= 0 {
		o.SpeedMultiplier = 1
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.StationMaintenanceCost == 0 {
		o.StationMaintenanceCost = domain.NewMoney(1000, 0)
	}
	if o.RefuelBelowPercent == 0 {
		o.RefuelBelowPercent = 20
	}
	if o.Riders <= 0 {
		o.Riders = 500
	}
	return o
}

// TickStats counts what happened during one tick.
type TickStats struct {
	Arrivals           int
	Boarded            int
	Alighted           int
	Dockings           int
	TripsStarted       int
	TripsCompleted     int
	Refuels            int
	VehicleMaintenance int
	StationMaintenance int
	Accidents          int
	TicketsSold        int
	TicketsAccepted    int
	TicketsRejected    int
}

func (s *TickStats) add(o TickStats) {
	s.Arrivals += o.Arrivals
	s.Boarded += o.Boarded
	s.Alighted += o.Alighted
	s.Dockings += o.Dockings
	s.TripsStarted += o.TripsStarted
	s.TripsCompleted += o.TripsCompleted
	s.Refuels += o.Refuels
	s.VehicleMaintenance += o.VehicleMaintenance
	s.StationMaintenance += o.StationMaintenance
	s.Accidents += o.Accidents
	s.TicketsSold += o.TicketsSold
	s.TicketsAccepted += o.TicketsAccepted
	s.TicketsRejected += o.TicketsRejected
}

// trip tracks a vehicle's position along its route between ticks.
type trip struct {
	routeID     string
	stopIndex   int // index of the stop the vehicle is heading to
	remainingKm float64
	segmentKm   float64
}

func (t *trip) progress() float64 {
	if t == nil || t.segmentKm <= 0 {
		return 0
	}
	return max(0, min(1, 1-t.remainingKm/t.segmentKm))
}

// Manager drives the network: each Tick moves passengers into station
// queues, advances every vehicle along its route and publishes the result.
// Station state touched by several vehicles is serialised with a lock per
// station id; each vehicle is stepped by exactly one goroutine per tick.
type Manager struct {
	store   ports.Store
	pub     Publisher
	clock   domain.Clock
	metrics *metrics.Collector
	opts    Options
	rng     *lockedRand
	locks   *keyedMutex

	mu            sync.Mutex
	trips         map[string]*trip           // vehicleID -> trip in progress
	roster        map[string]string          // vehicleID -> routeID
	lastDeparture map[string]time.Time       // routeID -> last dispatch
	accidents     map[string]domain.Severity // vehicleID -> accident not yet published
	passes        map[string]string          // riderID -> ticketID
}

func NewManager(store ports.Store, pub Publisher, clock domain.Clock, m *metrics.Collector, opts Options) *Manager {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Manager{
		store:         store,
		pub:           pub,
		clock:         clock,
		metrics:       m,
		opts:          opts,
		rng:           newLockedRand(seed),
		locks:         newKeyedMutex(),
		trips:         make(map[string]*trip),
		roster:        make(map[string]string),
		lastDeparture: make(map[string]time.Time),
		accidents:     make(map[string]domain.Severity),
		passes:        make(map[string]string),
	}
}

// Load builds the roster from vehicles that already carry a route.
func (m *Manager) Load(ctx context.Context) error {
	vehicles, err := m.store.ListVehicles(ctx, ports.VehicleFilter{})
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vehicles {
		if v.AssignedRouteID != "" {
			m.roster[v.ID] = v.AssignedRouteID
		}
	}
	log.Info().Int("vehicles", len(vehicles)).Int("rostered", len(m.roster)).Msg("roster loaded")
	return nil
}

// Assign puts a vehicle into service on a route from its next dispatch on.
func (m *Manager) Assign(ctx context.Context, vehicleID, routeID string) error {
	if _, err := m.store.GetVehicle(ctx, vehicleID); err != nil {
		return fmt.Errorf("assign: %w", err)
	}
	if _, err := m.store.GetRoute(ctx, routeID); err != nil {
		return fmt.Errorf("assign: %w", err)
	}
	m.mu.Lock()
	m.roster[vehicleID] = routeID
	m.mu.Unlock()
	return nil
}

// TriggerAccident injects an accident for vehicleID.
func (m *Manager) TriggerAccident(ctx context.Context, vehicleID string, severity domain.Severity) (domain.AccidentReport, bool, error) {
	unlock := m.locks.Lock(vehicleKey(vehicleID))
	defer unlock()

	v, err := m.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return domain.AccidentReport{}, false, fmt.Errorf("trigger accident: %w", err)
	}
	v.Policy = m.opts.VehiclePolicy
	report, ok := v.TriggerAccident(severity, m.rng)
	if !ok {
		return report, false, nil
	}
	if err := m.store.SaveVehicle(ctx, v); err != nil {
		return report, false, fmt.Errorf("trigger accident: %w", err)
	}
	m.recordAccident(v, report)
	return report, true, nil
}

// Run ticks until ctx is cancelled. Each wall-clock interval advances the
// simulation by interval times the speed multiplier.
func (m *Manager) Run(ctx context.Context) error {
	simStep := time.Duration(float64(m.opts.TickInterval) * m.opts.SpeedMultiplier)
	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.opts.TickInterval).Dur("step", simStep).Msg("simulation started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("simulation stopped")
			return nil
		case <-ticker.C:
			if adv, ok := m.clock.(interface{ Advance(time.Duration) time.Time }); ok {
				adv.Advance(simStep)
			}
			stats, err := m.Tick(ctx, simStep)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("tick failed")
				continue
			}
			log.Debug().Interface("stats", stats).Msg("tick")
		}
	}
}

type vehicleResult struct {
	vehicle  *domain.Vehicle
	progress float64
	accident domain.Severity
	stats    TickStats
}

// Tick advances the network by dt of simulated time ending at the clock's now.
func (m *Manager) Tick(ctx context.Context, dt time.Duration) (TickStats, error) {
	tickStart := time.Now()
	now := m.clock.Now()
	var stats TickStats

	if err := m.tickStations(ctx, now, dt, &stats); err != nil {
		return stats, err
	}

	routes, err := m.store.ListRoutes(ctx, ports.RouteFilter{})
	if err != nil {
		return stats, fmt.Errorf("tick: %w", err)
	}
	byID := make(map[string]*domain.Route, len(routes))
	for _, r := range routes {
		byID[r.ID] = r
	}
	vehicles, err := m.store.ListVehicles(ctx, ports.VehicleFilter{})
	if err != nil {
		return stats, fmt.Errorf("tick: %w", err)
	}

	p := pool.NewWithResults[vehicleResult]().WithContext(ctx).WithMaxGoroutines(m.opts.Workers)
	for _, v := range vehicles {
		p.Go(func(ctx context.Context) (vehicleResult, error) {
			return m.stepVehicle(ctx, v.ID, byID, now, dt)
		})
	}
	results, err := p.Wait()
	for _, r := range results {
		stats.add(r.stats)
	}
	if err != nil {
		return stats, fmt.Errorf("tick: %w", err)
	}

	m.report(ctx, results, stats, now)
	if m.metrics != nil {
		m.metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
	}
	return stats, nil
}

func (m *Manager) tickStations(ctx context.Context, now time.Time, dt time.Duration, stats *TickStats) error {
	stations, err := m.store.ListStations(ctx, ports.StationFilter{})
	if err != nil {
		return fmt.Errorf("tick stations: %w", err)
	}
	for _, s := range stations {
		if err := m.stepStation(ctx, s.ID, now, dt, stats); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) stepStation(ctx context.Context, id string, now time.Time, dt time.Duration, stats *TickStats) error {
	unlock := m.locks.Lock(stationKey(id))
	defer unlock()

	s, err := m.store.GetStation(ctx, id)
	if err != nil {
		return fmt.Errorf("step station: %w", err)
	}
	s.Policy = m.opts.StationPolicy

	if s.IsOperational() {
		n := m.arrivals(dt)
		n = min(n, s.MaxQueueLength-s.CurrentQueueLength)
		if n > 0 && s.AddToQueue(n) {
			stats.Arrivals += n
		}
	}
	s.DegradeCondition(m.opts.StationWearPerTick)
	// A station in maintenance is serviced every tick until it reopens.
	if s.Status == domain.StationMaintenance || (s.Status == domain.StationActive && s.NeedsMaintenance(now)) {
		s.PerformMaintenance(m.opts.StationMaintenanceCost, now)
		stats.StationMaintenance++
		if m.metrics != nil {
			m.metrics.Maintenance.WithLabelValues("station").Inc()
		}
		log.Info().Str("station", s.ID).Int("condition", s.Condition).Str("status", string(s.Status)).Msg("station maintained")
	}
	return m.store.SaveStation(ctx, s)
}

// arrivals draws a passenger count with mean rate*minutes: the integer part
// always arrives and the fraction arrives with matching probability.
func (m *Manager) arrivals(dt time.Duration) int {
	expected := m.opts.PassengerArrivalRate * dt.Minutes()
	if expected <= 0 {
		return 0
	}
	n := int(expected)
	if frac := expected - float64(n); frac > 0 && m.rng.Float64() < frac {
		n++
	}
	return n
}

func (m *Manager) stepVehicle(ctx context.Context, id string, routes map[string]*domain.Route, now time.Time, dt time.Duration) (vehicleResult, error) {
	unlock := m.locks.Lock(vehicleKey(id))
	defer unlock()

	v, err := m.store.GetVehicle(ctx, id)
	if err != nil {
		return vehicleResult{}, fmt.Errorf("step vehicle: %w", err)
	}
	v.Policy = m.opts.VehiclePolicy
	var st TickStats

	switch v.Status {
	case domain.VehicleRetired:
		m.dropTrip(v.ID)
		return vehicleResult{vehicle: v, accident: m.takeAccident(v.ID)}, nil
	case domain.VehicleBroken:
		m.dropTrip(v.ID)
		if v.ScheduleMaintenance() {
			log.Warn().Str("vehicle", v.ID).Msg("broken vehicle taken to maintenance")
		}
	case domain.VehicleMaintenance:
		cost := v.PerformMaintenance(now)
		st.VehicleMaintenance++
		if m.metrics != nil {
			m.metrics.Maintenance.WithLabelValues("vehicle").Inc()
		}
		log.Info().Str("vehicle", v.ID).Stringer("cost", cost).Msg("vehicle maintained")
	case domain.VehicleIdle, domain.VehicleDocked:
		if err := m.stepStationary(ctx, v, routes, now, &st); err != nil {
			return vehicleResult{}, err
		}
	case domain.VehicleMoving:
		if err := m.stepMoving(ctx, v, routes, now, dt, &st); err != nil {
			return vehicleResult{}, err
		}
	}

	if err := m.store.SaveVehicle(ctx, v); err != nil {
		return vehicleResult{}, fmt.Errorf("step vehicle: %w", err)
	}
	return vehicleResult{
		vehicle:  v,
		progress: m.currentTrip(v.ID).progress(),
		accident: m.takeAccident(v.ID),
		stats:    st,
	}, nil
}

func (m *Manager) stepStationary(ctx context.Context, v *domain.Vehicle, routes map[string]*domain.Route, now time.Time, st *TickStats) error {
	if v.FuelCapacity > 0 && v.FuelPercent() < m.opts.RefuelBelowPercent {
		if added, cost := v.Refuel(nil); added > 0 {
			st.Refuels++
			log.Debug().Str("vehicle", v.ID).Float64("added", added).Stringer("cost", cost).Msg("refuelled")
		}
	}
	if v.MaintenanceDue {
		v.ScheduleMaintenance()
		return nil
	}
	route := routes[m.rosterRoute(v)]
	if route == nil || len(route.Stations) < 2 || !route.OperatesAt(now) || !v.IsOperational() {
		return nil
	}
	release, ok := m.claimDeparture(route, now)
	if !ok {
		return nil
	}
	started := false
	defer func() {
		if !started {
			release()
		}
	}()

	first := route.Stations[0]
	if v.IsDocked && v.CurrentStationID != first.StationID {
		v.Undock()
	}
	if err := m.serveStop(ctx, v, route, first.StationID, false, now, st); err != nil {
		return err
	}
	next := route.Stations[1]
	ok, err := v.StartTrip(route.ID, next.StationID)
	if err != nil || !ok {
		return err
	}
	started = true
	st.TripsStarted++
	m.setTrip(v.ID, &trip{routeID: route.ID, stopIndex: 1, remainingKm: next.DistanceFromPreviousKm, segmentKm: next.DistanceFromPreviousKm})
	log.Debug().Str("vehicle", v.ID).Str("route", route.ID).Int("passengers", v.CurrentPassengers).Msg("trip started")
	return nil
}

func (m *Manager) stepMoving(ctx context.Context, v *domain.Vehicle, routes map[string]*domain.Route, now time.Time, dt time.Duration, st *TickStats) error {
	tr := m.currentTrip(v.ID)
	if tr == nil {
		tr = resumeTrip(v, routes)
	}
	var route *domain.Route
	if tr != nil {
		route = routes[tr.routeID]
	}
	if route == nil || tr.stopIndex >= len(route.Stations) {
		// Lost track of the trip, e.g. the route was removed.
		m.dropTrip(v.ID)
		if v.CompleteTrip() {
			st.TripsCompleted++
		}
		return nil
	}

	if !v.IsMoving {
		if v.CurrentFuel <= 0 {
			if added, _ := v.Refuel(nil); added > 0 {
				st.Refuels++
				log.Warn().Str("vehicle", v.ID).Msg("stalled vehicle refuelled on the line")
			}
		}
		v.SetSpeed(v.MaxSpeed)
		m.setTrip(v.ID, tr)
		return nil
	}

	if p := m.opts.AccidentProbability; p > 0 && m.rng.Float64() < p {
		if report, ok := v.TriggerAccident(m.severity(v), m.rng); ok {
			st.Accidents++
			m.dropTrip(v.ID)
			m.recordAccident(v, report)
			return nil
		}
	}

	tr.remainingKm -= v.Move(dt)
	for hops := 0; tr.remainingKm <= arrivalEpsilon && hops < len(route.Stations); hops++ {
		stop := route.Stations[tr.stopIndex]
		terminus := tr.stopIndex == len(route.Stations)-1
		if err := m.serveStop(ctx, v, route, stop.StationID, terminus, now, st); err != nil {
			return err
		}
		if terminus {
			if v.CompleteTrip() {
				st.TripsCompleted++
			}
			m.dropTrip(v.ID)
			log.Debug().Str("vehicle", v.ID).Str("route", route.ID).Str("status", string(v.Status)).Msg("trip completed")
			return nil
		}
		tr.stopIndex++
		next := route.Stations[tr.stopIndex]
		ok, err := v.StartTrip(route.ID, next.StationID)
		if err != nil || !ok {
			m.dropTrip(v.ID)
			return err
		}
		tr.remainingKm += next.DistanceFromPreviousKm
		tr.segmentKm = next.DistanceFromPreviousKm
	}
	m.setTrip(v.ID, tr)
	return nil
}

// resumeTrip rebuilds trip state for a vehicle that was already moving when
// the manager started, placing it at the start of its current segment.
func resumeTrip(v *domain.Vehicle, routes map[string]*domain.Route) *trip {
	r := routes[v.AssignedRouteID]
	if r == nil {
		return nil
	}
	for i, rs := range r.Stations {
		if rs.StationID == v.NextStationID && i > 0 {
			return &trip{routeID: r.ID, stopIndex: i, remainingKm: rs.DistanceFromPreviousKm, segmentKm: rs.DistanceFromPreviousKm}
		}
	}
	return nil
}

// serveStop docks v at stationID, lets passengers off and, unless this is
// the terminus, boards as many waiting passengers as fit. A station that is
// not operational is passed through.
func (m *Manager) serveStop(ctx context.Context, v *domain.Vehicle, route *domain.Route, stationID string, terminus bool, now time.Time, st *TickStats) error {
	unlock := m.locks.Lock(stationKey(stationID))
	defer unlock()

	s, err := m.store.GetStation(ctx, stationID)
	if errors.Is(err, ports.ErrNotFound) {
		log.Warn().Str("vehicle", v.ID).Str("station", stationID).Msg("route references unknown station")
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve stop: %w", err)
	}
	s.Policy = m.opts.StationPolicy
	if !s.IsOperational() {
		return nil
	}
	ok, err := v.Dock(stationID)
	if err != nil || !ok {
		return err
	}
	st.Dockings++

	off := v.CurrentPassengers
	if !terminus {
		off /= 2
	}
	st.Alighted += v.AlightPassengers(off)
	if !terminus {
		boarded := s.BoardVehicle(v.RemainingCapacity(), now)
		if boarded > 0 && v.BoardPassengers(boarded) {
			st.Boarded += boarded
			if err := m.validateRiders(ctx, route, boarded, st); err != nil {
				return err
			}
		}
	}
	if v.FuelCapacity > 0 && v.FuelPercent() < m.opts.RefuelBelowPercent {
		if added, _ := v.Refuel(nil); added > 0 {
			st.Refuels++
		}
	}
	return m.store.SaveStation(ctx, s)
}

// claimDeparture enforces the route headway across vehicles. The returned
// release gives the slot back when the dispatch does not go ahead.
func (m *Manager) claimDeparture(r *domain.Route, now time.Time) (release func(), ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, had := m.lastDeparture[r.ID]
	if had && r.FrequencyMinutes > 0 && now.Sub(last) < time.Duration(r.FrequencyMinutes)*time.Minute {
		return nil, false
	}
	m.lastDeparture[r.ID] = now
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.lastDeparture[r.ID].Equal(now) {
			return
		}
		if had {
			m.lastDeparture[r.ID] = last
		} else {
			delete(m.lastDeparture, r.ID)
		}
	}, true
}

// severityWeights are the minor/moderate/severe odds in percent per risk band.
var severityWeights = map[domain.RiskBand][3]int{
	domain.RiskLow:      {70, 25, 5},
	domain.RiskElevated: {50, 35, 15},
	domain.RiskHigh:     {30, 45, 25},
	domain.RiskCritical: {15, 45, 40},
}

// severity draws an accident severity; worn vehicles crash harder. Wear
// (100 - condition) is the fatigue fed to the risk bands.
func (m *Manager) severity(v *domain.Vehicle) domain.Severity {
	return severityFor(domain.AccidentRisk(100-v.Condition), m.rng.IntN(100))
}

func severityFor(band domain.RiskBand, n int) domain.Severity {
	w, ok := severityWeights[band]
	if !ok {
		w = severityWeights[domain.RiskLow]
	}
	switch {
	case n < w[0]:
		return domain.SeverityMinor
	case n < w[0]+w[1]:
		return domain.SeverityModerate
	default:
		return domain.SeveritySevere
	}
}

func (m *Manager) recordAccident(v *domain.Vehicle, report domain.AccidentReport) {
	m.mu.Lock()
	m.accidents[v.ID] = report.Severity
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.Accidents.WithLabelValues(string(report.Severity)).Inc()
	}
	log.Warn().
		Str("vehicle", v.ID).
		Str("severity", string(report.Severity)).
		Float64("condition_loss", report.ConditionLoss).
		Int("injuries", report.Injuries).
		Int("fatalities", report.Fatalities).
		Msg("accident")
}

func (m *Manager) report(ctx context.Context, results []vehicleResult, stats TickStats, now time.Time) {
	active, moving := 0, 0
	for _, r := range results {
		v := r.vehicle
		if v.IsOperational() {
			active++
		}
		if v.Status == domain.VehicleMoving {
			moving++
		}
		if m.pub == nil {
			continue
		}
		msg := publisher.VehicleMessage{
			VehicleID:      v.ID,
			RouteID:        v.AssignedRouteID,
			Kind:           v.Kind,
			Status:         v.Status,
			Timestamp:      now,
			StationID:      v.CurrentStationID,
			NextStationID:  v.NextStationID,
			SpeedKmh:       v.Speed,
			Passengers:     v.CurrentPassengers,
			LoadFactor:     v.PassengerLoadFactor(),
			FuelPercent:    v.FuelPercent(),
			Condition:      v.Condition,
			Progress:       r.progress,
			OdometerKm:     v.Odometer,
			MaintenanceDue:   v.MaintenanceDue,
			AccidentSeverity: r.accident,
		}
		if err := m.pub.PublishVehicle(msg); err != nil {
			log.Error().Err(err).Str("vehicle", v.ID).Msg("publish vehicle")
		}
	}

	stations, err := m.store.ListStations(ctx, ports.StationFilter{})
	if err != nil {
		log.Error().Err(err).Msg("list stations for publish")
	}
	for _, s := range stations {
		if m.metrics != nil {
			m.metrics.StationQueue.WithLabelValues(s.ID).Set(float64(s.CurrentQueueLength))
		}
		if m.pub == nil {
			continue
		}
		msg := publisher.StationMessage{
			StationID:   s.ID,
			Name:        s.Name,
			Status:      s.Status,
			Timestamp:   now,
			Queue:       s.CurrentQueueLength,
			QueueStatus: s.QueueStatus(),
			Occupancy:   s.OccupancyRate(),
			Condition:   s.Condition,
			ServedToday: s.ServedToday,
		}
		if err := m.pub.PublishStation(msg); err != nil {
			log.Error().Err(err).Str("station", s.ID).Msg("publish station")
		}
	}

	if m.metrics != nil {
		m.metrics.ActiveVehicles.Set(float64(active))
		m.metrics.MovingVehicles.Set(float64(moving))
		m.metrics.TripsStarted.Add(float64(stats.TripsStarted))
		m.metrics.TripsCompleted.Add(float64(stats.TripsCompleted))
		m.metrics.PassengersBoarded.Add(float64(stats.Boarded))
		m.metrics.Dockings.Add(float64(stats.Dockings))
		m.metrics.Refuels.Add(float64(stats.Refuels))
	}
}

func (m *Manager) rosterRoute(v *domain.Vehicle) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roster[v.ID]; ok {
		return r
	}
	if v.AssignedRouteID != "" {
		m.roster[v.ID] = v.AssignedRouteID
	}
	return v.AssignedRouteID
}

func (m *Manager) currentTrip(vehicleID string) *trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trips[vehicleID]
}

func (m *Manager) setTrip(vehicleID string, t *trip) {
	m.mu.Lock()
	m.trips[vehicleID] = t
	m.mu.Unlock()
}

// takeAccident returns and clears the accident awaiting publication.
func (m *Manager) takeAccident(vehicleID string) domain.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	sev := m.accidents[vehicleID]
	delete(m.accidents, vehicleID)
	return sev
}

func (m *Manager) dropTrip(vehicleID string) {
	m.mu.Lock()
	delete(m.trips, vehicleID)
	m.mu.Unlock()
}

func stationKey(id string) string { return "station:" + id }
func vehicleKey(id string) string { return "vehicle:" + id }

// lockedRand makes a *rand.Rand safe for the per-vehicle goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
