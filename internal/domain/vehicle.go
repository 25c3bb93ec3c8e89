package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type VehicleKind string

const (
	VehicleTrain VehicleKind = "train"
	VehicleMetro VehicleKind = "metro"
	VehicleTram  VehicleKind = "tram"
	VehicleBus   VehicleKind = "bus"
	VehicleTaxi  VehicleKind = "taxi"
	VehicleTruck VehicleKind = "truck"
	VehicleFerry VehicleKind = "ferry"
)

func (k VehicleKind) Valid() bool {
	_, ok := kindDefaults[k]
	return ok
}

type FuelKind string

const (
	FuelDiesel   FuelKind = "diesel"
	FuelPetrol   FuelKind = "petrol"
	FuelElectric FuelKind = "electric"
	FuelHybrid   FuelKind = "hybrid"
	FuelHydrogen FuelKind = "hydrogen"
	FuelCoal     FuelKind = "coal"
)

func (f FuelKind) Valid() bool {
	switch f {
	case FuelDiesel, FuelPetrol, FuelElectric, FuelHybrid, FuelHydrogen, FuelCoal:
		return true
	}
	return false
}

type VehicleStatus string

const (
	VehicleIdle        VehicleStatus = "idle"
	VehicleMoving      VehicleStatus = "moving"
	VehicleDocked      VehicleStatus = "docked"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleBroken      VehicleStatus = "broken"
	VehicleRetired     VehicleStatus = "retired"
)

func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleIdle, VehicleMoving, VehicleDocked, VehicleMaintenance, VehicleBroken, VehicleRetired:
		return true
	}
	return false
}

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

type RiskBand string

const (
	RiskLow      RiskBand = "low"
	RiskElevated RiskBand = "elevated"
	RiskHigh     RiskBand = "high"
	RiskCritical RiskBand = "critical"
)

// AccidentRisk maps an operator fatigue level (0-100) to a risk band.
func AccidentRisk(fatigue float64) RiskBand {
	switch {
	case fatigue < 30:
		return RiskLow
	case fatigue < 60:
		return RiskElevated
	case fatigue < 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RandSource is the subset of *math/rand/v2.Rand used for accident outcomes.
type RandSource interface {
	IntN(n int) int
}

type AccidentReport struct {
	Severity      Severity `json:"severity"`
	ConditionLoss float64  `json:"condition_loss"`
	Injuries      int      `json:"injuries"`
	Fatalities    int      `json:"fatalities"`
}

type kindSpec struct {
	passengers  int
	cargo       float64
	fuel        float64
	consumption float64
	maxSpeed    float64
	wearPerKm   float64
}

var kindDefaults = map[VehicleKind]kindSpec{
	VehicleTrain: {passengers: 400, cargo: 0, fuel: 5000, consumption: 4, maxSpeed: 120, wearPerKm: 0.01},
	VehicleMetro: {passengers: 300, cargo: 0, fuel: 3000, consumption: 3, maxSpeed: 80, wearPerKm: 0.01},
	VehicleTram:  {passengers: 150, cargo: 0, fuel: 1500, consumption: 2, maxSpeed: 50, wearPerKm: 0.02},
	VehicleBus:   {passengers: 60, cargo: 0, fuel: 300, consumption: 0.35, maxSpeed: 60, wearPerKm: 0.03},
	VehicleTaxi:  {passengers: 4, cargo: 0.2, fuel: 60, consumption: 0.08, maxSpeed: 90, wearPerKm: 0.02},
	VehicleTruck: {passengers: 2, cargo: 20, fuel: 400, consumption: 0.3, maxSpeed: 80, wearPerKm: 0.04},
	VehicleFerry: {passengers: 250, cargo: 50, fuel: 8000, consumption: 10, maxSpeed: 35, wearPerKm: 0.05},
}

type Vehicle struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Kind   VehicleKind   `json:"kind"`
	Fuel   FuelKind      `json:"fuel"`
	Status VehicleStatus `json:"status"`

	PassengerCapacity int     `json:"passenger_capacity"`
	CurrentPassengers int     `json:"current_passengers"`
	CargoCapacity     float64 `json:"cargo_capacity"`
	CurrentCargo      float64 `json:"current_cargo"`

	FuelCapacity    float64 `json:"fuel_capacity"`
	CurrentFuel     float64 `json:"current_fuel"`
	ConsumptionRate float64 `json:"consumption_rate"` // fuel units per km
	Odometer        float64 `json:"odometer"`
	Speed           float64 `json:"speed"` // km/h
	MaxSpeed        float64 `json:"max_speed"`
	IsMoving        bool    `json:"is_moving"`

	Condition      float64 `json:"condition"`
	WearRate       float64 `json:"wear_rate"` // condition points per km
	MaintenanceDue bool    `json:"maintenance_due"`

	CurrentStationID string `json:"current_station_id,omitempty"`
	IsDocked         bool   `json:"is_docked"`
	AssignedRouteID  string `json:"assigned_route_id,omitempty"`
	NextStationID    string `json:"next_station_id,omitempty"`

	IsActive             bool       `json:"is_active"`
	RepairCount          int        `json:"repair_count"`
	AccidentCount        int        `json:"accident_count"`
	Injuries             int        `json:"injuries"`
	Fatalities           int        `json:"fatalities"`
	TotalMaintenanceCost Money      `json:"total_maintenance_cost"`
	TotalFuelCost        Money      `json:"total_fuel_cost"`
	LastMaintenanceAt    *time.Time `json:"last_maintenance_at,omitempty"`
	RetiredAt            *time.Time `json:"retired_at,omitempty"`

	Policy *VehiclePolicy `json:"-"`
}

// NewVehicle creates an idle, fully fuelled vehicle using the capacity and
// wear defaults of its kind.
func NewVehicle(id, name string, kind VehicleKind, fuel FuelKind, policy *VehiclePolicy) (*Vehicle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("new vehicle: %w", ErrInvalidID)
	}
	spec, ok := kindDefaults[kind]
	if !ok {
		return nil, fmt.Errorf("new vehicle %s: unknown kind %q", id, kind)
	}
	if !fuel.Valid() {
		return nil, fmt.Errorf("new vehicle %s: unknown fuel %q", id, fuel)
	}
	return &Vehicle{
		ID:                id,
		Name:              name,
		Kind:              kind,
		Fuel:              fuel,
		Status:            VehicleIdle,
		PassengerCapacity: spec.passengers,
		CargoCapacity:     spec.cargo,
		FuelCapacity:      spec.fuel,
		CurrentFuel:       spec.fuel,
		ConsumptionRate:   spec.consumption,
		MaxSpeed:          spec.maxSpeed,
		Condition:         100,
		WearRate:          spec.wearPerKm,
		IsActive:          true,
		Policy:            policy,
	}, nil
}

var defaultVehiclePolicy = DefaultVehiclePolicy()

func (v *Vehicle) policy() *VehiclePolicy {
	if v.Policy == nil {
		return &defaultVehiclePolicy
	}
	return v.Policy
}

// StartTrip sends the vehicle towards nextStationID on routeID. A docked
// vehicle is undocked first.
func (v *Vehicle) StartTrip(routeID, nextStationID string) (bool, error) {
	if strings.TrimSpace(routeID) == "" {
		return false, fmt.Errorf("start trip %s: route: %w", v.ID, ErrInvalidID)
	}
	switch v.Status {
	case VehicleBroken, VehicleRetired, VehicleMaintenance:
		return false, nil
	case VehicleIdle, VehicleDocked, VehicleMoving:
	}
	if v.IsDocked {
		v.Undock()
	}
	v.AssignedRouteID = routeID
	v.NextStationID = nextStationID
	v.Status = VehicleMoving
	v.Speed = v.MaxSpeed
	v.IsMoving = v.Speed > 0
	return true, nil
}

// SetSpeed changes speed while on a trip, clamped to [0, MaxSpeed].
func (v *Vehicle) SetSpeed(kmh float64) bool {
	if v.Status != VehicleMoving {
		return false
	}
	v.Speed = max(0, min(v.MaxSpeed, kmh))
	v.IsMoving = v.Speed > 0
	return true
}

// Move advances the vehicle for dt at its current speed and returns the
// distance covered. Travel is cut short when the fuel runs out, leaving the
// vehicle stalled (speed 0) on its trip.
func (v *Vehicle) Move(dt time.Duration) float64 {
	if v.Status != VehicleMoving || !v.IsMoving || dt <= 0 {
		return 0
	}
	dist := v.Speed * dt.Hours()
	stalled := false
	if v.ConsumptionRate > 0 {
		reach := v.CurrentFuel / v.ConsumptionRate
		if dist >= reach {
			dist = reach
			stalled = true
		}
		v.CurrentFuel = math.Max(0, v.CurrentFuel-dist*v.ConsumptionRate)
	}
	if stalled {
		v.CurrentFuel = 0
		v.Speed = 0
		v.IsMoving = false
	}
	v.Odometer += dist
	v.setCondition(v.Condition - dist*v.WearRate)
	if v.Condition < v.policy().MaintenanceDueCondition {
		v.MaintenanceDue = true
	}
	return dist
}

// CompleteTrip ends the current trip. The vehicle goes to maintenance when
// wear flagged it during the trip.
func (v *Vehicle) CompleteTrip() bool {
	switch v.Status {
	case VehicleMoving:
	case VehicleDocked:
		if v.AssignedRouteID == "" {
			return false
		}
	default:
		return false
	}
	v.AssignedRouteID = ""
	v.NextStationID = ""
	v.CurrentPassengers = 0
	v.Speed = 0
	v.IsMoving = false
	switch {
	case v.MaintenanceDue:
		v.Status = VehicleMaintenance
	case v.IsDocked:
		v.Status = VehicleDocked
	default:
		v.Status = VehicleIdle
	}
	return true
}

func (v *Vehicle) BoardPassengers(n int) bool {
	if n <= 0 || v.CurrentPassengers+n > v.PassengerCapacity {
		return false
	}
	v.CurrentPassengers += n
	return true
}

// AlightPassengers removes up to n passengers and returns how many got off.
func (v *Vehicle) AlightPassengers(n int) int {
	if n <= 0 {
		return 0
	}
	out := min(n, v.CurrentPassengers)
	v.CurrentPassengers -= out
	return out
}

func (v *Vehicle) LoadCargo(tonnes float64) bool {
	if tonnes <= 0 || v.CurrentCargo+tonnes > v.CargoCapacity {
		return false
	}
	v.CurrentCargo += tonnes
	return true
}

func (v *Vehicle) UnloadCargo(tonnes float64) float64 {
	if tonnes <= 0 {
		return 0
	}
	out := math.Min(tonnes, v.CurrentCargo)
	v.CurrentCargo -= out
	return out
}

func (v *Vehicle) RemainingCapacity() int {
	return max(0, v.PassengerCapacity-v.CurrentPassengers)
}

func (v *Vehicle) PassengerLoadFactor() float64 {
	if v.PassengerCapacity <= 0 {
		return 0
	}
	return float64(v.CurrentPassengers) / float64(v.PassengerCapacity)
}

func (v *Vehicle) FuelPercent() float64 {
	if v.FuelCapacity <= 0 {
		return 0
	}
	return 100 * v.CurrentFuel / v.FuelCapacity
}

// Dock binds the vehicle to a station and brings it to a stop. Docking at
// the station it is already docked at is a no-op success.
func (v *Vehicle) Dock(stationID string) (bool, error) {
	if strings.TrimSpace(stationID) == "" {
		return false, fmt.Errorf("dock %s: %w", v.ID, ErrInvalidID)
	}
	if v.Status == VehicleRetired {
		return false, nil
	}
	if v.IsDocked {
		return v.CurrentStationID == stationID, nil
	}
	v.CurrentStationID = stationID
	v.IsDocked = true
	v.Speed = 0
	v.IsMoving = false
	if v.Status == VehicleIdle || v.Status == VehicleMoving {
		v.Status = VehicleDocked
	}
	return true, nil
}

func (v *Vehicle) Undock() bool {
	if !v.IsDocked {
		return false
	}
	v.CurrentStationID = ""
	v.IsDocked = false
	v.Speed = 0
	v.IsMoving = false
	if v.Status == VehicleDocked {
		v.Status = VehicleIdle
	}
	return true
}

// Refuel adds fuel up to capacity; a nil amount fills the tank. It returns the
// amount added and what it cost.
func (v *Vehicle) Refuel(amount *float64) (float64, Money) {
	if v.Status == VehicleRetired || v.IsMoving {
		return 0, 0
	}
	room := math.Max(0, v.FuelCapacity-v.CurrentFuel)
	add := room
	if amount != nil {
		if *amount <= 0 {
			return 0, 0
		}
		add = math.Min(*amount, room)
	}
	if add == 0 {
		return 0, 0
	}
	v.CurrentFuel += add
	cost := MoneyFromFloat(add * v.policy().FuelPrices[v.Fuel].Float64())
	v.TotalFuelCost += cost
	return add, cost
}

// ScheduleMaintenance takes a stationary vehicle out of service.
func (v *Vehicle) ScheduleMaintenance() bool {
	switch v.Status {
	case VehicleMoving, VehicleRetired, VehicleMaintenance:
		return false
	case VehicleIdle, VehicleDocked, VehicleBroken:
	}
	v.Status = VehicleMaintenance
	return true
}

// PerformMaintenance restores full condition and returns the cost of the
// repair. Moving and retired vehicles cannot be serviced.
func (v *Vehicle) PerformMaintenance(now time.Time) Money {
	if v.Status == VehicleRetired || v.Status == VehicleMoving {
		return 0
	}
	p := v.policy()
	missing := Money(math.Round(100 - v.Condition))
	cost := p.BaseMaintenanceCost + missing*p.CostPerConditionPoint

	v.Condition = 100
	v.MaintenanceDue = false
	v.RepairCount++
	v.TotalMaintenanceCost += cost
	t := now
	v.LastMaintenanceAt = &t
	if v.IsDocked {
		v.Status = VehicleDocked
	} else {
		v.Status = VehicleIdle
	}
	return cost
}

// TriggerAccident damages the vehicle and breaks it down. Casualties are only
// drawn for severe accidents with passengers aboard.
func (v *Vehicle) TriggerAccident(severity Severity, rng RandSource) (AccidentReport, bool) {
	loss, ok := v.policy().AccidentConditionLoss[severity]
	if !ok || v.Status == VehicleRetired {
		return AccidentReport{}, false
	}
	report := AccidentReport{Severity: severity, ConditionLoss: math.Min(loss, v.Condition)}
	v.setCondition(v.Condition - loss)
	v.Status = VehicleBroken
	v.Speed = 0
	v.IsMoving = false
	v.AccidentCount++

	if severity == SeveritySevere && v.CurrentPassengers > 0 {
		report.Injuries, report.Fatalities = casualties(v.CurrentPassengers, rng)
		v.Injuries += report.Injuries
		v.Fatalities += report.Fatalities
	}
	return report, true
}

func casualties(passengers int, rng RandSource) (injuries, fatalities int) {
	if rng == nil {
		return (passengers + 1) / 2, 0
	}
	injuries = 1 + rng.IntN(passengers)
	fatalities = rng.IntN(injuries/4 + 1)
	return injuries, fatalities
}

func (v *Vehicle) IsOperational() bool {
	switch v.Status {
	case VehicleBroken, VehicleRetired, VehicleMaintenance:
		return false
	case VehicleIdle, VehicleMoving, VehicleDocked:
	}
	p := v.policy()
	if v.Condition < p.MinOperationalCondition {
		return false
	}
	if v.FuelCapacity > 0 && v.CurrentFuel < p.MinOperationalFuel {
		return false
	}
	return true
}

// Retire permanently withdraws the vehicle from service.
func (v *Vehicle) Retire(now time.Time) bool {
	if v.Status == VehicleRetired {
		return false
	}
	v.Status = VehicleRetired
	v.IsActive = false
	v.Speed = 0
	v.IsMoving = false
	t := now
	v.RetiredAt = &t
	return true
}

func (v *Vehicle) setCondition(c float64) {
	v.Condition = math.Max(0, math.Min(100, c))
}

func (v *Vehicle) Clone() *Vehicle {
	c := *v
	c.LastMaintenanceAt = clonePtr(v.LastMaintenanceAt)
	c.RetiredAt = clonePtr(v.RetiredAt)
	return &c
}
