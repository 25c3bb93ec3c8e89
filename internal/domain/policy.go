package domain

// StationPolicy holds the numeric rules applied to stations. Scores are
// computed from the weight tables; every default table sums to 100.
type StationPolicy struct {
	MaxQueueLength          int
	MaintenanceIntervalDays int
	MaintenanceRecovery     int
	CriticalCondition       int // below this a station drops into maintenance
	MaintenanceCondition    int // below this maintenance is needed
	AccessibilityWeights    map[Feature]int
	ComfortWeights          map[Feature]int
}

func DefaultStationPolicy() StationPolicy {
	return StationPolicy{
		MaxQueueLength:          100,
		MaintenanceIntervalDays: 30,
		MaintenanceRecovery:     30,
		CriticalCondition:       20,
		MaintenanceCondition:    50,
		AccessibilityWeights: map[Feature]int{
			FeatureElevator:           15,
			FeatureEscalator:          10,
			FeatureRamp:               15,
			FeatureTactilePaving:      15,
			FeatureAudioAnnouncements: 10,
			FeatureVisualDisplays:     10,
			FeatureWheelchairAccess:   15,
			FeatureAccessibleToilets:  10,
		},
		ComfortWeights: map[Feature]int{
			FeatureShelter:  20,
			FeatureSeating:  15,
			FeatureWifi:     15,
			FeatureHeating:  10,
			FeatureLighting: 10,
			FeatureToilets:  10,
			FeatureVending:  10,
			FeatureCCTV:     10,
		},
	}
}

// VehiclePolicy holds the thresholds and prices applied to vehicles.
type VehiclePolicy struct {
	MinOperationalCondition float64
	MinOperationalFuel      float64
	MaintenanceDueCondition float64
	BaseMaintenanceCost     Money
	CostPerConditionPoint   Money
	FuelPrices              map[FuelKind]Money // per unit of fuel or energy
	AccidentConditionLoss   map[Severity]float64
}

func DefaultVehiclePolicy() VehiclePolicy {
	return VehiclePolicy{
		MinOperationalCondition: 25,
		MinOperationalFuel:      10,
		MaintenanceDueCondition: 50,
		BaseMaintenanceCost:     NewMoney(500, 0),
		CostPerConditionPoint:   NewMoney(20, 0),
		FuelPrices: map[FuelKind]Money{
			FuelDiesel:   NewMoney(1, 60),
			FuelPetrol:   NewMoney(1, 75),
			FuelElectric: NewMoney(0, 25),
			FuelHybrid:   NewMoney(1, 20),
			FuelHydrogen: NewMoney(9, 50),
			FuelCoal:     NewMoney(0, 40),
		},
		AccidentConditionLoss: map[Severity]float64{
			SeverityMinor:    10,
			SeverityModerate: 30,
			SeveritySevere:   60,
		},
	}
}
