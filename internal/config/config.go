package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"transit-sim/internal/domain"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Store             string
	DatabaseURL       string
	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	LogLevel          string
	LogJSON           bool
	TickInterval      time.Duration
	SpeedMultiplier   float64
	MetricsAddr       string
	Location          *time.Location
	SeedPath          string
	SimSeed           uint64
	Riders            int // size of the ticket-holding rider population
	TicketSweep       time.Duration

	StationPolicy        domain.StationPolicy
	VehiclePolicy        domain.VehiclePolicy
	StationWearPerTick   int
	VehicleWearRate      float64 // 0 keeps the per-kind default
	PassengerArrivalRate float64 // mean arrivals per station per simulated minute
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		StationPolicy: domain.DefaultStationPolicy(),
		VehiclePolicy: domain.DefaultVehiclePolicy(),
	}

	cfg.Store = strings.ToLower(getenvDefault("STORE", StoreMemory))
	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("invalid STORE: %q (want memory or postgres)", cfg.Store)
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		switch {
		case db == "" && cfg.Store == StorePostgres:
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set when STORE=postgres")
		case db == "":
		case pass != "":
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		default:
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "transit")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q", cfg.LogLevel)
	}
	cfg.LogJSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "JSON")

	var err error
	if cfg.TickInterval, err = durationMS("TICK_INTERVAL_MS", time.Second); err != nil {
		return nil, err
	}
	if cfg.TicketSweep, err = durationSec("TICKET_SWEEP_INTERVAL_SEC", time.Minute); err != nil {
		return nil, err
	}

	if cfg.SpeedMultiplier, err = positiveFloat("SPEED_MULTIPLIER", 1.0); err != nil {
		return nil, err
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	cfg.SeedPath = os.Getenv("SEED_PATH")
	if v := os.Getenv("SIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SIM_SEED: %q", v)
		}
		cfg.SimSeed = n
	}
	cfg.Riders = 500
	if v, ok, err := positiveInt("SIM_RIDERS"); err != nil {
		return nil, err
	} else if ok {
		cfg.Riders = v
	}

	if err := cfg.loadPolicyOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) loadPolicyOverrides() error {
	if v, ok, err := positiveInt("STATION_MAX_QUEUE"); err != nil {
		return err
	} else if ok {
		cfg.StationPolicy.MaxQueueLength = v
	}
	if v, ok, err := positiveInt("STATION_MAINTENANCE_INTERVAL_DAYS"); err != nil {
		return err
	} else if ok {
		cfg.StationPolicy.MaintenanceIntervalDays = v
	}

	if v := os.Getenv("STATION_WEAR_PER_TICK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid STATION_WEAR_PER_TICK: %q", v)
		}
		cfg.StationWearPerTick = n
	}
	if v := os.Getenv("VEHICLE_WEAR_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid VEHICLE_WEAR_RATE: %q", v)
		}
		cfg.VehicleWearRate = f
	}
	cfg.PassengerArrivalRate = 2
	if v := os.Getenv("PASSENGER_ARRIVAL_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid PASSENGER_ARRIVAL_RATE: %q", v)
		}
		cfg.PassengerArrivalRate = f
	}
	return nil
}

func durationMS(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func durationSec(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func positiveInt(key string) (int, bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, true, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
