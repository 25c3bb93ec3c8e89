package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveVehicles prometheus.Gauge
	MovingVehicles prometheus.Gauge
	StationQueue   *prometheus.GaugeVec // station label

	TripsStarted      prometheus.Counter
	TripsCompleted    prometheus.Counter
	PassengersBoarded prometheus.Counter
	Dockings          prometheus.Counter
	Refuels           prometheus.Counter
	Maintenance       *prometheus.CounterVec // entity label: station|vehicle
	Accidents         *prometheus.CounterVec // severity label

	TicketsPurchased  *prometheus.CounterVec // type label
	TicketValidations *prometheus.CounterVec // result label: accepted|rejected|wrong_route
	TicketsExpired    prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
	TickInterval    prometheus.Gauge // seconds
}

func NewCollector(speedMultiplier float64, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_active_vehicles",
			Help: "Vehicles currently fit for service.",
		}),
		MovingVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_moving_vehicles",
			Help: "Vehicles currently on a trip.",
		}),
		StationQueue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transit_station_queue_length",
			Help: "Passengers waiting per station.",
		}, []string{"station"}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_trips_started_total",
			Help: "Total trips started.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_trips_completed_total",
			Help: "Total trips completed.",
		}),
		PassengersBoarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_passengers_boarded_total",
			Help: "Total passengers moved from station queues onto vehicles.",
		}),
		Dockings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_dockings_total",
			Help: "Total vehicle arrivals docked at a station.",
		}),
		Refuels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_refuels_total",
			Help: "Total refuelling stops.",
		}),
		Maintenance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_maintenance_total",
			Help: "Maintenance operations performed.",
		}, []string{"entity"}),
		Accidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_accidents_total",
			Help: "Vehicle accidents by severity.",
		}, []string{"severity"}),
		TicketsPurchased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_tickets_purchased_total",
			Help: "Tickets issued by type.",
		}, []string{"type"}),
		TicketValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_ticket_validations_total",
			Help: "Ticket validation attempts by result.",
		}, []string{"result"}),
		TicketsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_tickets_expired_total",
			Help: "Tickets moved to expired by the sweep.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transit_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_speed_multiplier",
			Help: "Simulated seconds per wall-clock second.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_tick_interval_seconds",
			Help: "Wall-clock tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveVehicles, c.MovingVehicles, c.StationQueue,
		c.TripsStarted, c.TripsCompleted, c.PassengersBoarded,
		c.Dockings, c.Refuels, c.Maintenance, c.Accidents,
		c.TicketsPurchased, c.TicketValidations, c.TicketsExpired,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.SpeedMultiplier, c.TickInterval,
	)

	c.SpeedMultiplier.Set(speedMultiplier)
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
