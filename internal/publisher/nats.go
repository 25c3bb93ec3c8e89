package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"transit-sim/internal/domain"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc          *nats.Conn
	conn        Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("transit-sim"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := NewWithConn(nc, prefix, logSubjects, m)
	p.nc = nc
	return p, nil
}

// NewWithConn builds a publisher over an existing connection.
func NewWithConn(c Conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "transit"
	}
	return &NATSPublisher{conn: c, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("nats drain")
		}
		p.nc.Close()
	}
}

type VehicleMessage struct {
	VehicleID        string               `json:"vehicleId"`
	RouteID          string               `json:"routeId,omitempty"`
	Kind             domain.VehicleKind   `json:"kind"`
	Status           domain.VehicleStatus `json:"status"`
	Timestamp        time.Time            `json:"timestamp"`
	StationID        string               `json:"stationId,omitempty"`
	NextStationID    string               `json:"nextStationId,omitempty"`
	SpeedKmh         float64              `json:"speedKmh"`
	Passengers       int                  `json:"passengers"`
	LoadFactor       float64              `json:"loadFactor"`
	FuelPercent      float64              `json:"fuelPercent"`
	Condition        float64              `json:"condition"`
	Progress         float64              `json:"progress"` // fraction of the current segment
	OdometerKm       float64              `json:"odometerKm"`
	MaintenanceDue   bool                 `json:"maintenanceDue,omitempty"`
	AccidentSeverity domain.Severity      `json:"accidentSeverity,omitempty"`
}

type StationMessage struct {
	StationID   string               `json:"stationId"`
	Name        string               `json:"name"`
	Status      domain.StationStatus `json:"status"`
	Timestamp   time.Time            `json:"timestamp"`
	Queue       int                  `json:"queue"`
	QueueStatus domain.QueueStatus   `json:"queueStatus"`
	Occupancy   float64              `json:"occupancy"`
	Condition   int                  `json:"condition"`
	ServedToday int                  `json:"servedToday"`
}

// VehicleSubject is <prefix>.vehicles.<route>.<vehicle>; vehicles without a
// route publish under the "_" route token.
func (p *NATSPublisher) VehicleSubject(routeID, vehicleID string) string {
	return strings.Join([]string{p.prefix, "vehicles", subjectToken(routeID), subjectToken(vehicleID)}, ".")
}

func (p *NATSPublisher) StationSubject(stationID string) string {
	return strings.Join([]string{p.prefix, "stations", subjectToken(stationID)}, ".")
}

func (p *NATSPublisher) PublishVehicle(msg VehicleMessage) error {
	return p.publish(p.VehicleSubject(msg.RouteID, msg.VehicleID), msg)
}

func (p *NATSPublisher) PublishStation(msg StationMessage) error {
	return p.publish(p.StationSubject(msg.StationID), msg)
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Debug().Str("subject", subject).Msg("nats publish")
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
