// Package fares runs ticket operations against the repositories: load the
// ticket, apply the domain rule, persist the result.
package fares

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"transit-sim/internal/domain"
	"transit-sim/internal/metrics"
	"transit-sim/internal/ports"
)

const (
	ResultAccepted   = "accepted"
	ResultRejected   = "rejected"
	ResultWrongRoute = "wrong_route"
)

type Service struct {
	tickets ports.TicketRepository
	clock   domain.Clock
	metrics *metrics.Collector

	// mu serialises read-modify-write on a ticket so concurrent validations
	// cannot both consume the last ride.
	mu sync.Mutex
}

func NewService(tickets ports.TicketRepository, clock domain.Clock, m *metrics.Collector) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{tickets: tickets, clock: clock, metrics: m}
}

// Purchase issues and stores a ticket. Deducting the balance is the caller's
// business.
func (s *Service) Purchase(ctx context.Context, req domain.PurchaseRequest, balance domain.Money) (*domain.Ticket, error) {
	t, err := domain.Purchase(req, balance, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.tickets.SaveTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("purchase ticket: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TicketsPurchased.WithLabelValues(string(t.Type)).Inc()
	}
	log.Debug().Str("ticket", t.ID).Str("agent", t.AgentID).Str("type", string(t.Type)).Stringer("price", t.Price).Msg("ticket purchased")
	return t, nil
}

// Validate consumes one ride on routeID. A ticket bound to another route is
// rejected without being touched. An empty routeID skips the route check.
func (s *Service) Validate(ctx context.Context, ticketID, routeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("validate ticket: %w", err)
	}
	if routeID != "" && !t.CoversRoute(routeID) {
		s.count(ResultWrongRoute)
		return false, nil
	}
	before := t.Status
	ok := t.Validate(s.clock.Now())
	if ok || t.Status != before {
		if err := s.tickets.SaveTicket(ctx, t); err != nil {
			return false, fmt.Errorf("validate ticket %s: %w", ticketID, err)
		}
	}
	if ok {
		s.count(ResultAccepted)
	} else {
		s.count(ResultRejected)
	}
	return ok, nil
}

func (s *Service) Cancel(ctx context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("cancel ticket: %w", err)
	}
	if !t.Cancel(s.clock.Now()) {
		return false, nil
	}
	if err := s.tickets.SaveTicket(ctx, t); err != nil {
		return false, fmt.Errorf("cancel ticket %s: %w", ticketID, err)
	}
	return true, nil
}

// Expire moves every active ticket whose window has closed to expired and
// returns how many changed.
func (s *Service) Expire(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.tickets.ListTickets(ctx, ports.TicketFilter{Status: domain.TicketActive})
	if err != nil {
		return 0, fmt.Errorf("expire tickets: %w", err)
	}
	now := s.clock.Now()
	n := 0
	for _, t := range active {
		t.CheckAndExpire(now)
		if t.Status != domain.TicketExpired {
			continue
		}
		if err := s.tickets.SaveTicket(ctx, t); err != nil {
			return n, fmt.Errorf("expire ticket %s: %w", t.ID, err)
		}
		n++
	}
	if s.metrics != nil {
		s.metrics.TicketsExpired.Add(float64(n))
	}
	if n > 0 {
		log.Info().Int("count", n).Time("at", now).Msg("tickets expired")
	}
	return n, nil
}

// ExpireEvery runs Expire on a ticker until ctx is done.
func (s *Service) ExpireEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Expire(ctx); err != nil {
				log.Error().Err(err).Msg("ticket expiry sweep")
			}
		}
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.TicketValidations.WithLabelValues(result).Inc()
	}
}
