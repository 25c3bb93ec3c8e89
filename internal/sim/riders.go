package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"transit-sim/internal/domain"
	"transit-sim/internal/ports"
)

// riderTicketTypes is indexed by rider number; each rider always buys the
// same kind of ticket.
var riderTicketTypes = []domain.TicketType{
	domain.TicketSingle,
	domain.TicketReturn,
	domain.TicketDayPass,
	domain.TicketTransfer,
	domain.TicketWeekPass,
	domain.TicketMonthPass,
}

// fareMultiplier prices a ticket in units of the route's base fare.
var fareMultiplier = map[domain.TicketType]domain.Money{
	domain.TicketSingle:    1,
	domain.TicketReturn:    2,
	domain.TicketTransfer:  1,
	domain.TicketDayPass:   4,
	domain.TicketWeekPass:  20,
	domain.TicketMonthPass: 60,
}

func routeBound(t domain.TicketType) bool {
	return t == domain.TicketSingle || t == domain.TicketReturn || t == domain.TicketTransfer
}

// validateRiders checks a ticket for each of n riders boarding on route.
func (m *Manager) validateRiders(ctx context.Context, route *domain.Route, n int, st *TickStats) error {
	if m.opts.Fares == nil {
		return nil
	}
	for range n {
		if err := m.ride(ctx, m.rng.IntN(m.opts.Riders), route, st); err != nil {
			return err
		}
	}
	return nil
}

// ride validates the rider's current ticket, buying a new one when it is
// missing or used up.
func (m *Manager) ride(ctx context.Context, rider int, route *domain.Route, st *TickStats) error {
	agent := fmt.Sprintf("rider-%d", rider)
	if id := m.pass(agent); id != "" {
		ok, err := m.opts.Fares.Validate(ctx, id, route.ID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		if ok {
			st.TicketsAccepted++
			return nil
		}
		st.TicketsRejected++
	}

	typ := riderTicketTypes[rider%len(riderTicketTypes)]
	req := domain.PurchaseRequest{
		AgentID: agent,
		Type:    typ,
		Price:   route.BaseFare * fareMultiplier[typ],
	}
	if routeBound(typ) {
		req.RouteID = route.ID
	}
	t, err := m.opts.Fares.Purchase(ctx, req, req.Price)
	if err != nil {
		return err
	}
	st.TicketsSold++
	m.setPass(agent, t.ID)

	ok, err := m.opts.Fares.Validate(ctx, t.ID, route.ID)
	if err != nil {
		return err
	}
	if ok {
		st.TicketsAccepted++
	} else {
		st.TicketsRejected++
		log.Warn().Str("ticket", t.ID).Str("route", route.ID).Msg("fresh ticket rejected")
	}
	return nil
}

func (m *Manager) pass(agent string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passes[agent]
}

func (m *Manager) setPass(agent, ticketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes[agent] = ticketID
}
