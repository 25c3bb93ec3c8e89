package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TicketType string

const (
	TicketSingle    TicketType = "single"
	TicketReturn    TicketType = "return"
	TicketDayPass   TicketType = "day_pass"
	TicketWeekPass  TicketType = "week_pass"
	TicketMonthPass TicketType = "month_pass"
	TicketTransfer  TicketType = "transfer"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketUsed      TicketStatus = "used"
	TicketExpired   TicketStatus = "expired"
	TicketCancelled TicketStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketUsed, TicketExpired, TicketCancelled:
		return true
	case TicketActive:
	}
	return false
}

type ticketRule struct {
	maxValidations int
	validUntil     func(from time.Time) time.Time
}

var ticketRules = map[TicketType]ticketRule{
	TicketSingle: {1, func(t time.Time) time.Time { return t.Add(2 * time.Hour) }},
	TicketReturn: {2, func(t time.Time) time.Time { return t.Add(24 * time.Hour) }},
	TicketDayPass: {999, func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	}},
	TicketWeekPass:  {999, func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }},
	TicketMonthPass: {999, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
	TicketTransfer:  {1, func(t time.Time) time.Time { return t.Add(30 * time.Minute) }},
}

func (t TicketType) Valid() bool {
	_, ok := ticketRules[t]
	return ok
}

// MaxValidations is the number of rides a ticket of this type allows.
func (t TicketType) MaxValidations() int {
	return ticketRules[t].maxValidations
}

type Ticket struct {
	ID            string     `json:"id"`
	AgentID       string     `json:"agent_id"`
	Type          TicketType `json:"type"`
	RouteID       string     `json:"route_id,omitempty"`
	OriginID      string     `json:"origin_id,omitempty"`
	DestinationID string     `json:"destination_id,omitempty"`
	Price         Money      `json:"price"`

	Status          TicketStatus `json:"status"`
	ValidationCount int          `json:"validation_count"`
	MaxValidations  int          `json:"max_validations"`

	PurchasedAt     time.Time  `json:"purchased_at"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"` // nil never expires
	UsedAt          *time.Time `json:"used_at,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

type PurchaseRequest struct {
	ID            string
	AgentID       string
	Type          TicketType
	RouteID       string
	OriginID      string
	DestinationID string
	Price         Money
}

// Purchase issues an active ticket for the request. The caller's balance is
// only checked here; deducting it is up to the caller.
func Purchase(req PurchaseRequest, balance Money, now time.Time) (*Ticket, error) {
	if strings.TrimSpace(req.AgentID) == "" {
		return nil, fmt.Errorf("purchase ticket: agent: %w", ErrInvalidID)
	}
	rule, ok := ticketRules[req.Type]
	if !ok {
		return nil, fmt.Errorf("purchase ticket: type %q: %w", req.Type, ErrInvalidTicket)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("purchase ticket: price %s: %w", req.Price, ErrInvalidTicket)
	}
	if balance < req.Price {
		return nil, fmt.Errorf("purchase ticket: balance %s below price %s: %w", balance, req.Price, ErrInsufficientFunds)
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	until := rule.validUntil(now)
	return &Ticket{
		ID:             id,
		AgentID:        req.AgentID,
		Type:           req.Type,
		RouteID:        req.RouteID,
		OriginID:       req.OriginID,
		DestinationID:  req.DestinationID,
		Price:          req.Price,
		Status:         TicketActive,
		MaxValidations: rule.maxValidations,
		PurchasedAt:    now,
		ValidFrom:      now,
		ValidUntil:     &until,
	}, nil
}

// CheckAndExpire reports whether the ticket can be used at now. It is not a
// pure read: an active ticket whose window has lapsed is moved to expired.
func (t *Ticket) CheckAndExpire(now time.Time) bool {
	switch t.Status {
	case TicketUsed, TicketExpired, TicketCancelled:
		return false
	case TicketActive:
	}
	if t.ValidUntil != nil && !now.Before(*t.ValidUntil) {
		t.Status = TicketExpired
		return false
	}
	return !now.Before(t.ValidFrom)
}

// Validate consumes one ride. Exhausting the allowed rides marks the ticket
// used.
func (t *Ticket) Validate(now time.Time) bool {
	if !t.CheckAndExpire(now) {
		return false
	}
	t.ValidationCount++
	at := now
	if t.UsedAt == nil {
		t.UsedAt = &at
	}
	t.LastValidatedAt = &at
	if t.ValidationCount >= t.MaxValidations {
		t.Status = TicketUsed
	}
	return true
}

func (t *Ticket) Cancel(now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	t.Status = TicketCancelled
	at := now
	t.CancelledAt = &at
	return true
}

func (t *Ticket) RemainingValidations() int {
	if t.Status.Terminal() {
		return 0
	}
	return max(0, t.MaxValidations-t.ValidationCount)
}

// CoversRoute reports whether the ticket may be used on routeID. Tickets
// bought without a route are valid network-wide.
func (t *Ticket) CoversRoute(routeID string) bool {
	return t.RouteID == "" || t.RouteID == routeID
}

func (t *Ticket) Clone() *Ticket {
	c := *t
	c.ValidUntil = clonePtr(t.ValidUntil)
	c.UsedAt = clonePtr(t.UsedAt)
	c.LastValidatedAt = clonePtr(t.LastValidatedAt)
	c.CancelledAt = clonePtr(t.CancelledAt)
	return &c
}
