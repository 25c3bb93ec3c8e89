package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchase(t *testing.T, typ TicketType, now time.Time) *Ticket {
	t.Helper()
	tk, err := Purchase(PurchaseRequest{AgentID: "agent-1", Type: typ, Price: NewMoney(2, 50)}, NewMoney(100, 0), now)
	require.NoError(t, err)
	return tk
}

func TestPurchaseDerivesRules(t *testing.T) {
	tests := []struct {
		typ   TicketType
		max   int
		until time.Time
	}{
		{TicketSingle, 1, t0.Add(2 * time.Hour)},
		{TicketReturn, 2, t0.Add(24 * time.Hour)},
		{TicketDayPass, 999, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{TicketWeekPass, 999, t0.AddDate(0, 0, 7)},
		{TicketMonthPass, 999, t0.AddDate(0, 1, 0)},
		{TicketTransfer, 1, t0.Add(30 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			tk := purchase(t, tt.typ, t0)
			assert.Equal(t, TicketActive, tk.Status)
			assert.Zero(t, tk.ValidationCount)
			assert.Equal(t, tt.max, tk.MaxValidations)
			assert.Equal(t, tt.max, tt.typ.MaxValidations())
			require.NotNil(t, tk.ValidUntil)
			assert.True(t, tk.ValidUntil.Equal(tt.until), "valid until %s, want %s", tk.ValidUntil, tt.until)
			assert.NotEmpty(t, tk.ID)
		})
	}
}

func TestPurchaseErrors(t *testing.T) {
	_, err := Purchase(PurchaseRequest{AgentID: "a", Type: TicketSingle, Price: NewMoney(5, 0)}, NewMoney(4, 99), t0)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = Purchase(PurchaseRequest{AgentID: "", Type: TicketSingle}, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = Purchase(PurchaseRequest{AgentID: "a", Type: TicketType("lifetime")}, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = Purchase(PurchaseRequest{AgentID: "a", Type: TicketSingle, Price: -1}, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	tk, err := Purchase(PurchaseRequest{ID: "tk-1", AgentID: "a", Type: TicketSingle, Price: NewMoney(5, 0)}, NewMoney(5, 0), t0)
	require.NoError(t, err)
	assert.Equal(t, "tk-1", tk.ID)
}

func TestDayPassValidatesRepeatedly(t *testing.T) {
	tk := purchase(t, TicketDayPass, t0)

	for i := 0; i < 10; i++ {
		assert.True(t, tk.Validate(t0.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, 10, tk.ValidationCount)
	assert.Equal(t, TicketActive, tk.Status)
	require.NotNil(t, tk.UsedAt)
	assert.True(t, tk.UsedAt.Equal(t0), "used_at is set on first validation only")
	assert.True(t, tk.LastValidatedAt.Equal(t0.Add(9*time.Minute)))
	assert.Equal(t, 989, tk.RemainingValidations())
}

func TestSingleTicketIsUsedAfterOneValidation(t *testing.T) {
	tk := purchase(t, TicketSingle, t0)

	assert.True(t, tk.Validate(t0))
	assert.Equal(t, TicketUsed, tk.Status)

	assert.False(t, tk.Validate(t0))
	assert.Equal(t, 1, tk.ValidationCount)
	assert.Zero(t, tk.RemainingValidations())
}

func TestReturnTicketValidationBeyondMax(t *testing.T) {
	tk := purchase(t, TicketReturn, t0)

	assert.True(t, tk.Validate(t0))
	assert.Equal(t, TicketActive, tk.Status)
	assert.True(t, tk.Validate(t0.Add(time.Hour)))
	assert.Equal(t, TicketUsed, tk.Status)

	for i := 0; i < 3; i++ {
		assert.False(t, tk.Validate(t0.Add(2*time.Hour)))
		assert.Equal(t, 2, tk.ValidationCount)
	}
}

func TestCheckAndExpireMutatesStatus(t *testing.T) {
	tk := purchase(t, TicketTransfer, t0)

	assert.True(t, tk.CheckAndExpire(t0.Add(29*time.Minute)))
	assert.Equal(t, TicketActive, tk.Status)

	assert.False(t, tk.CheckAndExpire(t0.Add(30*time.Minute)))
	assert.Equal(t, TicketExpired, tk.Status)

	assert.False(t, tk.Validate(t0))
	assert.Zero(t, tk.ValidationCount)
}

func TestCheckAndExpireNeverExpires(t *testing.T) {
	tk := purchase(t, TicketMonthPass, t0)
	tk.ValidUntil = nil

	assert.True(t, tk.CheckAndExpire(t0.AddDate(5, 0, 0)))
	assert.False(t, tk.CheckAndExpire(t0.Add(-time.Minute)), "not yet valid")
	assert.Equal(t, TicketActive, tk.Status)
}

func TestTicketCancel(t *testing.T) {
	tk := purchase(t, TicketWeekPass, t0)
	require.True(t, tk.Validate(t0))

	assert.True(t, tk.Cancel(t0.Add(time.Hour)))
	assert.Equal(t, TicketCancelled, tk.Status)
	require.NotNil(t, tk.CancelledAt)
	assert.False(t, tk.Cancel(t0.Add(2*time.Hour)))
	assert.False(t, tk.Validate(t0.Add(2*time.Hour)))
	assert.Equal(t, 1, tk.ValidationCount)

	used := purchase(t, TicketSingle, t0)
	used.Validate(t0)
	assert.False(t, used.Cancel(t0))
	assert.Equal(t, TicketUsed, used.Status)
}

func TestTicketCoversRoute(t *testing.T) {
	tk := purchase(t, TicketSingle, t0)
	assert.True(t, tk.CoversRoute("r-1"))

	tk.RouteID = "r-1"
	assert.True(t, tk.CoversRoute("r-1"))
	assert.False(t, tk.CoversRoute("r-2"))
}
