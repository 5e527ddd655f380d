package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{
		StatusCreated, StatusConfirmed, StatusPaid,
		StatusShipped, StatusDelivered, StatusCancelled,
	}
	allowed := map[Status]map[Status]bool{
		StatusCreated:   {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed: {StatusPaid: true, StatusShipped: true, StatusCancelled: true},
		StatusPaid:      {StatusShipped: true},
		StatusShipped:   {StatusDelivered: true},
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	for _, terminal := range []Status{StatusDelivered, StatusCancelled} {
		for _, to := range []Status{
			StatusCreated, StatusConfirmed, StatusPaid,
			StatusShipped, StatusDelivered, StatusCancelled,
		} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("shipped")
	assert.Error(t, err)
	_, err = ParseStatus("RETURNED")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestTotal(t *testing.T) {
	items := []Item{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("5.01")},
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}
	assert.True(t, Total(items).Equal(decimal.RequireFromString("45.29")),
		"got %s", Total(items))
}

func TestTotalEmpty(t *testing.T) {
	assert.True(t, Total(nil).IsZero())
}
