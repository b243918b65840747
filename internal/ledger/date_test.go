package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/shared"
)

func TestParseDateLayouts(t *testing.T) {
	fromKey, err := ParseDate("05-03-2024")
	require.NoError(t, err)
	fromISO, err := ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.True(t, fromKey.Equal(fromISO))
	assert.Equal(t, "05-03-2024", fromISO.Key())
	assert.Equal(t, "2024-03-05", fromKey.ISO())

	_, err = ParseDate("03/05/2024")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = ParseDate("31-02-2024")
	require.Error(t, err)
}

func TestPrevRollsOver(t *testing.T) {
	cases := []struct {
		day  string
		prev string
	}{
		{day: "01-03-2024", prev: "29-02-2024"},
		{day: "01-03-2023", prev: "28-02-2023"},
		{day: "01-01-2024", prev: "31-12-2023"},
		{day: "01-05-2024", prev: "30-04-2024"},
		{day: "15-06-2024", prev: "14-06-2024"},
	}
	for _, tc := range cases {
		day, err := ParseDate(tc.day)
		require.NoError(t, err)
		assert.Equal(t, tc.prev, day.Prev().Key(), tc.day)
		assert.True(t, day.Prev().Next().Equal(day))
	}
}

func TestDateText(t *testing.T) {
	var day Date
	require.NoError(t, day.UnmarshalText([]byte("2024-12-31")))
	raw, err := day.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "31-12-2024", string(raw))
	assert.True(t, NewDate(2024, 12, 30).Before(day))
}
