package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsAreStableAcrossDates(t *testing.T) {
	c := NewCatalog()

	a := c.Slots(time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC))
	b := c.Slots(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))

	assert.Len(t, a, 15)
	assert.Equal(t, a, b)
	assert.Equal(t, "09:00", a[0])
	assert.Equal(t, "17:00", a[len(a)-1])
	assert.NotContains(t, a, "13:00")
}

func TestSlotsReturnsCopy(t *testing.T) {
	c := NewCatalog()
	s := c.Slots(time.Time{})
	s[0] = "garbage"

	assert.Equal(t, "09:00", c.Slots(time.Time{})[0])
}

func TestNormalize(t *testing.T) {
	c := NewCatalog()

	cases := map[string]string{
		"10:00":    "10:00",
		"10:00 AM": "10:00",
		"02:30 PM": "14:30",
		"2:30 pm":  "14:30",
		" 09:30 ":  "09:30",
	}
	for in, want := range cases {
		got, err := c.Normalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "13:00", "01:00 PM", "noon", "10:15"} {
		_, err := c.Normalize(bad)
		assert.ErrorIs(t, err, ErrUnknownSlot, bad)
	}
}

func TestAvailable(t *testing.T) {
	c := NewCatalog()

	got := c.Available(time.Time{}, []string{"10:00", "17:00", "not-a-slot"})

	assert.Len(t, got, 13)
	assert.NotContains(t, got, "10:00")
	assert.NotContains(t, got, "17:00")
	assert.Equal(t, "09:00", got[0])
}
