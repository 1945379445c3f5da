package fleet

import (
	"testing"

	"github.com/brojonat/atlasclaim/service/state"
	"github.com/stretchr/testify/assert"
)

func TestCardColor(t *testing.T) {
	tests := []struct {
		name        string
		secondsLeft int64
		want        Color
	}{
		{"zero is expired", 0, ColorExpired},
		{"negative is expired", -5, ColorExpired},
		{"one second", 1, ColorWarning},
		{"just under 12h", 12*3600 - 1, ColorWarning},
		{"exactly 12h", 12 * 3600, ColorOnTrack},
		{"two days", 48 * 3600, ColorOnTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CardColor(tt.secondsLeft))
		})
	}
}

func TestCardColor_Properties(t *testing.T) {
	for s := int64(1); s < 12*3600; s += 997 {
		assert.Equal(t, ColorWarning, CardColor(s), "secondsLeft=%d", s)
	}
	for s := int64(12 * 3600); s < 30*24*3600; s += 7919 {
		assert.Equal(t, ColorOnTrack, CardColor(s), "secondsLeft=%d", s)
	}
}

func TestNewCard(t *testing.T) {
	f := state.Fleet{
		ID:             "fleet1",
		Name:           "Pearce X4",
		ImageURL:       "https://img/x4.png",
		Size:           3,
		SecondsLeft:    90061,
		TotalPaid:      250000000000,
		PendingRewards: 1234500000,
		RewardPerDay:   0,
	}

	card := NewCard(f, true)
	assert.Equal(t, "fleet1", card.ID)
	assert.Equal(t, "25:01:01", card.Countdown)
	assert.Equal(t, "2,500", card.TotalPaid)
	assert.Equal(t, "12.345", card.PendingRewards)
	assert.Equal(t, "0", card.RewardPerDay)
	assert.Equal(t, ColorOnTrack, card.Color)
	assert.True(t, card.Selected)
}

func TestCards(t *testing.T) {
	fleets := []state.Fleet{{ID: "a"}, {ID: "b", SecondsLeft: 60}}
	cards := Cards(fleets, func(id string) bool { return id == "b" })

	assert.False(t, cards[0].Selected)
	assert.Equal(t, ColorExpired, cards[0].Color)
	assert.True(t, cards[1].Selected)
	assert.Equal(t, ColorWarning, cards[1].Color)
}

func TestToggle(t *testing.T) {
	var selected, unselected int
	onSelect := func() { selected++ }
	onUnselect := func() { unselected++ }

	Toggle(false, onSelect, onUnselect)
	assert.Equal(t, 1, selected)
	assert.Equal(t, 0, unselected)

	Toggle(true, onSelect, onUnselect)
	assert.Equal(t, 1, selected)
	assert.Equal(t, 1, unselected)
}

func TestCountdown(t *testing.T) {
	assert.Equal(t, "00:00:00", Countdown(0))
	assert.Equal(t, "00:00:00", Countdown(-1))
	assert.Equal(t, "00:01:05", Countdown(65))
	assert.Equal(t, "11:59:59", Countdown(12*3600-1))
}
