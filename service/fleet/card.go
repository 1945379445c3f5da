package fleet

import (
	"fmt"

	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/units"
)

// Color is the countdown color of a fleet card.
type Color string

const (
	ColorOnTrack Color = "on-track"
	ColorWarning Color = "warning"
	ColorExpired Color = "expired"
)

// warningHours is the remaining runtime below which a fleet needs attention.
const warningHours = 12

// CardColor picks the countdown color. A fleet with no time left is
// expired even though it is also under the warning threshold.
func CardColor(secondsLeft int64) Color {
	if secondsLeft <= 0 {
		return ColorExpired
	}
	if secondsLeft/3600 < warningHours {
		return ColorWarning
	}
	return ColorOnTrack
}

// Card is the display model of one fleet.
type Card struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url"`
	Size           uint64 `json:"size"`
	SecondsLeft    int64  `json:"seconds_left"`
	Countdown      string `json:"countdown"`
	TotalPaid      string `json:"total_paid"`
	PendingRewards string `json:"pending_rewards"`
	RewardPerDay   string `json:"reward_per_day"`
	Color          Color  `json:"color"`
	Selected       bool   `json:"selected"`
}

// NewCard renders f. It reads nothing but its arguments.
func NewCard(f state.Fleet, selected bool) Card {
	return Card{
		ID:             f.ID,
		Name:           f.Name,
		ImageURL:       f.ImageURL,
		Size:           f.Size,
		SecondsLeft:    f.SecondsLeft,
		Countdown:      Countdown(f.SecondsLeft),
		TotalPaid:      units.FormatAtlas(f.TotalPaid),
		PendingRewards: units.FormatAtlas(f.PendingRewards),
		RewardPerDay:   units.FormatAtlas(f.RewardPerDay),
		Color:          CardColor(f.SecondsLeft),
		Selected:       selected,
	}
}

// Cards renders every fleet, marking those the selection reports as selected.
func Cards(fleets []state.Fleet, isSelected func(id string) bool) []Card {
	cards := make([]Card, len(fleets))
	for i, f := range fleets {
		cards[i] = NewCard(f, isSelected(f.ID))
	}
	return cards
}

// Toggle flips a card's selection through the supplied callbacks.
func Toggle(selected bool, onSelect, onUnselect func()) {
	if selected {
		onUnselect()
		return
	}
	onSelect()
}

// Countdown formats seconds as HH:MM:SS, with hours allowed past 24.
func Countdown(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
