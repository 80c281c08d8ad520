// internal/uno/card.go
package uno

import (
	"fmt"

	"github.com/google/uuid"
)

// Color is the intrinsic color of a card. Wild marks wild-type cards and is never a valid active
// wild color.
type Color string

const (
	Red    Color = "red"
	Green  Color = "green"
	Blue   Color = "blue"
	Yellow Color = "yellow"
	Wild   Color = "wild"
)

// Colors lists the four nominable colors in a stable order.
var Colors = []Color{Red, Green, Blue, Yellow}

// Valid reports whether c may be nominated as the active wild color.
func (c Color) Valid() bool {
	switch c {
	case Red, Green, Blue, Yellow:
		return true
	}
	return false
}

// Rank is the face of a card: a number 0-9 or a special effect.
type Rank string

const (
	RankZero  Rank = "0"
	RankOne   Rank = "1"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"

	RankSkip         Rank = "skip"
	RankReverse      Rank = "reverse"
	RankDrawTwo      Rank = "draw_two"
	RankWild         Rank = "wild"
	RankWildDrawFour Rank = "wild_draw_four"
)

var numberRanks = []Rank{RankZero, RankOne, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven, RankEight, RankNine}

// IsNumber reports whether r is one of the numbered faces.
func (r Rank) IsNumber() bool {
	return len(r) == 1 && r[0] >= '0' && r[0] <= '9'
}

// Card is an immutable card identity. Cards move between zones by value and are never edited.
type Card struct {
	ID    uuid.UUID `json:"id"`
	Color Color     `json:"color"`
	Rank  Rank      `json:"rank"`
}

// IsWild reports whether the card carries no intrinsic color.
func (c Card) IsWild() bool {
	return c.Color == Wild
}

// Face identifies the card by color and rank only, which is what the rule set cares about.
func (c Card) Face() string {
	return fmt.Sprintf("%s:%s", c.Color, c.Rank)
}

func (c Card) String() string {
	return c.Face()
}

func newCard(color Color, rank Rank) Card {
	return Card{ID: uuid.New(), Color: color, Rank: rank}
}
