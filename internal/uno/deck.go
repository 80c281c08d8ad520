// internal/uno/deck.go
package uno

import (
	"math/rand"
)

// DeckSize is the number of cards in a standard set.
const DeckSize = 108

// NewCardSet builds the standard 108-card set in a fixed, unshuffled order:
// per color one 0, two each of 1-9, two each of skip, reverse and draw two; then four wilds and
// four wild draw fours.
func NewCardSet() []Card {
	cards := make([]Card, 0, DeckSize)
	for _, color := range Colors {
		cards = append(cards, newCard(color, RankZero))
		for _, rank := range numberRanks[1:] {
			cards = append(cards, newCard(color, rank), newCard(color, rank))
		}
		for _, rank := range []Rank{RankSkip, RankReverse, RankDrawTwo} {
			cards = append(cards, newCard(color, rank), newCard(color, rank))
		}
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, newCard(Wild, RankWild))
		cards = append(cards, newCard(Wild, RankWildDrawFour))
	}
	return cards
}

// Deck holds the draw pile and the discard pile of a session. The top of both piles is the end of
// the slice.
type Deck struct {
	DrawPile    []Card `json:"drawPile"`
	DiscardPile []Card `json:"discardPile"`

	// Recycled counts how many times the discard pile was folded back into the draw pile.
	Recycled int `json:"recycled"`
}

// NewDeck returns a deck whose draw pile is a shuffled full card set.
func NewDeck(rng *rand.Rand) Deck {
	d := Deck{DrawPile: NewCardSet()}
	d.Shuffle(rng)
	return d
}

// Shuffle permutes the draw pile uniformly.
func (d *Deck) Shuffle(rng *rand.Rand) {
	shuffleCards(d.DrawPile, rng)
}

// Draw removes up to n cards from the end of the draw pile. When the draw pile runs out mid-draw,
// every discard except the top is moved into it and reshuffled. If neither pile can supply a card
// the result is short; Draw never fails.
func (d *Deck) Draw(n int, rng *rand.Rand) []Card {
	if n <= 0 {
		return nil
	}
	drawn := make([]Card, 0, n)
	for len(drawn) < n {
		if len(d.DrawPile) == 0 && !d.recycle(rng) {
			break
		}
		last := len(d.DrawPile) - 1
		drawn = append(drawn, d.DrawPile[last])
		d.DrawPile = d.DrawPile[:last]
	}
	return drawn
}

// recycle moves all but the top discard into the draw pile and shuffles it.
// Returns false when there is nothing under the top card to recycle.
func (d *Deck) recycle(rng *rand.Rand) bool {
	if len(d.DiscardPile) <= 1 {
		return false
	}
	top := d.DiscardPile[len(d.DiscardPile)-1]
	d.DrawPile = append(d.DrawPile, d.DiscardPile[:len(d.DiscardPile)-1]...)
	d.DiscardPile = []Card{top}
	shuffleCards(d.DrawPile, rng)
	d.Recycled++
	return true
}

// Discard places c on top of the discard pile.
func (d *Deck) Discard(c Card) {
	d.DiscardPile = append(d.DiscardPile, c)
}

// Top returns the current discard top.
func (d *Deck) Top() (Card, bool) {
	if len(d.DiscardPile) == 0 {
		return Card{}, false
	}
	return d.DiscardPile[len(d.DiscardPile)-1], true
}

// Return puts c back into the draw pile and reshuffles it.
func (d *Deck) Return(c Card, rng *rand.Rand) {
	d.DrawPile = append(d.DrawPile, c)
	shuffleCards(d.DrawPile, rng)
}

func shuffleCards(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
