package models

import (
	"strconv"
	"strings"
)

// Card is a single decklist entry as read from the user's list.
// Name is the display name exactly as written; lookups use a normalized key.
type Card struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	MTGOID   int    `json:"mtgo_id,omitempty"` // CatID / "ID #" from MTGO exports, 0 when unknown
}

// NewCard builds a card from a parsed line. A quantity below 1 defaults to 1.
func NewCard(name string, quantity, mtgoID int) Card {
	if quantity < 1 {
		quantity = 1
	}
	if mtgoID < 0 {
		mtgoID = 0
	}
	return Card{
		Name:     name,
		Quantity: quantity,
		MTGOID:   mtgoID,
	}
}

// Decklist is a user's list split into mainboard and sideboard
type Decklist struct {
	Main      []Card `json:"main"`
	Sideboard []Card `json:"sideboard"`
}

// EmptyDecklist returns a decklist with both boards empty (never nil)
func EmptyDecklist() Decklist {
	return Decklist{
		Main:      []Card{},
		Sideboard: []Card{},
	}
}

// NewDecklist builds a decklist, replacing nil boards with empty slices
func NewDecklist(main, sideboard []Card) Decklist {
	if main == nil {
		main = []Card{}
	}
	if sideboard == nil {
		sideboard = []Card{}
	}
	return Decklist{Main: main, Sideboard: sideboard}
}

// IsEmpty reports whether neither board has any card
func (d Decklist) IsEmpty() bool {
	return len(d.Main) == 0 && len(d.Sideboard) == 0
}

// CardCount returns the number of physical cards across both boards
func (d Decklist) CardCount() int {
	total := 0
	for _, c := range d.Main {
		total += c.Quantity
	}
	for _, c := range d.Sideboard {
		total += c.Quantity
	}
	return total
}

// String renders the list in the plain text format ("4 Name" lines with a
// Sideboard separator), which parses back to the same decklist.
func (d Decklist) String() string {
	var b strings.Builder
	writeLines(&b, d.Main)
	b.WriteString("\nSideboard\n")
	writeLines(&b, d.Sideboard)
	return b.String()
}

func writeLines(b *strings.Builder, cards []Card) {
	for i, c := range cards {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(c.Quantity))
		b.WriteByte(' ')
		b.WriteString(c.Name)
	}
}
