package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceDisplayPlaces is the number of decimal places prices are shown with
const PriceDisplayPlaces = 3

// CardMetadata holds display fields resolved from the card database.
// Every field is optional.
type CardMetadata struct {
	ImageURLs []string `json:"image_urls,omitempty"`
	SetCode   string   `json:"set_code,omitempty"`
	MTGOID    int      `json:"mtgo_id,omitempty"`
	Foil      bool     `json:"foil,omitempty"`
}

// PricedCard is a decklist card with its resolved unit price.
// When Unavailable is set, UnitPrice and LineTotal are both zero and must
// not be read as a real price.
type PricedCard struct {
	Card
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Unavailable bool            `json:"unavailable"`
	ImageURLs   []string        `json:"image_urls"`
	SetCode     string          `json:"set_code,omitempty"`
	Foil        bool            `json:"foil,omitempty"`
}

// NewPricedCard prices a card at unitPrice each. Metadata fills the display
// fields; an MTGO id already present on the card is kept.
func NewPricedCard(card Card, unitPrice decimal.Decimal, meta CardMetadata) PricedCard {
	if unitPrice.IsNegative() {
		return NewUnavailableCard(card)
	}
	if card.MTGOID == 0 {
		card.MTGOID = meta.MTGOID
	}
	images := meta.ImageURLs
	if images == nil {
		images = []string{}
	}
	return PricedCard{
		Card:      card,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(card.Quantity))),
		ImageURLs: images,
		SetCode:   meta.SetCode,
		Foil:      meta.Foil,
	}
}

// NewUnavailableCard marks a card whose price could not be resolved
func NewUnavailableCard(card Card) PricedCard {
	return PricedCard{
		Card:        card,
		UnitPrice:   decimal.Zero,
		LineTotal:   decimal.Zero,
		Unavailable: true,
		ImageURLs:   []string{},
	}
}

// NewBasicLandCard prices a basic land at zero without any lookup
func NewBasicLandCard(card Card) PricedCard {
	return NewPricedCard(card, decimal.Zero, CardMetadata{})
}

// ValuedDecklist is a decklist with every card priced and the board totals.
// Build it with NewValuedDecklist so the totals always match the cards.
type ValuedDecklist struct {
	Main             []PricedCard    `json:"main"`
	Sideboard        []PricedCard    `json:"sideboard"`
	MainTotal        decimal.Decimal `json:"main_total"`
	SideboardTotal   decimal.Decimal `json:"sideboard_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	UnavailableCount int             `json:"unavailable_count"`
	AsOf             time.Time       `json:"as_of"`
}

// NewValuedDecklist sums line totals per board and overall
func NewValuedDecklist(main, sideboard []PricedCard, asOf time.Time) ValuedDecklist {
	if main == nil {
		main = []PricedCard{}
	}
	if sideboard == nil {
		sideboard = []PricedCard{}
	}
	mainTotal := sumLineTotals(main)
	sideTotal := sumLineTotals(sideboard)
	return ValuedDecklist{
		Main:             main,
		Sideboard:        sideboard,
		MainTotal:        mainTotal,
		SideboardTotal:   sideTotal,
		GrandTotal:       mainTotal.Add(sideTotal),
		UnavailableCount: countUnavailable(main) + countUnavailable(sideboard),
		AsOf:             asOf,
	}
}

// EmptyValuedDecklist is the result for a decklist with no cards
func EmptyValuedDecklist(asOf time.Time) ValuedDecklist {
	return NewValuedDecklist(nil, nil, asOf)
}

func sumLineTotals(cards []PricedCard) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cards {
		if c.Unavailable {
			continue
		}
		total = total.Add(c.LineTotal)
	}
	return total
}

func countUnavailable(cards []PricedCard) int {
	n := 0
	for _, c := range cards {
		if c.Unavailable {
			n++
		}
	}
	return n
}
