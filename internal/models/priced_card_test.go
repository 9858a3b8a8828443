package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewCardDefaultsQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		expected int
	}{
		{"explicit quantity kept", 4, 4},
		{"zero defaults to one", 0, 1},
		{"negative defaults to one", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := NewCard("Lightning Bolt", tt.quantity, 0)
			if card.Quantity != tt.expected {
				t.Errorf("NewCard quantity = %d, want %d", card.Quantity, tt.expected)
			}
		})
	}
}

func TestNewPricedCardLineTotal(t *testing.T) {
	card := NewCard("Lightning Bolt", 4, 0)
	priced := NewPricedCard(card, decimal.RequireFromString("0.1"), CardMetadata{MTGOID: 1234, SetCode: "m10"})

	if !priced.LineTotal.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("LineTotal = %s, want 0.4", priced.LineTotal)
	}
	if priced.Unavailable {
		t.Error("priced card should not be unavailable")
	}
	if priced.MTGOID != 1234 {
		t.Errorf("MTGOID = %d, want metadata id 1234", priced.MTGOID)
	}
	if priced.ImageURLs == nil {
		t.Error("ImageURLs should be empty, not nil")
	}
}

func TestNewPricedCardKeepsExplicitMTGOID(t *testing.T) {
	card := NewCard("Counterspell", 2, 42)
	priced := NewPricedCard(card, decimal.RequireFromString("0.2"), CardMetadata{MTGOID: 99})
	if priced.MTGOID != 42 {
		t.Errorf("MTGOID = %d, want 42 from the decklist", priced.MTGOID)
	}
}

func TestNewUnavailableCard(t *testing.T) {
	priced := NewUnavailableCard(NewCard("Unknown Card", 3, 0))

	if !priced.Unavailable {
		t.Error("expected unavailable flag")
	}
	if !priced.UnitPrice.IsZero() || !priced.LineTotal.IsZero() {
		t.Errorf("unavailable card prices = %s/%s, want 0/0", priced.UnitPrice, priced.LineTotal)
	}
	if priced.Quantity != 3 {
		t.Errorf("Quantity = %d, want 3", priced.Quantity)
	}
}

func TestNegativePriceIsUnavailable(t *testing.T) {
	priced := NewPricedCard(NewCard("Bad Data", 1, 0), decimal.NewFromInt(-1), CardMetadata{})
	if !priced.Unavailable {
		t.Error("a negative price should produce an unavailable card")
	}
}

func TestNewValuedDecklistTotals(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	main := []PricedCard{
		NewPricedCard(NewCard("Lightning Bolt", 4, 0), decimal.RequireFromString("0.1"), CardMetadata{}),
		NewPricedCard(NewCard("Counterspell", 2, 0), decimal.RequireFromString("0.2"), CardMetadata{}),
		NewUnavailableCard(NewCard("Missing", 4, 0)),
	}
	side := []PricedCard{
		NewPricedCard(NewCard("Negate", 1, 0), decimal.RequireFromString("0.15"), CardMetadata{}),
	}

	v := NewValuedDecklist(main, side, asOf)

	if !v.MainTotal.Equal(decimal.RequireFromString("0.8")) {
		t.Errorf("MainTotal = %s, want 0.8", v.MainTotal)
	}
	if !v.SideboardTotal.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("SideboardTotal = %s, want 0.15", v.SideboardTotal)
	}
	if !v.GrandTotal.Equal(decimal.RequireFromString("0.95")) {
		t.Errorf("GrandTotal = %s, want 0.95", v.GrandTotal)
	}
	if v.UnavailableCount != 1 {
		t.Errorf("UnavailableCount = %d, want 1", v.UnavailableCount)
	}
	if len(v.Main) != 3 {
		t.Errorf("unavailable cards must stay in the list, got %d main cards", len(v.Main))
	}
}

func TestEmptyValuedDecklistHasEmptyBoards(t *testing.T) {
	v := EmptyValuedDecklist(time.Now())
	if v.Main == nil || v.Sideboard == nil {
		t.Fatal("boards should be empty slices, not nil")
	}
	if !v.GrandTotal.IsZero() {
		t.Errorf("GrandTotal = %s, want 0", v.GrandTotal)
	}
}

func TestValuedDecklistJSONRoundTrip(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	original := NewValuedDecklist(
		[]PricedCard{
			NewPricedCard(NewCard("Delver of Secrets", 4, 0), decimal.RequireFromString("0.125"), CardMetadata{
				ImageURLs: []string{"https://img.example/front.jpg", "https://img.example/back.jpg"},
				SetCode:   "isd",
				MTGOID:    42000,
				Foil:      true,
			}),
			NewUnavailableCard(NewCard("Unreleased Card", 1, 0)),
		},
		[]PricedCard{
			NewBasicLandCard(NewCard("Island", 2, 0)),
		},
		asOf,
	)

	data, err := EncodeValuedDecklist(original)
	if err != nil {
		t.Fatalf("EncodeValuedDecklist failed: %v", err)
	}
	if !strings.Contains(string(data), `"unavailable_count":1`) {
		t.Errorf("Expected unavailable_count in JSON, got %s", data)
	}
	decoded, err := DecodeValuedDecklist(data)
	if err != nil {
		t.Fatalf("DecodeValuedDecklist failed: %v", err)
	}

	if len(decoded.Main) != 2 || len(decoded.Sideboard) != 1 {
		t.Fatalf("decoded boards = %d/%d, want 2/1", len(decoded.Main), len(decoded.Sideboard))
	}
	delver := decoded.Main[0]
	if delver.Name != "Delver of Secrets" || delver.Quantity != 4 || delver.MTGOID != 42000 {
		t.Errorf("card identity not preserved: %+v", delver.Card)
	}
	if !delver.UnitPrice.Equal(decimal.RequireFromString("0.125")) || !delver.LineTotal.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("prices not preserved: %s/%s", delver.UnitPrice, delver.LineTotal)
	}
	if len(delver.ImageURLs) != 2 || delver.SetCode != "isd" || !delver.Foil {
		t.Errorf("display fields not preserved: %+v", delver)
	}
	if !decoded.Main[1].Unavailable {
		t.Error("unavailable flag lost in round trip")
	}
	if decoded.Sideboard[0].Unavailable || !decoded.Sideboard[0].UnitPrice.IsZero() {
		t.Error("basic land should decode as available with price 0")
	}
	if !decoded.GrandTotal.Equal(original.GrandTotal) {
		t.Errorf("GrandTotal = %s, want %s", decoded.GrandTotal, original.GrandTotal)
	}
	if !decoded.AsOf.Equal(asOf) {
		t.Errorf("AsOf = %v, want %v", decoded.AsOf, asOf)
	}
}
