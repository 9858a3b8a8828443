package models

import (
	"encoding/json"
	"fmt"
)

// EncodeDecklist serializes a decklist as JSON
func EncodeDecklist(d Decklist) ([]byte, error) {
	return json.Marshal(NewDecklist(d.Main, d.Sideboard))
}

// DecodeDecklist parses a decklist from JSON. Missing boards decode as
// empty, and quantities below 1 default to 1.
func DecodeDecklist(data []byte) (Decklist, error) {
	var d Decklist
	if err := json.Unmarshal(data, &d); err != nil {
		return EmptyDecklist(), fmt.Errorf("failed to decode decklist: %w", err)
	}
	for i, c := range d.Main {
		d.Main[i] = NewCard(c.Name, c.Quantity, c.MTGOID)
	}
	for i, c := range d.Sideboard {
		d.Sideboard[i] = NewCard(c.Name, c.Quantity, c.MTGOID)
	}
	return NewDecklist(d.Main, d.Sideboard), nil
}

// EncodeValuedDecklist serializes a valued decklist as JSON. Prices are
// written as decimal strings so they survive the round trip exactly.
func EncodeValuedDecklist(v ValuedDecklist) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeValuedDecklist parses a valued decklist from JSON
func DecodeValuedDecklist(data []byte) (ValuedDecklist, error) {
	var v ValuedDecklist
	if err := json.Unmarshal(data, &v); err != nil {
		return ValuedDecklist{}, fmt.Errorf("failed to decode valued decklist: %w", err)
	}
	if v.Main == nil {
		v.Main = []PricedCard{}
	}
	if v.Sideboard == nil {
		v.Sideboard = []PricedCard{}
	}
	for _, board := range [][]PricedCard{v.Main, v.Sideboard} {
		for i := range board {
			if board[i].ImageURLs == nil {
				board[i].ImageURLs = []string{}
			}
		}
	}
	return v, nil
}

// DecodeCardMetadata parses a cached metadata body. An empty body yields
// empty metadata.
func DecodeCardMetadata(body string) (CardMetadata, error) {
	var meta CardMetadata
	if body == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(body), &meta); err != nil {
		return CardMetadata{}, fmt.Errorf("failed to decode card metadata: %w", err)
	}
	return meta, nil
}
