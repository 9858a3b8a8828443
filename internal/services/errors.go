package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDecklist is returned when raw text matches none of the
	// decklist grammars or a required field is missing
	ErrMalformedDecklist = errors.New("malformed decklist")

	// ErrSourceUnavailable is returned when a remote price fetch fails
	// (network error, non-2xx status, unparseable body)
	ErrSourceUnavailable = errors.New("price source unavailable")

	// ErrCacheUnavailable is returned when the cache store cannot be read or written
	ErrCacheUnavailable = errors.New("price cache unavailable")

	// ErrNotRefreshable is returned when a refresh is queued for a card
	// that never has a remote price (basic lands, blank names)
	ErrNotRefreshable = errors.New("card has no remote price")
)

// DecklistParseError describes where a decklist stopped parsing
type DecklistParseError struct {
	Format DecklistFormat
	Line   int // 1-based, 0 when the format has no line position
	Reason string
}

func (e *DecklistParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s decklist line %d: %s", e.Format, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s decklist: %s", e.Format, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedDecklist
func (e *DecklistParseError) Unwrap() error {
	return ErrMalformedDecklist
}
