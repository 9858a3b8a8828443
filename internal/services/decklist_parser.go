package services

import (
	"log"
	"strings"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

// DecklistFormat identifies which grammar a raw decklist was read with
type DecklistFormat string

const (
	DecklistFormatXML  DecklistFormat = "xml"  // MTGO .dek export
	DecklistFormatCSV  DecklistFormat = "csv"  // MTGO / collection CSV export
	DecklistFormatText DecklistFormat = "text" // "4 Lightning Bolt" lines
)

// DetectDecklistFormat picks the grammar for raw input. The first matching
// prefix of the trimmed input wins; plain text is the fallback.
func DetectDecklistFormat(raw string) DecklistFormat {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "<?xml"):
		return DecklistFormatXML
	case strings.HasPrefix(trimmed, "Card"):
		return DecklistFormatCSV
	default:
		return DecklistFormatText
	}
}

// ParseDecklist converts raw text into a decklist. Blank input yields an
// empty decklist and no error; malformed input returns a
// *DecklistParseError matching ErrMalformedDecklist.
func ParseDecklist(raw string) (models.Decklist, error) {
	format := DetectDecklistFormat(raw)
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.EmptyDecklist(), nil
	}

	var (
		deck models.Decklist
		err  error
	)
	switch format {
	case DecklistFormatXML:
		deck, err = parseXMLDecklist(trimmed)
	case DecklistFormatCSV:
		deck, err = parseCSVDecklist(trimmed)
	default:
		deck, err = parseTextDecklist(trimmed)
	}

	if err != nil {
		metrics.DecklistParsesTotal.WithLabelValues(string(format), "error").Inc()
		return models.EmptyDecklist(), err
	}

	metrics.DecklistParsesTotal.WithLabelValues(string(format), "ok").Inc()
	return models.NewDecklist(deck.Main, deck.Sideboard), nil
}

// ParseDecklistOrEmpty never fails: malformed input is logged and yields an
// empty decklist. Callers cannot tell a parse failure from an empty list;
// use ParseDecklist when that matters.
func ParseDecklistOrEmpty(raw string) models.Decklist {
	deck, err := ParseDecklist(raw)
	if err != nil {
		log.Printf("Decklist parser: falling back to empty decklist: %v", err)
		return models.EmptyDecklist()
	}
	return deck
}

// FormatDecklist renders a decklist in the given format
func FormatDecklist(d models.Decklist, format DecklistFormat) string {
	switch format {
	case DecklistFormatXML:
		return FormatDecklistXML(d)
	case DecklistFormatCSV:
		return FormatDecklistCSV(d)
	default:
		return FormatDecklistText(d)
	}
}
