package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/codyseavey/tix-calc/internal/models"
)

var (
	lineBreakPattern = regexp.MustCompile(`\r\n|\r|\n`)
	textCardPattern  = regexp.MustCompile(`^(\d+)\s+(.+)$`)
)

// parseTextDecklist reads "<quantity> <name>" lines. A blank line or a line
// reading "Sideboard" switches every following line to the sideboard.
func parseTextDecklist(raw string) (models.Decklist, error) {
	main, side := []models.Card{}, []models.Card{}
	inSideboard := false

	for i, line := range lineBreakPattern.Split(raw, -1) {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "sideboard") {
			inSideboard = true
			continue
		}

		m := textCardPattern.FindStringSubmatch(line)
		if m == nil {
			return models.Decklist{}, &DecklistParseError{
				Format: DecklistFormatText,
				Line:   i + 1,
				Reason: "expected \"<quantity> <card name>\", got " + strconv.Quote(line),
			}
		}
		quantity, err := strconv.Atoi(m[1])
		if err != nil {
			return models.Decklist{}, &DecklistParseError{
				Format: DecklistFormatText,
				Line:   i + 1,
				Reason: "invalid quantity " + strconv.Quote(m[1]),
			}
		}

		card := models.NewCard(m[2], quantity, 0)
		if inSideboard {
			side = append(side, card)
		} else {
			main = append(main, card)
		}
	}

	return models.NewDecklist(main, side), nil
}

// FormatDecklistText renders the plain text format
func FormatDecklistText(d models.Decklist) string {
	return d.String()
}
