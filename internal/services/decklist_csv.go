package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codyseavey/tix-calc/internal/models"
)

// Column names of the MTGO CSV export
const (
	csvColumnName       = "Card Name"
	csvColumnQuantity   = "Quantity"
	csvColumnID         = "ID #"
	csvColumnSideboard  = "Sideboarded"
	csvMainboardMarker  = "No"
	csvSideboardMarker  = "Yes"
	csvExportHeaderLine = "Card Name,Quantity,ID #,Rarity,Set,Collector #,Premium,Sideboarded"
)

// parseCSVDecklist reads an MTGO CSV export. Columns are located by header
// name, so extra or reordered columns are fine.
func parseCSVDecklist(raw string) (models.Decklist, error) {
	var rows [][]string
	var rowLines []int
	for i, line := range lineBreakPattern.Split(raw, -1) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells, err := splitCSVRow(line)
		if err != nil {
			return models.Decklist{}, &DecklistParseError{Format: DecklistFormatCSV, Line: i + 1, Reason: err.Error()}
		}
		rows = append(rows, cells)
		rowLines = append(rowLines, i+1)
	}
	if len(rows) == 0 {
		return models.EmptyDecklist(), nil
	}

	header := rows[0]
	nameIdx := indexOf(header, csvColumnName)
	quantityIdx := indexOf(header, csvColumnQuantity)
	sideIdx := indexOf(header, csvColumnSideboard)
	idIdx := indexOf(header, csvColumnID)

	required := []struct {
		column string
		idx    int
	}{
		{csvColumnName, nameIdx},
		{csvColumnQuantity, quantityIdx},
		{csvColumnSideboard, sideIdx},
	}
	for _, r := range required {
		if r.idx < 0 {
			return models.Decklist{}, &DecklistParseError{
				Format: DecklistFormatCSV,
				Line:   rowLines[0],
				Reason: fmt.Sprintf("missing required column %q", r.column),
			}
		}
	}

	main, side := []models.Card{}, []models.Card{}
	for r, row := range rows[1:] {
		line := rowLines[r+1]
		if len(row) <= nameIdx || len(row) <= quantityIdx || len(row) <= sideIdx {
			return models.Decklist{}, &DecklistParseError{
				Format: DecklistFormatCSV,
				Line:   line,
				Reason: fmt.Sprintf("row has %d cells, header has %d", len(row), len(header)),
			}
		}

		quantity, err := strconv.Atoi(strings.TrimSpace(row[quantityIdx]))
		if err != nil {
			return models.Decklist{}, &DecklistParseError{
				Format: DecklistFormatCSV,
				Line:   line,
				Reason: fmt.Sprintf("invalid quantity %q", row[quantityIdx]),
			}
		}

		// The id column is informational; a missing or blank id is not an error
		mtgoID := 0
		if idIdx >= 0 && idIdx < len(row) {
			mtgoID, _ = strconv.Atoi(strings.TrimSpace(row[idIdx]))
		}

		card := models.NewCard(row[nameIdx], quantity, mtgoID)
		if strings.TrimSpace(row[sideIdx]) == csvMainboardMarker {
			main = append(main, card)
		} else {
			side = append(side, card)
		}
	}

	return models.NewDecklist(main, side), nil
}

// splitCSVRow splits one row into cells. A quoted cell runs until the
// closing quote that is followed by a comma or the end of the row, so names
// may contain quotes and commas. A trailing comma adds no empty cell.
func splitCSVRow(row string) ([]string, error) {
	var cells []string
	rest := row
	for {
		var cell string
		if strings.HasPrefix(rest, `"`) {
			body := rest[1:]
			end := closingQuote(body)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted cell at %q", rest)
			}
			cell = body[:end]
			rest = body[end+1:]
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			cell = rest[:end]
			rest = rest[end:]
		}
		cells = append(cells, cell)

		rest = strings.TrimPrefix(rest, ",")
		if rest == "" {
			return cells, nil
		}
	}
}

// closingQuote returns the index of the first quote followed by a comma or
// the end of s, or -1
func closingQuote(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if i == len(s)-1 || s[i+1] == ',' {
			return i
		}
	}
	return -1
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if strings.TrimSpace(v) == target {
			return i
		}
	}
	return -1
}

// FormatDecklistCSV renders the MTGO CSV export layout. Columns the decklist
// does not know (rarity, set, collector number) are left blank.
func FormatDecklistCSV(d models.Decklist) string {
	var b strings.Builder
	b.WriteString(csvExportHeaderLine)
	write := func(cards []models.Card, marker string) {
		for _, c := range cards {
			id := ""
			if c.MTGOID > 0 {
				id = strconv.Itoa(c.MTGOID)
			}
			fmt.Fprintf(&b, "\n\"%s\",%d,%s,,,,No,%s", c.Name, c.Quantity, id, marker)
		}
	}
	write(d.Main, csvMainboardMarker)
	write(d.Sideboard, csvSideboardMarker)
	return b.String()
}
