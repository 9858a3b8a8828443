package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codyseavey/tix-calc/internal/models"
)

// DefaultPreviewName is used when a preview is requested without a deck name
const DefaultPreviewName = "Deck"

const previewTemplate = `<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title></title>
<style>
.grid-wrapper {
    display: grid;
    grid-template-columns: 2fr 1fr
}
.card {
    display: inline-block;
    position: relative;
}
.number, .price {
    position: absolute;
    right: 10%;
    background: rgba(20%, 20%, 20%, 80%);
    color: rgba(80%, 80%, 80%, 100%);
}
.number {
    top: 10%;
    font-size: 200%;
}
.price {
    bottom: 10%;
    text-align: right;
}
.unavailable {
    opacity: 0.5;
}
</style>
</head>
<body>
<div class="grid-wrapper">
<main></main>
<aside></aside>
</div>
</body>
</html>`

// RenderPreview renders a valued decklist as a standalone HTML page: a
// heading with the grand total, main deck tiles on the left and sideboard
// tiles on the right.
func RenderPreview(valued models.ValuedDecklist, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultPreviewName
	}
	date := previewDate(valued.AsOf)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(previewTemplate))
	if err != nil {
		return "", fmt.Errorf("failed to load preview template: %w", err)
	}

	doc.Find("title").SetText(fmt.Sprintf("%s %s", name, date))
	heading := fmt.Sprintf("%s total %s tix (%s)", name, valued.GrandTotal.StringFixed(models.PriceDisplayPlaces), date)
	doc.Find("body").PrependHtml("<h1>" + html.EscapeString(heading) + "</h1>")

	main := doc.Find("main")
	for _, card := range valued.Main {
		main.AppendHtml(previewTile(card))
	}
	aside := doc.Find("aside")
	for _, card := range valued.Sideboard {
		aside.AppendHtml(previewTile(card))
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render preview: %w", err)
	}
	return out, nil
}

func previewTile(card models.PricedCard) string {
	var b strings.Builder

	class := "card"
	if card.Unavailable {
		class += " unavailable"
	}
	fmt.Fprintf(&b, `<div class="%s" title="%s">`, class, html.EscapeString(card.Name))
	if len(card.ImageURLs) > 0 {
		fmt.Fprintf(&b, `<img src="%s" alt="%s">`, html.EscapeString(card.ImageURLs[0]), html.EscapeString(card.Name))
	} else {
		fmt.Fprintf(&b, `<span class="name">%s</span>`, html.EscapeString(card.Name))
	}
	fmt.Fprintf(&b, `<span class="number">x%d</span>`, card.Quantity)
	if card.Unavailable {
		b.WriteString(`<span class="price">Price n/a</span>`)
	} else {
		fmt.Fprintf(&b, `<span class="price">Price %s<br>Sum %s</span>`,
			card.UnitPrice.StringFixed(models.PriceDisplayPlaces),
			card.LineTotal.StringFixed(models.PriceDisplayPlaces))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// previewDate renders the date without zero padding, e.g. 2024-3-7
func previewDate(t time.Time) string {
	return t.Format("2006-1-2")
}
