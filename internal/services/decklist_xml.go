package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/codyseavey/tix-calc/internal/models"
)

var (
	xmlNamePattern      = regexp.MustCompile(`^(?:xml|XML)`)
	xmlVersionPattern   = regexp.MustCompile(`^\d+(?:\.\d+)?`)
	xmlEncodingPattern  = regexp.MustCompile(`^(?i:utf-8)`)
	xmlTagRestPattern   = regexp.MustCompile(`^[^>]*`)
	xmlDigitsPattern    = regexp.MustCompile(`^\d+`)
	xmlBooleanPattern   = regexp.MustCompile(`^(?i:true|false)`)
	xmlCardNamePattern  = regexp.MustCompile(`^[^"]+`)
	xmlCardTagPattern   = regexp.MustCompile(`^Cards?`)
	xmlAttrNamePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*`)
	xmlAttrValuePattern = regexp.MustCompile(`^[^"]*`)

	xmlEntityDecoder = strings.NewReplacer("&quot;", `"`, "&apos;", "'", "&lt;", "<", "&gt;", ">", "&amp;", "&")
	xmlEntityEncoder = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
)

// xmlDeckScanner is a left-to-right tokenizer over an MTGO .dek file.
// Whitespace between tokens is skipped; any unexpected token fails the parse.
type xmlDeckScanner struct {
	src string
	pos int
}

// parseXMLDecklist reads an MTGO .dek export:
//
//	<?xml version="1.0" encoding="utf-8"?>
//	<Deck ...>
//	  <NetDeckID>0</NetDeckID>
//	  <PreconstructedDeckID>0</PreconstructedDeckID>
//	  <Cards CatID="12345" Quantity="4" Sideboard="false" Name="Lightning Bolt" />
//	</Deck>
func parseXMLDecklist(raw string) (models.Decklist, error) {
	s := &xmlDeckScanner{src: raw}
	if err := s.declaration(); err != nil {
		return models.Decklist{}, err
	}
	return s.deck()
}

func (s *xmlDeckScanner) declaration() error {
	if err := s.expect("<?"); err != nil {
		return err
	}
	if _, err := s.match(xmlNamePattern, "xml"); err != nil {
		return err
	}
	if s.peek("version") {
		if err := s.expect("version", "=", `"`); err != nil {
			return err
		}
		if _, err := s.match(xmlVersionPattern, "version number"); err != nil {
			return err
		}
		if err := s.expect(`"`); err != nil {
			return err
		}
	}
	if s.peek("encoding") {
		if err := s.expect("encoding", "=", `"`); err != nil {
			return err
		}
		if _, err := s.match(xmlEncodingPattern, "utf-8"); err != nil {
			return err
		}
		if err := s.expect(`"`); err != nil {
			return err
		}
	}
	return s.expect("?>")
}

func (s *xmlDeckScanner) deck() (models.Decklist, error) {
	if err := s.expect("<", "Deck"); err != nil {
		return models.Decklist{}, err
	}
	if _, err := s.match(xmlTagRestPattern, "Deck attributes"); err != nil {
		return models.Decklist{}, err
	}
	if err := s.expect(">"); err != nil {
		return models.Decklist{}, err
	}
	if err := s.numericElement("NetDeckID"); err != nil {
		return models.Decklist{}, err
	}
	if err := s.numericElement("PreconstructedDeckID"); err != nil {
		return models.Decklist{}, err
	}

	main, side := []models.Card{}, []models.Card{}
	for s.peek("<Card") {
		card, sideboard, err := s.card()
		if err != nil {
			return models.Decklist{}, err
		}
		if sideboard {
			side = append(side, card)
		} else {
			main = append(main, card)
		}
	}

	if err := s.expect("</", "Deck"); err != nil {
		return models.Decklist{}, err
	}
	if _, err := s.match(xmlTagRestPattern, "Deck closing tag"); err != nil {
		return models.Decklist{}, err
	}
	if err := s.expect(">"); err != nil {
		return models.Decklist{}, err
	}
	s.skipSpace()
	if s.pos < len(s.src) {
		return models.Decklist{}, s.errorf("unexpected content after </Deck>")
	}

	return models.NewDecklist(main, side), nil
}

func (s *xmlDeckScanner) numericElement(name string) error {
	if err := s.expect("<", name, ">"); err != nil {
		return err
	}
	if _, err := s.match(xmlDigitsPattern, name+" value"); err != nil {
		return err
	}
	return s.expect("</", name, ">")
}

// card reads one <Cards .../> element. CatID is optional; attributes after
// Name (newer clients write Annotation) are read and ignored.
func (s *xmlDeckScanner) card() (models.Card, bool, error) {
	if err := s.expect("<"); err != nil {
		return models.Card{}, false, err
	}
	if _, err := s.match(xmlCardTagPattern, "Cards"); err != nil {
		return models.Card{}, false, err
	}

	mtgoID := 0
	if s.peek("CatID") {
		id, err := s.numberAttribute("CatID")
		if err != nil {
			return models.Card{}, false, err
		}
		mtgoID = id
	}

	quantity, err := s.numberAttribute("Quantity")
	if err != nil {
		return models.Card{}, false, err
	}

	sideboard, err := s.attribute("Sideboard", xmlBooleanPattern)
	if err != nil {
		return models.Card{}, false, err
	}

	name, err := s.attribute("Name", xmlCardNamePattern)
	if err != nil {
		return models.Card{}, false, err
	}

	for !s.peek("/>") {
		attr, err := s.match(xmlAttrNamePattern, "attribute or />")
		if err != nil {
			return models.Card{}, false, err
		}
		if _, err := s.attribute("", xmlAttrValuePattern); err != nil {
			return models.Card{}, false, fmt.Errorf("attribute %s: %w", attr, err)
		}
	}
	if err := s.expect("/>"); err != nil {
		return models.Card{}, false, err
	}

	card := models.NewCard(xmlEntityDecoder.Replace(name), quantity, mtgoID)
	return card, !strings.EqualFold(sideboard, "false"), nil
}

// attribute reads `name="value"`. An empty name reads only `="value"`,
// for attributes whose name was already consumed.
func (s *xmlDeckScanner) attribute(name string, value *regexp.Regexp) (string, error) {
	tokens := []string{"=", `"`}
	if name != "" {
		tokens = append([]string{name}, tokens...)
	}
	if err := s.expect(tokens...); err != nil {
		return "", err
	}
	v, err := s.match(value, name+" value")
	if err != nil {
		return "", err
	}
	if err := s.expect(`"`); err != nil {
		return "", err
	}
	return v, nil
}

func (s *xmlDeckScanner) numberAttribute(name string) (int, error) {
	v, err := s.attribute(name, xmlDigitsPattern)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, s.errorf("%s value %q out of range", name, v)
	}
	return n, nil
}

func (s *xmlDeckScanner) skipSpace() {
	s.pos += len(s.src[s.pos:]) - len(strings.TrimLeftFunc(s.src[s.pos:], unicode.IsSpace))
}

func (s *xmlDeckScanner) peek(token string) bool {
	s.skipSpace()
	return strings.HasPrefix(s.src[s.pos:], token)
}

// expect consumes each literal token in order
func (s *xmlDeckScanner) expect(tokens ...string) error {
	for _, token := range tokens {
		if !s.peek(token) {
			return s.errorf("expected %q", token)
		}
		s.pos += len(token)
	}
	return nil
}

// match consumes the text matched by an anchored pattern. Patterns that
// accept the empty string (tag rest, attribute values) never fail.
func (s *xmlDeckScanner) match(pattern *regexp.Regexp, what string) (string, error) {
	s.skipSpace()
	loc := pattern.FindStringIndex(s.src[s.pos:])
	if loc == nil {
		return "", s.errorf("expected %s", what)
	}
	m := s.src[s.pos : s.pos+loc[1]]
	s.pos += loc[1]
	return m, nil
}

func (s *xmlDeckScanner) errorf(format string, args ...any) error {
	rest := s.src[s.pos:]
	if len(rest) > 20 {
		rest = rest[:20] + "..."
	}
	return &DecklistParseError{
		Format: DecklistFormatXML,
		Line:   strings.Count(s.src[:s.pos], "\n") + 1,
		Reason: fmt.Sprintf(format, args...) + fmt.Sprintf(" at %q", rest),
	}
}

// FormatDecklistXML renders an MTGO .dek file. CatID is written only for
// cards that carry an MTGO id.
func FormatDecklistXML(d models.Decklist) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<Deck xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` + "\n")
	b.WriteString("  <NetDeckID>0</NetDeckID>\n")
	b.WriteString("  <PreconstructedDeckID>0</PreconstructedDeckID>\n")
	write := func(cards []models.Card, sideboard bool) {
		for _, c := range cards {
			b.WriteString("  <Cards ")
			if c.MTGOID > 0 {
				fmt.Fprintf(&b, `CatID="%d" `, c.MTGOID)
			}
			fmt.Fprintf(&b, `Quantity="%d" Sideboard="%t" Name="%s" />`+"\n", c.Quantity, sideboard, xmlEntityEncoder.Replace(c.Name))
		}
	}
	write(d.Main, false)
	write(d.Sideboard, true)
	b.WriteString("</Deck>\n")
	return b.String()
}
