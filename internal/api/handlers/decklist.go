package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tix-calc/internal/models"
	"github.com/codyseavey/tix-calc/internal/services"
)

// DeckValuator prices a parsed decklist
type DeckValuator interface {
	Value(ctx context.Context, decklist models.Decklist, asOf time.Time) models.ValuedDecklist
}

type DecklistHandler struct {
	valuator DeckValuator
	now      func() time.Time
}

func NewDecklistHandler(valuator DeckValuator) *DecklistHandler {
	return &DecklistHandler{
		valuator: valuator,
		now:      time.Now,
	}
}

// CalculateRequest is the POST body of /api/calc
type CalculateRequest struct {
	Decklist string `json:"decklist"`
	Date     string `json:"date"`
}

// ParseRequest is the POST body of /api/parse. To optionally re-renders the
// decklist as text, csv or xml.
type ParseRequest struct {
	Decklist string `json:"decklist"`
	To       string `json:"to"`
}

// Calculate values a decklist as of a date. GET reads the decklist and
// date query parameters; POST reads a CalculateRequest body.
func (h *DecklistHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		req.Decklist = decodeDecklistParam(c.Query("decklist"))
		req.Date = c.Query("date")
	}

	asOf, err := services.ParseValuationDate(req.Date, h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deck, err := services.ParseDecklist(req.Decklist)
	if err != nil {
		writeParseError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.valuator.Value(c.Request.Context(), deck, asOf))
}

// Parse returns the parsed decklist and the detected format without pricing
func (h *DecklistHandler) Parse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deck, err := services.ParseDecklist(req.Decklist)
	if err != nil {
		writeParseError(c, err)
		return
	}

	resp := gin.H{
		"format":     services.DetectDecklistFormat(req.Decklist),
		"decklist":   deck,
		"card_count": deck.CardCount(),
	}
	if req.To != "" {
		format := services.DecklistFormat(req.To)
		switch format {
		case services.DecklistFormatText, services.DecklistFormatCSV, services.DecklistFormatXML:
			resp["rendered"] = services.FormatDecklist(deck, format)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be one of text, csv, xml"})
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Preview renders the valued decklist as an HTML page. Malformed decklists
// render as an empty deck.
func (h *DecklistHandler) Preview(c *gin.Context) {
	asOf, err := services.ParseValuationDate(c.Query("date"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deck := services.ParseDecklistOrEmpty(decodeDecklistParam(c.Query("decklist")))
	valued := h.valuator.Value(c.Request.Context(), deck, asOf)

	page, err := services.RenderPreview(valued, c.DefaultQuery("name", services.DefaultPreviewName))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// decodeDecklistParam undoes a second round of percent-encoding that some
// clients apply to the decklist parameter. '+' is left alone since card
// names can contain it.
func decodeDecklistParam(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func writeParseError(c *gin.Context, err error) {
	var parseErr *services.DecklistParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"format": parseErr.Format,
			"line":   parseErr.Line,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
