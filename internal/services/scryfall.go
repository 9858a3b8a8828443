package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codyseavey/tix-calc/internal/metrics"
	"github.com/codyseavey/tix-calc/internal/models"
)

const (
	scryfallBaseURL   = "https://api.scryfall.com"
	scryfallUserAgent = "tix-calc/1.0"
)

// ScryfallService looks up card metadata (images, set, MTGO id)
type ScryfallService struct {
	client  *http.Client
	baseURL string
}

// NewScryfallService creates a Scryfall client. An empty baseURL uses the
// public API.
func NewScryfallService(baseURL string, timeout time.Duration) *ScryfallService {
	if baseURL == "" {
		baseURL = scryfallBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScryfallService{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type scryfallCard struct {
	ImageURIs *scryfallImages `json:"image_uris"`
	CardFaces []scryfallFace  `json:"card_faces"`
	Name      string          `json:"name"`
	Set       string          `json:"set"`
	MTGOID    int             `json:"mtgo_id"`
	Finishes  []string        `json:"finishes"`
}

type scryfallImages struct {
	Small  string `json:"small"`
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

type scryfallFace struct {
	ImageURIs *scryfallImages `json:"image_uris"`
}

// GetCardMetadata looks a card up by its normalized name.
// Returns nil, nil if Scryfall does not know the card (404).
func (s *ScryfallService) GetCardMetadata(ctx context.Context, normalizedName string) (*models.CardMetadata, error) {
	params := url.Values{}
	params.Set("fuzzy", strings.ReplaceAll(normalizedName, "-", " "))
	reqURL := fmt.Sprintf("%s/cards/named?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", scryfallUserAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.RemoteFetchDuration.WithLabelValues("scryfall").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteFetchesTotal.WithLabelValues("scryfall", "failed").Inc()
		return nil, fmt.Errorf("%w: failed to get card from scryfall: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.RemoteFetchesTotal.WithLabelValues("scryfall", "success").Inc()
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteFetchesTotal.WithLabelValues("scryfall", "failed").Inc()
		return nil, fmt.Errorf("%w: scryfall API returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var sc scryfallCard
	if err := json.NewDecoder(resp.Body).Decode(&sc); err != nil {
		metrics.RemoteFetchesTotal.WithLabelValues("scryfall", "failed").Inc()
		return nil, fmt.Errorf("%w: failed to decode scryfall response: %v", ErrSourceUnavailable, err)
	}

	metrics.RemoteFetchesTotal.WithLabelValues("scryfall", "success").Inc()
	meta := s.convertToMetadata(sc)
	return &meta, nil
}

// convertToMetadata keeps the small image of the card, or of every face for
// double-faced cards that have no top-level image
func (s *ScryfallService) convertToMetadata(sc scryfallCard) models.CardMetadata {
	var images []string
	if sc.ImageURIs != nil && sc.ImageURIs.Small != "" {
		images = append(images, sc.ImageURIs.Small)
	} else {
		for _, face := range sc.CardFaces {
			if face.ImageURIs != nil && face.ImageURIs.Small != "" {
				images = append(images, face.ImageURIs.Small)
			}
		}
	}

	return models.CardMetadata{
		ImageURLs: images,
		SetCode:   sc.Set,
		MTGOID:    sc.MTGOID,
		Foil:      len(sc.Finishes) == 1 && sc.Finishes[0] == "foil",
	}
}
