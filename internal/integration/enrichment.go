package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/logger"
)

// RateLimiter implements a token bucket rate limiter for API calls
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter with specified RPS and burst size
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rps,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(r.lastRefill).Seconds()
		r.tokens += elapsed * r.refillRate
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = now

		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// ArtistRepository is the persistence surface the enrichment client needs.
type ArtistRepository interface {
	ArtistsPendingEnrichment(limit int) ([]domain.Artist, error)
	MarkArtistEnriched(id int64, mbid, country, disambiguation string, enrichedAt time.Time) error
}

// MusicBrainzClient looks up artists against a MusicBrainz-compatible API
// and stores the returned identifiers. Lookups are rate limited (MusicBrainz
// asks for at most one request per second) and guarded by a circuit breaker.
type MusicBrainzClient struct {
	repo        ArtistRepository
	publisher   eventbus.Publisher
	httpClient  *http.Client
	baseURL     string
	rateLimiter *RateLimiter
	breaker     *CircuitBreaker
}

var _ ingest.ArtistEnrichmentClient = (*MusicBrainzClient)(nil)

// NewMusicBrainzClient creates an enrichment client. publisher may be nil.
func NewMusicBrainzClient(repo ArtistRepository, publisher eventbus.Publisher,
	baseURL string, rps float64, burst int) *MusicBrainzClient {
	return &MusicBrainzClient{
		repo:      repo,
		publisher: publisher,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		rateLimiter: NewRateLimiter(rps, burst),
		breaker:     NewCircuitBreaker(DefaultCircuitBreakerConfig()),
	}
}

// BreakerStats exposes circuit breaker statistics for monitoring.
func (c *MusicBrainzClient) BreakerStats() CircuitBreakerStats {
	return c.breaker.Stats()
}

// artistSearchResponse is the subset of the MusicBrainz artist search
// response we consume.
type artistSearchResponse struct {
	Artists []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Country        string `json:"country"`
		Disambiguation string `json:"disambiguation"`
		Score          int    `json:"score"`
	} `json:"artists"`
}

// FetchMissing looks up artists without external identifiers, best match
// first, and returns how many were updated. Individual lookup failures are
// logged and skipped; the pass aborts only on context cancellation or an
// open circuit.
func (c *MusicBrainzClient) FetchMissing(ctx context.Context, limit int) (int, error) {
	pending, err := c.repo.ArtistsPendingEnrichment(limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list artists pending enrichment: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	logger.Debugf("Enrichment: %d artists pending", len(pending))

	updated := 0
	for _, artist := range pending {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		if err := c.enrichOne(ctx, artist); err != nil {
			if err == ErrCircuitOpen {
				logger.Warnf("Enrichment: circuit open, aborting pass after %d updates", updated)
				return updated, err
			}
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			logger.Warnf("Enrichment: lookup failed for %s: %v", artist.Name, err)
			c.publishResult(domain.EnrichmentFailed, artist.Name, err.Error())
			continue
		}
		updated++
	}

	logger.Infof("Enrichment: updated %d of %d artists", updated, len(pending))
	return updated, nil
}

// enrichOne performs a single rate-limited lookup and persists the result.
func (c *MusicBrainzClient) enrichOne(ctx context.Context, artist domain.Artist) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	match, err := c.searchArtist(ctx, artist.Name)
	if err != nil {
		c.breaker.RecordFailure()
		return err
	}
	c.breaker.RecordSuccess()

	if match == nil {
		// No result is not an error; mark the artist so it is not retried
		// on every pass.
		return c.repo.MarkArtistEnriched(artist.ID, "", "", "", time.Now().UTC())
	}

	if err := c.repo.MarkArtistEnriched(artist.ID, match.ID, match.Country,
		match.Disambiguation, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store enrichment for %s: %w", artist.Name, err)
	}
	c.publishResult(domain.EnrichmentCompleted, artist.Name, "")
	return nil
}

type artistMatch struct {
	ID             string
	Country        string
	Disambiguation string
}

// searchArtist queries the artist search endpoint and returns the best
// match, or nil when the API has no result.
func (c *MusicBrainzClient) searchArtist(ctx context.Context, name string) (*artistMatch, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("artist:%q", name))
	query.Set("fmt", "json")
	query.Set("limit", "1")
	endpoint := fmt.Sprintf("%s/artist?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Melodarr/1.0 (https://github.com/mescon/Melodarr)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("artist search returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed artistSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode artist search response: %w", err)
	}
	if len(parsed.Artists) == 0 {
		return nil, nil
	}

	best := parsed.Artists[0]
	return &artistMatch{
		ID:             best.ID,
		Country:        best.Country,
		Disambiguation: best.Disambiguation,
	}, nil
}

func (c *MusicBrainzClient) publishResult(eventType domain.EventType, artist, errMsg string) {
	if c.publisher == nil {
		return
	}
	data := map[string]interface{}{"artist": artist}
	if errMsg != "" {
		data["error"] = errMsg
	}
	if err := c.publisher.Publish(domain.Event{
		AggregateType: "artist",
		AggregateID:   artist,
		EventType:     eventType,
		EventData:     data,
	}); err != nil {
		logger.Errorf("Failed to publish %s event: %v", eventType, err)
	}
}
