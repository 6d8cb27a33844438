package movies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tjmcgrath/reelbase/internal/apperror"
	"github.com/tjmcgrath/reelbase/internal/config"
)

// ErrNoResults is returned by Search when the upstream found nothing for
// the term. It is a normal outcome, not an upstream failure, but it is
// never cached either.
var ErrNoResults = errors.New("no results")

// Client is the upstream metadata provider contract. The concrete
// implementation talks to OMDb; tests swap in a counting fake.
type Client interface {
	// Search runs a title search. mediaType is "movie", "series", or
	// "episode"; page is 1-based.
	Search(ctx context.Context, term, mediaType string, page int) (*SearchResult, error)
	// ByID fetches the full record for an IMDb ID. Returns a 404 apperror
	// when the ID is unknown upstream.
	ByID(ctx context.Context, imdbID string) (*MovieDetail, error)
}

// OMDb error strings that mean "nothing matched" rather than "the service
// is broken". Anything else with Response=False is treated as an upstream
// failure.
func isNotFoundResponse(omdbError string) bool {
	switch omdbError {
	case "Movie not found!", "Series not found!", "Incorrect IMDb ID.", "Error getting data.":
		return true
	}
	return false
}

// omdbSearchEnvelope is OMDb's search response wire shape. TotalResults
// arrives as a string.
type omdbSearchEnvelope struct {
	Search       []Movie `json:"Search"`
	TotalResults string  `json:"totalResults"`
	Response     string  `json:"Response"`
	Error        string  `json:"Error"`
}

// omdbDetailEnvelope is OMDb's by-ID response wire shape: the detail
// fields plus the Response/Error pair.
type omdbDetailEnvelope struct {
	MovieDetail
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// omdbClient implements Client against the real OMDb HTTP API.
type omdbClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewOMDbClient creates an OMDb API client with the configured base URL,
// key, and request timeout.
func NewOMDbClient(cfg config.OMDbConfig) Client {
	return &omdbClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *omdbClient) Search(ctx context.Context, term, mediaType string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("s", term)
	params.Set("type", mediaType)
	params.Set("page", strconv.Itoa(page))

	var envelope omdbSearchEnvelope
	if err := c.get(ctx, params, &envelope); err != nil {
		return nil, err
	}

	if envelope.Response != "True" {
		if isNotFoundResponse(envelope.Error) {
			return nil, ErrNoResults
		}
		return nil, apperror.NewBadGateway(fmt.Errorf("omdb search %q: %s", term, envelope.Error))
	}

	// totalResults is a decimal string; a parse failure just means we fall
	// back to the page length.
	total, err := strconv.Atoi(envelope.TotalResults)
	if err != nil {
		total = len(envelope.Search)
	}

	return &SearchResult{Movies: envelope.Search, Total: total}, nil
}

func (c *omdbClient) ByID(ctx context.Context, imdbID string) (*MovieDetail, error) {
	params := url.Values{}
	params.Set("i", imdbID)
	params.Set("plot", "short")

	var envelope omdbDetailEnvelope
	if err := c.get(ctx, params, &envelope); err != nil {
		return nil, err
	}

	if envelope.Response != "True" {
		if isNotFoundResponse(envelope.Error) {
			return nil, apperror.NewNotFound("movie not found")
		}
		return nil, apperror.NewBadGateway(fmt.Errorf("omdb lookup %q: %s", imdbID, envelope.Error))
	}

	return &envelope.MovieDetail, nil
}

// get performs one OMDb request and decodes the JSON body into out. The
// API key is appended here so it never appears in cache keys or logs.
func (c *omdbClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building omdb request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewBadGateway(fmt.Errorf("calling omdb: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperror.NewBadGateway(fmt.Errorf("omdb returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.NewBadGateway(fmt.Errorf("decoding omdb response: %w", err))
	}
	return nil
}
