package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjmcgrath/reelbase/internal/apperror"
)

// genreShelves is the fixed set of browse categories on the home screen.
// Each genre name doubles as the upstream search term.
var genreShelves = []string{
	"Action", "Adventure", "Animation", "Comedy",
	"Crime", "Drama", "Horror", "Sci-Fi",
}

// trendingSeeds are the search terms behind the trending shelf, one per
// page. OMDb has no popularity endpoint, so trending is a curated
// rotation of high-traffic franchises.
var trendingSeeds = []string{
	"Avengers", "Batman", "Star Wars", "Spider-Man",
	"Jurassic", "Mission Impossible", "Harry Potter", "Matrix",
}

// MovieService defines the business logic contract for movie browsing.
type MovieService interface {
	Search(ctx context.Context, term, mediaType string, page int) (*SearchResult, error)
	List(ctx context.Context, genre, year, mediaType string, page int) (*SearchResult, error)
	Trending(ctx context.Context, page int) (*SearchResult, error)
	Genres(ctx context.Context) (map[string][]Movie, error)
	ByID(ctx context.Context, imdbID string) (*MovieDetail, error)
}

// movieService implements MovieService on top of the upstream client and
// the response cache.
type movieService struct {
	client Client
	cache  ResponseCache
}

// NewMovieService creates the movie browsing service.
func NewMovieService(client Client, cache ResponseCache) MovieService {
	return &movieService{client: client, cache: cache}
}

// Cache keys live in two disjoint namespaces so a search for a term that
// happens to look like an IMDb ID can never collide with a detail lookup.
func searchKey(term, mediaType string, page int) string {
	return fmt.Sprintf("search:%s:%s:%d", strings.ToLower(term), mediaType, page)
}

func idKey(imdbID string) string {
	return "id:" + imdbID
}

// Search handles free-text title search.
func (s *movieService) Search(ctx context.Context, term, mediaType string, page int) (*SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperror.NewBadRequest("search term is required")
	}
	return s.cachedSearch(ctx, term, normalizeType(mediaType), normalizePage(page))
}

// List returns a page of titles for a genre, optionally narrowed to a
// release year. OMDb has no genre filter on search, so the genre name is
// used as the search term and the year is applied to the results.
func (s *movieService) List(ctx context.Context, genre, year, mediaType string, page int) (*SearchResult, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil, apperror.NewBadRequest("genre is required")
	}

	result, err := s.cachedSearch(ctx, genre, normalizeType(mediaType), normalizePage(page))
	if err != nil {
		return nil, err
	}
	if year == "" {
		return result, nil
	}

	// Year values like "2012" or "2011-2015" both match on the prefix.
	filtered := make([]Movie, 0, len(result.Movies))
	for _, m := range result.Movies {
		if strings.HasPrefix(m.Year, year) {
			filtered = append(filtered, m)
		}
	}
	return &SearchResult{Movies: filtered, Total: len(filtered)}, nil
}

// Trending returns the trending shelf for a page.
func (s *movieService) Trending(ctx context.Context, page int) (*SearchResult, error) {
	page = normalizePage(page)
	seed := trendingSeeds[(page-1)%len(trendingSeeds)]
	return s.cachedSearch(ctx, seed, "movie", 1)
}

// Genres returns one shelf of titles per browse genre. A genre whose
// lookup fails comes back as an empty shelf rather than failing the whole
// response.
func (s *movieService) Genres(ctx context.Context) (map[string][]Movie, error) {
	shelves := make(map[string][]Movie, len(genreShelves))
	for _, genre := range genreShelves {
		result, err := s.cachedSearch(ctx, genre, "movie", 1)
		if err != nil {
			slog.Warn("genre shelf lookup failed", "genre", genre, "error", err)
			shelves[genre] = []Movie{}
			continue
		}
		shelves[genre] = result.Movies
	}
	return shelves, nil
}

// ByID returns the full record for one title.
func (s *movieService) ByID(ctx context.Context, imdbID string) (*MovieDetail, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, apperror.NewBadRequest("movie id is required")
	}

	key := idKey(imdbID)
	if data, ok := s.cache.Get(ctx, key); ok {
		detail := &MovieDetail{}
		if err := json.Unmarshal(data, detail); err == nil {
			return detail, nil
		}
		// A corrupt entry falls through to a fresh fetch.
	}

	detail, err := s.client.ByID(ctx, imdbID)
	if err != nil {
		// Not-found and upstream failures are never cached.
		return nil, err
	}

	s.store(ctx, key, detail)
	return detail, nil
}

// cachedSearch is the shared fetch path for every search-shaped endpoint:
// serve from cache when the window is still open, otherwise hit the
// upstream and cache only a successful result.
func (s *movieService) cachedSearch(ctx context.Context, term, mediaType string, page int) (*SearchResult, error) {
	key := searchKey(term, mediaType, page)
	if data, ok := s.cache.Get(ctx, key); ok {
		result := &SearchResult{}
		if err := json.Unmarshal(data, result); err == nil {
			return result, nil
		}
	}

	result, err := s.client.Search(ctx, term, mediaType, page)
	if err != nil {
		if err == ErrNoResults {
			// An empty page is a valid answer but not a cacheable one.
			return &SearchResult{Movies: []Movie{}, Total: 0}, nil
		}
		return nil, err
	}

	s.store(ctx, key, result)
	return result, nil
}

func (s *movieService) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("marshaling cache entry failed", "key", key, "error", err)
		return
	}
	s.cache.Set(ctx, key, data)
}

func normalizeType(mediaType string) string {
	switch mediaType {
	case "movie", "series", "episode":
		return mediaType
	default:
		return "movie"
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
