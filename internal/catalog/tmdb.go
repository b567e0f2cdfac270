package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/models"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// TMDBClient talks to the TMDB v3 API. TMDB has no anime type, anime ids are
// looked up as tv shows and keep their kind.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

type tmdbMedia struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	MediaType   string   `json:"media_type"`
	PosterPath  string   `json:"poster_path"`
	Overview    string   `json:"overview"`
	VoteAverage *float64 `json:"vote_average"`
	Popularity  *float64 `json:"popularity"`
}

type tmdbPage struct {
	Results []tmdbMedia `json:"results"`
}

func NewTMDBClient(apiKey, baseURL string, httpClient *http.Client) *TMDBClient {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TMDBClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        logging.Component("tmdb"),
	}
}

func (c *TMDBClient) Lookup(ctx context.Context, id int64, kind models.MediaKind) (*models.MediaItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidMediaID, id)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidKind, kind)
	}

	segment := "tv"
	if kind == models.KindMovie {
		segment = "movie"
	}

	var m tmdbMedia
	if err := c.get(ctx, "/"+segment+"/"+strconv.FormatInt(id, 10), nil, &m); err != nil {
		return nil, err
	}
	item := m.toItem(kind)
	return &item, nil
}

// Search runs a multi search and keeps movie and tv results.
func (c *TMDBClient) Search(ctx context.Context, query string) ([]models.MediaItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.MediaItem{}, nil
	}

	var page tmdbPage
	if err := c.get(ctx, "/search/multi", url.Values{"query": {query}}, &page); err != nil {
		return nil, err
	}

	out := make([]models.MediaItem, 0, len(page.Results))
	for _, m := range page.Results {
		switch m.MediaType {
		case "movie":
			out = append(out, m.toItem(models.KindMovie))
		case "tv":
			out = append(out, m.toItem(models.KindTV))
		}
	}
	return out, nil
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, dest any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error().Err(err).Msg("failed to close response body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Bytes("body", body).Msg("unexpected status")
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (m tmdbMedia) toItem(kind models.MediaKind) models.MediaItem {
	title := m.Title
	if title == "" {
		title = m.Name
	}
	return models.MediaItem{
		ID:          m.ID,
		Kind:        kind,
		Title:       title,
		PosterPath:  m.PosterPath,
		Overview:    m.Overview,
		VoteAverage: m.VoteAverage,
		Popularity:  m.Popularity,
	}
}
