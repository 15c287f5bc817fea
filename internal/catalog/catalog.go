// Package catalog talks to the Google Books volumes API and reshapes its
// responses into Book values. Responses are cached when a Cache is supplied.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"readinghub/backend/internal/lib/sl"

	"github.com/tidwall/gjson"
)

const maxPageSize = 40 // Google Books caps maxResults at 40

var (
	ErrNotFound = errors.New("catalog: volume not found")
	ErrUpstream = errors.New("catalog: upstream error")
)

// Book is a catalog volume reshaped for API clients.
type Book struct {
	GoogleID      string   `json:"googleId"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	PageCount     int      `json:"pageCount"`
	Categories    []string `json:"categories"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Language      string   `json:"language,omitempty"`
	AverageRating float64  `json:"averageRating,omitempty"`
	RatingsCount  int      `json:"ratingsCount,omitempty"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	TotalItems int    `json:"totalItems"`
	Items      []Book `json:"items"`
}

// Cache is the subset of the redis cache the client needs.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type Options struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
	Cache    Cache // optional
	HTTP     *http.Client
	Logger   *slog.Logger
}

type Client struct {
	baseURL  string
	apiKey   string
	cacheTTL time.Duration
	cache    Cache
	http     *http.Client
	log      *slog.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		cacheTTL: ttl,
		cache:    opts.Cache,
		http:     httpClient,
		log:      logger,
	}
}

// Search runs a volumes query. startIndex is zero based.
func (c *Client) Search(ctx context.Context, query string, startIndex, maxResults int) (*SearchResult, error) {
	const op = "catalog.Search"
	query = strings.TrimSpace(query)
	if query == "" {
		return &SearchResult{Items: []Book{}}, nil
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if maxResults <= 0 || maxResults > maxPageSize {
		maxResults = maxPageSize
	}

	key := fmt.Sprintf("catalog:search:%s:%d:%d", strings.ToLower(query), startIndex, maxResults)
	var cached SearchResult
	if c.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("startIndex", strconv.Itoa(startIndex))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")

	body, err := c.get(ctx, "/volumes", params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := parseSearch(body)
	c.toCache(ctx, key, result)
	return result, nil
}

// Volume fetches a single volume by its Google Books id.
func (c *Client) Volume(ctx context.Context, id string) (*Book, error) {
	const op = "catalog.Volume"
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	key := volumeKey(id)
	var cached Book
	if c.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	body, err := c.get(ctx, "/volumes/"+url.PathEscape(id), url.Values{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	volume := gjson.ParseBytes(body)
	if !volume.Get("id").Exists() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	book := parseVolume(volume)
	c.toCache(ctx, key, book)
	return &book, nil
}

// RefreshVolume drops the cached copy of a volume and fetches it again.
func (c *Client) RefreshVolume(ctx context.Context, id string) (*Book, error) {
	id = strings.TrimSpace(id)
	if c.cache != nil && id != "" {
		if err := c.cache.Invalidate(ctx, volumeKey(id)); err != nil {
			c.log.Warn("catalog cache invalidate failed", slog.String("key", volumeKey(id)), sl.Err(err))
		}
	}
	return c.Volume(ctx, id)
}

func volumeKey(id string) string {
	return "catalog:volume:" + id
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		msg := gjson.GetBytes(body, "error.message").String()
		return nil, fmt.Errorf("%w: status %d %s", ErrUpstream, resp.StatusCode, msg)
	}
	return body, nil
}

func (c *Client) fromCache(ctx context.Context, key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	found, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.log.Warn("catalog cache read failed", slog.String("key", key), sl.Err(err))
		return false
	}
	return found
}

func (c *Client) toCache(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, c.cacheTTL); err != nil {
		c.log.Warn("catalog cache write failed", slog.String("key", key), sl.Err(err))
	}
}

func parseSearch(body []byte) *SearchResult {
	result := &SearchResult{
		TotalItems: int(gjson.GetBytes(body, "totalItems").Int()),
		Items:      []Book{},
	}
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		result.Items = append(result.Items, parseVolume(item))
		return true
	})
	return result
}

func parseVolume(v gjson.Result) Book {
	info := v.Get("volumeInfo")
	book := Book{
		GoogleID:      v.Get("id").String(),
		Title:         info.Get("title").String(),
		Subtitle:      info.Get("subtitle").String(),
		Authors:       stringList(info.Get("authors")),
		Description:   info.Get("description").String(),
		Publisher:     info.Get("publisher").String(),
		PublishedDate: info.Get("publishedDate").String(),
		PageCount:     int(info.Get("pageCount").Int()),
		Categories:    stringList(info.Get("categories")),
		Language:      info.Get("language").String(),
		AverageRating: info.Get("averageRating").Float(),
		RatingsCount:  int(info.Get("ratingsCount").Int()),
		ISBN:          isbn(info.Get("industryIdentifiers")),
	}

	thumb := info.Get("imageLinks.thumbnail").String()
	if thumb == "" {
		thumb = info.Get("imageLinks.smallThumbnail").String()
	}
	book.Thumbnail = strings.Replace(thumb, "http://", "https://", 1)

	if book.Title == "" {
		book.Title = "Untitled"
	}
	return book
}

// isbn prefers ISBN_13 over ISBN_10.
func isbn(ids gjson.Result) string {
	var isbn10 string
	for _, id := range ids.Array() {
		switch id.Get("type").String() {
		case "ISBN_13":
			return id.Get("identifier").String()
		case "ISBN_10":
			isbn10 = id.Get("identifier").String()
		}
	}
	return isbn10
}

func stringList(r gjson.Result) []string {
	out := []string{}
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
