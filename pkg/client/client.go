package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/chaskitbooks/chaskit/pkg/status"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultTimeout = 10 * time.Second

	apiKeyHeader = "apikey"
)

// ErrNotConfigured is returned by writes when the client has no endpoint or
// API key.
var ErrNotConfigured = errors.New("remote data service is not configured")

// APIError is an error response from the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the book API. A client built without a URL or API key is
// still usable: reads come back empty and writes fail with ErrNotConfigured.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	code, raw, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if code >= http.StatusBadRequest {
		return decodeError(code, raw)
	}

	if dst == nil || len(raw) == 0 {
		return nil
	}
	return errors.WithStack(json.Unmarshal(raw, dst))
}

// send performs a request and returns the status code and the raw response
// body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	if !c.Configured() {
		return 0, nil, ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.WithStack(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}
	return resp.StatusCode, raw, nil
}

func decodeError(code int, raw []byte) error {
	payload := struct {
		Error *APIError `json:"error"`
	}{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == nil {
		return &APIError{StatusCode: code, Code: "unexpected_response", Message: http.StatusText(code)}
	}
	return payload.Error
}

// read runs a GET request. When the client isn't configured it returns nil
// without touching dst so callers fall back to their empty values.
func (c *Client) read(ctx context.Context, path string, query url.Values, dst any) error {
	if !c.Configured() {
		return nil
	}
	err := c.do(ctx, http.MethodGet, path, query, nil, dst)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("remote read failed", logger.Data{"path": path})
	}
	return err
}

// Fetch returns one page of books matching q. It satisfies the source the
// feed pages through.
func (c *Client) Fetch(ctx context.Context, q browse.Query, offset, limit int) (browse.Page, error) {
	q = q.Normalize()
	params := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	setIf("search", q.Search)
	setIf("genre", q.Genre)
	if q.Year != 0 {
		params.Set("year", strconv.Itoa(q.Year))
	}
	setIf("which_witch", q.WhichWitch)
	params.Set("sort", string(q.Sort))
	params.Set("direction", string(q.Direction))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	page := browse.Page{Books: []*models.Book{}}
	if err := c.read(ctx, "/books", params, &page); err != nil {
		return browse.Page{Books: []*models.Book{}}, err
	}
	return page, nil
}

func (c *Client) Book(ctx context.Context, id string) (*models.Book, error) {
	book := &models.Book{}
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(id), nil, nil, book); err != nil {
		return nil, err
	}
	return book, nil
}

// BookInput is the body of a create request. Ratings left nil are N/A.
type BookInput struct {
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	CompletionMonth int             `json:"completion_month"`
	CompletionYear  int             `json:"completion_year"`
	Genres          []string        `json:"genres"`
	CoverImage      *string         `json:"cover_image,omitempty"`
	Ratings         ratings.Ratings `json:"ratings"`
	WhichWitch      string          `json:"which_witch"`
	IsStandalone    bool            `json:"is_standalone"`
	SeriesName      *string         `json:"series_name,omitempty"`
}

func (c *Client) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	book := &models.Book{}
	if err := c.do(ctx, http.MethodPost, "/books", nil, in, book); err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBook sends the changed fields of a book. The stored version must
// still equal version or the server answers 409.
func (c *Client) UpdateBook(ctx context.Context, id string, version int, changes map[string]any) (*models.Book, error) {
	body := make(map[string]any, len(changes)+1)
	for k, v := range changes {
		body[k] = v
	}
	body["version"] = version

	book := &models.Book{}
	if err := c.do(ctx, http.MethodPatch, "/books/"+url.PathEscape(id), nil, body, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, nil, nil)
}

type Stats struct {
	TotalBooks    int     `json:"total_books"`
	BooksThisYear int     `json:"books_this_year"`
	AverageRating float64 `json:"average_rating"`
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := c.read(ctx, "/books/stats", nil, stats); err != nil {
		return &Stats{}, err
	}
	return stats, nil
}

func (c *Client) Years(ctx context.Context) ([]int, error) {
	resp := struct {
		Years []int `json:"years"`
	}{[]int{}}
	if err := c.read(ctx, "/books/years", nil, &resp); err != nil {
		return []int{}, err
	}
	return resp.Years, nil
}

// Status asks the server for its connection report. An unconfigured or
// unreachable server is reported as disconnected rather than as an error.
func (c *Client) Status(ctx context.Context) *status.Status {
	if !c.Configured() {
		return &status.Status{Message: "Not configured", Components: map[string]string{}}
	}

	code, raw, err := c.send(ctx, http.MethodGet, "/status", nil, nil)
	if err == nil && code != http.StatusOK && code != http.StatusServiceUnavailable {
		err = decodeError(code, raw)
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("status check failed")
		return &status.Status{Message: err.Error(), Components: map[string]string{}}
	}

	// An unhealthy server still describes itself with a 503.
	st := &status.Status{}
	if err := json.Unmarshal(raw, st); err != nil {
		return &status.Status{Message: "Unreadable status response", Components: map[string]string{}}
	}
	return st
}
