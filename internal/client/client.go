package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/userdir/userdir/internal/users"
)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Page is one page of the paginated listing
type Page struct {
	Users      []users.User
	Pagination users.Pagination
}

// envelope mirrors users.Envelope with a raw data payload
type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Error      string            `json:"error"`
	Pagination *users.Pagination `json:"pagination"`
}

// Client talks to the user directory API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:50000
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches one page of users ordered by id
func (c *Client) List(ctx context.Context, page, pageSize int) (*Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))

	env, err := c.do(ctx, http.MethodGet, "/users", query, nil)
	if err != nil {
		return nil, err
	}

	result := &Page{}
	if err := decodeData(env, &result.Users); err != nil {
		return nil, err
	}
	if env.Pagination != nil {
		result.Pagination = *env.Pagination
	}
	return result, nil
}

// Create adds a user and returns it with its assigned id
func (c *Client) Create(ctx context.Context, req *users.CreateUserRequest) (*users.User, error) {
	env, err := c.do(ctx, http.MethodPost, "/users", nil, req)
	if err != nil {
		return nil, err
	}

	var user users.User
	if err := decodeData(env, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a partial update and returns the stored record
func (c *Client) Update(ctx context.Context, id int64, req *users.UpdateUserRequest) (*users.User, error) {
	env, err := c.do(ctx, http.MethodPut, "/users/"+strconv.FormatInt(id, 10), nil, req)
	if err != nil {
		return nil, err
	}

	var user users.User
	if err := decodeData(env, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes a user. Unknown ids are not an error.
func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), nil, nil)
	return err
}

// Search returns users matching term
func (c *Client) Search(ctx context.Context, term string) ([]users.User, error) {
	query := url.Values{}
	query.Set("q", term)

	env, err := c.do(ctx, http.MethodGet, "/users/search", query, nil)
	if err != nil {
		return nil, err
	}

	var result []users.User
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Sort returns every user ordered by field
func (c *Client) Sort(ctx context.Context, field string, order users.SortOrder) ([]users.User, error) {
	query := url.Values{}
	query.Set("field", field)
	if order != "" {
		query.Set("order", string(order))
	}

	env, err := c.do(ctx, http.MethodGet, "/users/sort", query, nil)
	if err != nil {
		return nil, err
	}

	var result []users.User
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*envelope, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return &envelope{Success: true}, nil
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		message := env.Error
		if message == "" {
			message = strings.TrimSpace(http.StatusText(resp.StatusCode))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	return &env, nil
}

func decodeData(env *envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
