// Package client talks to a pointsd instance over its JSON API.
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
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid input")
	ErrBadStatus   = errors.New("bad status")
	ErrUnavailable = errors.New("pointsd unavailable")
)

type Card struct {
	ID            string  `json:"id"`
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Points        float64 `json:"points"`
	Price         float64 `json:"price"`
	ValuePerPoint float64 `json:"value_per_point"`
	BestDeal      bool    `json:"best_deal"`
	PriceDisplay  string  `json:"price_display"`
	ValueDisplay  string  `json:"value_display"`
}

type Tab struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type View struct {
	Tabs   []Tab   `json:"tabs"`
	Active *string `json:"active"`
	Items  []Card  `json:"items"`
	Empty  *struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"empty"`
}

type Mutation struct {
	Category string  `json:"category"`
	Active   *string `json:"active"`
	Item     *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"item"`
	Index   *int   `json:"index"`
	Warning string `json:"warning"`
}

type apiError struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *Client) View(ctx context.Context) (View, error) {
	var v View
	err := c.do(ctx, http.MethodGet, "/view", nil, &v)
	return v, err
}

func (c *Client) Select(ctx context.Context, category string) (View, error) {
	var v View
	err := c.do(ctx, http.MethodPut, "/active", map[string]string{"name": category}, &v)
	return v, err
}

// AddItem sends points and price as typed on the command line; the server
// parses and validates them.
func (c *Client) AddItem(ctx context.Context, category, name, points, price string) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodPost, "/categories/"+url.PathEscape(category)+"/items",
		map[string]string{"name": name, "points": points, "price": price}, &m)
	return m, err
}

func (c *Client) CreateCategory(ctx context.Context, category string) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodPost, "/categories", map[string]string{"name": category}, &m)
	return m, err
}

func (c *Client) UpdateItem(ctx context.Context, category, id, name, points, price string) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodPut, "/categories/"+url.PathEscape(category)+"/items/"+url.PathEscape(id),
		map[string]string{"name": name, "points": points, "price": price}, &m)
	return m, err
}

func (c *Client) DeleteItem(ctx context.Context, category, id string) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodDelete,
		"/categories/"+url.PathEscape(category)+"/items/"+url.PathEscape(id)+"?confirm=true", nil, &m)
	return m, err
}

func (c *Client) DeleteCategory(ctx context.Context, category string) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(category)+"?confirm=true", nil, &m)
	return m, err
}

// Reset drops the whole catalog.
func (c *Client) Reset(ctx context.Context) (Mutation, error) {
	var m Mutation
	err := c.do(ctx, http.MethodDelete, "/catalog?confirm=true", nil, &m)
	return m, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var ae apiError
	_ = json.NewDecoder(resp.Body).Decode(&ae)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s %v", ErrInvalid, ae.Error, ae.Details)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, ae.Error)
	default:
		return fmt.Errorf("%w: status=%d %s", ErrBadStatus, resp.StatusCode, ae.Error)
	}
}
