package misp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ErrEventNotFound is returned when an event search by uuid yields nothing
var ErrEventNotFound = errors.New("event not found")

// API is the subset of the MISP REST API the bot uses
type API interface {
	SearchAttributes(ctx context.Context, filter AttributeFilter) ([]Attribute, error)
	SearchEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	AddSighting(ctx context.Context, sighting Sighting) error
}

// Client talks to a MISP instance
type Client struct {
	client *resty.Client
}

// Ensure Client implements API
var _ API = (*Client)(nil)

// APIError is a non-2xx response from MISP
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MISP API returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client
type Options struct {
	URL        string
	Key        string
	VerifyCert bool
	Timeout    time.Duration
}

// NewClient creates a new MISP client
func NewClient(opts Options) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Authorization", opts.Key).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "MISP-Mastodon-Bot/1.0")

	if !opts.VerifyCert {
		logrus.Debug("MISP certificate verification disabled")
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{client: client}
}

type attributeSearchResponse struct {
	Response struct {
		Attribute []Attribute `json:"Attribute"`
	} `json:"response"`
}

type eventSearchResponse struct {
	Response []struct {
		Event Event `json:"Event"`
	} `json:"response"`
}

// SearchAttributes runs /attributes/restSearch
func (c *Client) SearchAttributes(ctx context.Context, filter AttributeFilter) ([]Attribute, error) {
	var searchResp attributeSearchResponse
	if err := c.post(ctx, "/attributes/restSearch", filter, &searchResp); err != nil {
		return nil, fmt.Errorf("attribute search failed: %w", err)
	}
	return searchResp.Response.Attribute, nil
}

// SearchEvents runs /events/restSearch
func (c *Client) SearchEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var searchResp eventSearchResponse
	if err := c.post(ctx, "/events/restSearch", filter, &searchResp); err != nil {
		return nil, fmt.Errorf("event search failed: %w", err)
	}

	events := make([]Event, 0, len(searchResp.Response))
	for _, item := range searchResp.Response {
		events = append(events, item.Event)
	}
	return events, nil
}

// AddSighting posts to /sightings/add
func (c *Client) AddSighting(ctx context.Context, sighting Sighting) error {
	if err := c.post(ctx, "/sightings/add", sighting, nil); err != nil {
		return fmt.Errorf("add sighting failed: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)

	if err != nil {
		return err
	}

	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse MISP response: %w", err)
	}
	return nil
}
