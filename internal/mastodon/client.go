package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrAccountNotFound is returned when the bot account cannot be resolved
var ErrAccountNotFound = errors.New("account not found")

// Client talks to the Mastodon REST API on behalf of the bot account
type Client struct {
	client      *resty.Client
	maxMentions int
}

// APIError is a non-2xx response from Mastodon
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon API returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client
type Options struct {
	BaseURL     string
	AccessToken string
	MaxMentions int
	Timeout     time.Duration
}

// NewClient creates a new Mastodon client
func NewClient(opts Options) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetTimeout(opts.Timeout).
			SetAuthToken(opts.AccessToken).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "MISP-Mastodon-Bot/1.0"),
		maxMentions: opts.MaxMentions,
	}
}

// ResolveAccount looks the bot account up by username
func (c *Client) ResolveAccount(ctx context.Context, username string) (*models.Account, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     username,
			"limit": "1",
		}).
		Get("/api/v1/accounts/search")

	if err != nil {
		return nil, fmt.Errorf("account search failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var accounts []models.Account
	if err := json.Unmarshal(resp.Body(), &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse account search response: %w", err)
	}

	if len(accounts) == 0 || accounts[0].ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}

	logrus.Debugf("Found account ID %s for %s", accounts[0].ID, username)
	return &accounts[0], nil
}

// FetchMentions returns the most recent mention notifications
func (c *Client) FetchMentions(ctx context.Context) ([]models.Notification, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(url.Values{
			"types[]": {"mention"},
			"limit":   {strconv.Itoa(c.maxMentions)},
		}).
		Get("/api/v1/notifications")

	if err != nil {
		return nil, fmt.Errorf("notification fetch failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var notifications []models.Notification
	if err := json.Unmarshal(resp.Body(), &notifications); err != nil {
		return nil, fmt.Errorf("failed to parse notifications: %w", err)
	}

	return notifications, nil
}

// PostReply posts text as a reply to the given status
func (c *Client) PostReply(ctx context.Context, text, inReplyToID, visibility string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"status":         text,
			"in_reply_to_id": inReplyToID,
			"visibility":     visibility,
		}).
		Post("/api/v1/statuses")

	if err != nil {
		return fmt.Errorf("status post failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// DismissNotification clears a notification. Already dismissed ids are not an error.
func (c *Client) DismissNotification(ctx context.Context, id string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Post("/api/v1/notifications/{id}/dismiss")

	if err != nil {
		return fmt.Errorf("dismiss failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		logrus.Debugf("Notification %s already dismissed", id)
		return nil
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
