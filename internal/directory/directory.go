// Package directory looks up passenger and driver profiles from the
// identity service. Strictly read-only; the engine works from ids alone
// and the API layer uses these lookups only to enrich responses.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Profile struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	PhotoURL string  `json:"photo_url"`
	Phone    string  `json:"phone"`
}

// Client performs profile lookups against the directory HTTP API.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (c *Client) Passenger(ctx context.Context, id string) (Profile, error) {
	return c.get(ctx, fmt.Sprintf("%s/passengers/%s", c.Endpoint, id))
}

func (c *Client) Driver(ctx context.Context, id string) (Profile, error) {
	return c.get(ctx, fmt.Sprintf("%s/drivers/%s", c.Endpoint, id))
}

func (c *Client) get(ctx context.Context, url string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("directory returned %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
