package apiclient

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/domain"
)

// ConfigPage is one page of the config listing.
type ConfigPage struct {
	Items      []domain.ConfigSummary `json:"items"`
	NextCursor string                 `json:"next_cursor"`
	HasMore    bool                   `json:"has_more"`
}

// incrementConfigRequest is the upsert body for an increment key.
type incrementConfigRequest struct {
	Key string `json:"key"`
	domain.IncrementConfig
}

type snowflakeConfigRequest struct {
	Key string `json:"key"`
	domain.SnowflakeConfig
}

type formattedConfigRequest struct {
	Key string `json:"key"`
	domain.FormattedConfig
}

// SetIncrementConfig creates or updates the increment config for key.
// The server echoes the stored config with defaults applied.
func (c *Client) SetIncrementConfig(key string, cfg domain.IncrementConfig) (*domain.KeyConfig, error) {
	var stored domain.KeyConfig
	req := incrementConfigRequest{Key: key, IncrementConfig: cfg}
	if err := c.post("/v1/config/increment", req, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// SetSnowflakeConfig creates or updates the snowflake config for key.
func (c *Client) SetSnowflakeConfig(key string, cfg domain.SnowflakeConfig) (*domain.KeyConfig, error) {
	var stored domain.KeyConfig
	req := snowflakeConfigRequest{Key: key, SnowflakeConfig: cfg}
	if err := c.post("/v1/config/snowflake", req, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// SetFormattedConfig creates or updates the formatted config for key.
func (c *Client) SetFormattedConfig(key string, cfg domain.FormattedConfig) (*domain.KeyConfig, error) {
	var stored domain.KeyConfig
	req := formattedConfigRequest{Key: key, FormattedConfig: cfg}
	if err := c.post("/v1/config/formatted", req, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListConfigs returns one page of configured keys starting after the
// cursor. A zero size uses the server default.
func (c *Client) ListConfigs(from string, size int) (*ConfigPage, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	var page ConfigPage
	if err := c.get("/v1/config/list", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetConfig looks up a single key. Returns an IsNotFound error when the
// key has no config.
func (c *Client) GetConfig(key string) (*domain.ConfigSummary, error) {
	var page ConfigPage
	if err := c.get("/v1/config/list", url.Values{"key": {key}}, &page); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, &APIError{
			Code:       int(apierr.CodeNotFound),
			HTTPStatus: http.StatusNotFound,
			Message:    "no config for key " + key,
		}
	}
	return &page.Items[0], nil
}
