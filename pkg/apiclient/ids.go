package apiclient

import (
	"net/url"
	"strconv"
	"time"
)

// SnowflakeDescriptor is the snowflake layout plus the worker id leased
// to this client. IDs are packed client-side; the server only hands out
// the layout and the lease.
type SnowflakeDescriptor struct {
	SkipSize       uint8     `json:"skip_size"`
	BaseTS         int64     `json:"base_ts"`
	TSSize         uint8     `json:"ts_size"`
	WorkerID       int       `json:"worker_id"`
	WorkerIDSize   uint8     `json:"worker_id_size"`
	SeqSize        uint8     `json:"seq_size"`
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
}

// GenerateIncrement generates size increment IDs for key. A zero size
// requests one ID. A zero delta uses the key's configured delta.
func (c *Client) GenerateIncrement(key string, size int64, delta int64, randDelta bool) ([]int64, error) {
	query := url.Values{"key": {key}}
	if size > 0 {
		query.Set("size", strconv.FormatInt(size, 10))
	}
	if delta > 0 {
		query.Set("delta", strconv.FormatInt(delta, 10))
	}
	if randDelta {
		query.Set("rand_delta", "true")
	}

	var resp struct {
		ID []int64 `json:"id"`
	}
	if err := c.get("/v1/id/increment", query, &resp); err != nil {
		return nil, err
	}
	return resp.ID, nil
}

// DescribeSnowflake returns the snowflake descriptor for key. The
// fingerprint identifies the lease holder; repeat calls with the same
// fingerprint renew the lease and keep the worker id. An empty
// fingerprint lets the server fall back to the client IP.
func (c *Client) DescribeSnowflake(key, fingerprint string) (*SnowflakeDescriptor, error) {
	query := url.Values{"key": {key}}
	if fingerprint != "" {
		query.Set("fingerprint", fingerprint)
	}

	var desc SnowflakeDescriptor
	if err := c.get("/v1/id/snowflake", query, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// GenerateFormatted generates size formatted IDs for key. A zero size
// requests one ID.
func (c *Client) GenerateFormatted(key string, size int64) ([]string, error) {
	query := url.Values{"key": {key}}
	if size > 0 {
		query.Set("size", strconv.FormatInt(size, 10))
	}

	var resp struct {
		ID []string `json:"id"`
	}
	if err := c.get("/v1/id/formatted", query, &resp); err != nil {
		return nil, err
	}
	return resp.ID, nil
}
