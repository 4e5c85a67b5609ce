package apiclient

// HealthStatus is the liveness response.
type HealthStatus struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
}

// ReadyStatus is the readiness response.
type ReadyStatus struct {
	Backend string `json:"backend"`
	Latency string `json:"latency"`
}

// Health returns the server liveness status.
func (c *Client) Health() (*HealthStatus, error) {
	var status HealthStatus
	if err := c.get("/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ready returns the server readiness status, including a storage
// round-trip.
func (c *Client) Ready() (*ReadyStatus, error) {
	var status ReadyStatus
	if err := c.get("/ready", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
