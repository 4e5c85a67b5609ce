package apiclient

import "net/url"

// TokenGrant is the response to a token issue or reset.
type TokenGrant struct {
	Key     string `json:"key"`
	Token   string `json:"token"`
	Created bool   `json:"created"`
}

// VerifyAdmin checks that the client's token is the admin token.
func (c *Client) VerifyAdmin() error {
	return c.get("/v1/auth/verify", nil, nil)
}

// IssueToken issues a token for key. The plaintext token is returned
// only on first issue; when the key already has a token, Created is
// false and Token is empty. Use ResetToken to rotate a lost token.
func (c *Client) IssueToken(key string) (*TokenGrant, error) {
	var grant TokenGrant
	if err := c.get("/v1/auth/token", url.Values{"key": {key}}, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// ResetToken rotates the token for key. The previous token stops
// working immediately.
func (c *Client) ResetToken(key string) (*TokenGrant, error) {
	var grant TokenGrant
	if err := c.get("/v1/auth/tokenreset", url.Values{"key": {key}}, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}
