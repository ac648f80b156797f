package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// Ping checks that the realm answers its OpenID discovery document.
func (c *SDKClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Issuer()+"/.well-known/openid-configuration", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("authsdk: realm unreachable: %w", err)
	}
	return checkStatusOK(resp)
}
