package apiclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/dropzone-client/securestore"
)

const (
	HeaderAPIKey        = "x-api-key"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"

	ContentTypeJSON = "application/json"
)

// Hook runs against every outgoing attempt just before it is sent.
// A hook error aborts the request without a network call.
type Hook func(ctx context.Context, req *http.Request) error

// chainHooks composes hooks into one, applied in order.
func chainHooks(hooks ...Hook) Hook {
	return func(ctx context.Context, req *http.Request) error {
		for _, h := range hooks {
			if err := h(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}
}

// bearerTokenHook reads the access token at send time so a refresh that
// completes after the client was built is used by the next request.
// A storage read failure sends the request unauthenticated.
func (c *Client) bearerTokenHook(ctx context.Context, req *http.Request) error {
	token, ok, err := c.store.Get(ctx, securestore.KeyAuthToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("apiclient: access token read failed, sending unauthenticated")
		req.Header.Del(HeaderAuthorization)
		return nil
	}
	if ok && token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	return nil
}

func (c *Client) apiKeyHook(_ context.Context, req *http.Request) error {
	req.Header.Set(HeaderAPIKey, c.apiKey)
	return nil
}

func contentTypeHook(_ context.Context, req *http.Request) error {
	if req.Method == http.MethodGet {
		req.Header.Del(HeaderContentType)
		return nil
	}
	if hasBody(req) && req.Header.Get(HeaderContentType) == "" {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}
	return nil
}

func requestIDHook(_ context.Context, req *http.Request) error {
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	return nil
}

func hasBody(req *http.Request) bool {
	return req.Body != nil && req.Body != http.NoBody
}
