package gateway

import (
	"context"
	"net/http"

	"github.com/farmconnect/marketplace/internal/identity"
)

// forwardedHeaders are copied to the upstream request. Identity headers are
// only present once Authenticate has replaced the client's values.
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	identity.HeaderUserID,
	identity.HeaderUserName,
	identity.HeaderUserEmail,
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest sends r to target, a path with optional query, on the
// upstream service.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, p.baseURL+target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, key := range forwardedHeaders {
		if val := r.Header.Get(key); val != "" {
			req.Header.Set(key, val)
		}
	}

	return p.client.Do(req)
}
