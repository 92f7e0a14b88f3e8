// Package profiles resolves user addresses to display profiles. Resolution
// is an opaque external service; failures only ever cost the single update
// being enriched.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gosocial/realtime/internal/types"
)

type Resolver interface {
	Resolve(ctx context.Context, address string) (types.Profile, error)
}

const requestTimeout = 5 * time.Second

type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, address string) (types.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/profiles/%s", r.baseURL, url.PathEscape(address)), nil)
	if err != nil {
		return types.Profile{}, fmt.Errorf("new request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return types.Profile{}, fmt.Errorf("resolve profile %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Profile{}, fmt.Errorf("resolve profile %q: unexpected status %d", address, resp.StatusCode)
	}

	var profile types.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return types.Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return profile, nil
}
