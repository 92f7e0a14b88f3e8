package comms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gosocial/realtime/internal/types"
)

const requestTimeout = 10 * time.Second

// HTTPClient talks to the signaling service's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *HTTPClient) GetCallCredentials(ctx context.Context, callId string, addresses []string) (map[string]types.Credentials, error) {
	body := struct {
		UserAddresses []string `json:"user_addresses"`
	}{UserAddresses: addresses}

	var resp struct {
		Credentials map[string]types.Credentials `json:"credentials"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/private-voice-chat/%s/credentials", url.PathEscape(callId)), body, &resp); err != nil {
		return nil, err
	}

	return resp.Credentials, nil
}

func (c *HTTPClient) EndCall(ctx context.Context, callId string) ([]string, error) {
	var resp struct {
		UsersInCall []string `json:"users_in_voice_chat"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/private-voice-chat/%s", url.PathEscape(callId)), nil, &resp); err != nil {
		return nil, err
	}

	return resp.UsersInCall, nil
}

func (c *HTTPClient) EndCallForUser(ctx context.Context, callId, address string) error {
	path := fmt.Sprintf("/private-voice-chat/%s/users/%s", url.PathEscape(callId), url.PathEscape(address))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) IsUserInCall(ctx context.Context, address string) (bool, error) {
	var resp struct {
		IsUserInVoiceChat bool `json:"is_user_in_voice_chat"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%s/voice-chat-status", url.PathEscape(address)), nil, &resp); err != nil {
		return false, err
	}

	return resp.IsUserInVoiceChat, nil
}

func (c *HTTPClient) IsCommunityCallActive(ctx context.Context, communityId string) (bool, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/community-voice-chat/%s/status", url.PathEscape(communityId)), nil, &resp); err != nil {
		return false, err
	}

	return resp.Active, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
