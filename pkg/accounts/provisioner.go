package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/genbaworks/tally/pkg/contracts"
)

// RESTProvisioner provisions login identities on a hosted identity
// provider over its JSON API.
type RESTProvisioner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTProvisioner creates a provisioner for the given identity provider
// endpoint.
func NewRESTProvisioner(baseURL, apiKey string) *RESTProvisioner {
	return &RESTProvisioner{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type identityResponse struct {
	ID string `json:"id"`
}

// CreateIdentity registers a login and returns the provider's identity ID
func (p *RESTProvisioner) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var identity identityResponse
	if err := p.do(ctx, http.MethodPost, "/v1/identities", body, &identity); err != nil {
		return "", &contracts.ExternalProviderError{Provider: "auth", Op: "create_identity", Err: err}
	}
	return identity.ID, nil
}

// DeleteIdentity removes a login, used to compensate failed activations
func (p *RESTProvisioner) DeleteIdentity(ctx context.Context, authID string) error {
	path := fmt.Sprintf("/v1/identities/%s", authID)
	if err := p.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return &contracts.ExternalProviderError{Provider: "auth", Op: "delete_identity", Err: err}
	}
	return nil
}

func (p *RESTProvisioner) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// LocalProvisioner mints identities locally instead of calling an identity
// provider. Used in deployments without an external auth system; the
// generated IDs are stable UUIDs so seat records still carry a usable
// AuthID.
type LocalProvisioner struct{}

// CreateIdentity returns a newly generated identity ID
func (p *LocalProvisioner) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	return "local-" + uuid.New().String(), nil
}

// DeleteIdentity is a no-op for locally minted identities
func (p *LocalProvisioner) DeleteIdentity(ctx context.Context, authID string) error {
	return nil
}
