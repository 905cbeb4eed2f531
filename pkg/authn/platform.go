package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TokenCache is the subset of tokencache.Cache the platform-lookup
// authenticator needs.
type TokenCache interface {
	Get(ctx context.Context, token string) (teamID string, ok bool, err error)
	Put(ctx context.Context, token, teamID string) error
}

// Deps carries the collaborators a variant needs beyond its provider args.
// Only platform-lookup uses these; the others ignore them.
type Deps struct {
	Cache       TokenCache
	PlatformURL string
	HTTPClient  *http.Client
}

// PlatformLookup resolves a bearer token to a team_id via TokenCache,
// falling back to an external user-info endpoint on a cache miss and
// caching the result. Grounded on the original RCTFAuthProvider.
type PlatformLookup struct {
	cache      TokenCache
	platformURL string
	httpClient *http.Client
}

type platformUserResponse struct {
	Kind string `json:"kind"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewPlatformLookup builds a PlatformLookup authenticator. deps.PlatformURL
// is required.
func NewPlatformLookup(args map[string]string, deps Deps) (*PlatformLookup, error) {
	if deps.PlatformURL == "" {
		return nil, fmt.Errorf("auth_platform_url is required for platform-lookup auth provider")
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PlatformLookup{
		cache:       deps.Cache,
		platformURL: strings.TrimRight(deps.PlatformURL, "/"),
		httpClient:  client,
	}, nil
}

// Authenticate resolves the bearer token to a team_id.
func (p *PlatformLookup) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return "", errMissingToken()
	}

	if p.cache != nil {
		if teamID, ok, err := p.cache.Get(ctx, token); err == nil && ok {
			return teamID, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.platformURL+"/api/v1/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("building platform lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling auth platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errInvalidToken("invalid authorization token")
	}

	var body platformUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding auth platform response: %w", err)
	}

	if body.Kind != "goodUserData" && body.Kind != "goodUserSelfData" {
		return "", errInvalidToken("invalid authorization token")
	}
	if body.Data.ID == "" {
		return "", errInvalidToken("no team id associated with token")
	}

	if p.cache != nil {
		_ = p.cache.Put(ctx, token, body.Data.ID)
	}
	return body.Data.ID, nil
}
