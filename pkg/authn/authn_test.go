package authn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

func TestLocalDefaultsToLocalTeamID(t *testing.T) {
	auth := NewLocal(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	teamID, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "local", teamID)
}

func TestLocalUsesConfiguredTeamID(t *testing.T) {
	auth := NewLocal(map[string]string{"team_id": "team-a"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	teamID, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "team-a", teamID)
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTMissingToken(t *testing.T) {
	auth, err := NewJWT(map[string]string{"secret": "shh"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = auth.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, instancerr.Unauthenticated, instancerr.KindOf(err))
}

func TestJWTValidToken(t *testing.T) {
	auth, err := NewJWT(map[string]string{"secret": "shh"})
	require.NoError(t, err)

	token := signedToken(t, "shh", jwt.MapClaims{"team_id": "team-a"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	teamID, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "team-a", teamID)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	auth, err := NewJWT(map[string]string{"secret": "shh"})
	require.NoError(t, err)

	token := signedToken(t, "wrong-secret", jwt.MapClaims{"team_id": "team-a"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = auth.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, instancerr.Forbidden, instancerr.KindOf(err))
}

func TestJWTRejectsMissingTeamID(t *testing.T) {
	auth, err := NewJWT(map[string]string{"secret": "shh"})
	require.NoError(t, err)

	token := signedToken(t, "shh", jwt.MapClaims{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = auth.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, instancerr.Forbidden, instancerr.KindOf(err))
}

func TestJWTRequiresSecretArg(t *testing.T) {
	_, err := NewJWT(map[string]string{})
	require.Error(t, err)
}

type memCache struct {
	data map[string]string
}

func (m *memCache) Get(ctx context.Context, token string) (string, bool, error) {
	v, ok := m.data[token]
	return v, ok, nil
}

func (m *memCache) Put(ctx context.Context, token, teamID string) error {
	m.data[token] = teamID
	return nil
}

func TestPlatformLookupCacheHit(t *testing.T) {
	cache := &memCache{data: map[string]string{"tok-1": "team-a"}}
	auth, err := NewPlatformLookup(nil, Deps{Cache: cache, PlatformURL: "http://unused.invalid"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-1")

	teamID, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "team-a", teamID)
}

func TestPlatformLookupCacheMissQueriesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/me", r.URL.Path)
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "goodUserData",
			"data": map[string]string{"id": "team-b"},
		})
	}))
	defer srv.Close()

	cache := &memCache{data: map[string]string{}}
	auth, err := NewPlatformLookup(nil, Deps{Cache: cache, PlatformURL: srv.URL})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-2")

	teamID, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "team-b", teamID)
	assert.Equal(t, "team-b", cache.data["tok-2"])
}

func TestPlatformLookupUpstreamRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	auth, err := NewPlatformLookup(nil, Deps{Cache: &memCache{data: map[string]string{}}, PlatformURL: srv.URL})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-3")

	_, err = auth.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, instancerr.Forbidden, instancerr.KindOf(err))
}

func TestParseProviderArgs(t *testing.T) {
	args := ParseProviderArgs("secret=xyz, rctf_url=https://example.org")
	assert.Equal(t, "xyz", args["secret"])
	assert.Equal(t, "https://example.org", args["rctf_url"])
}
