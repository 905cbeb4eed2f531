// Package authn resolves an incoming HTTP request to a team_id, the only
// identity concept the lifecycle core understands. Exactly one variant is
// selected once at startup by configuration; there is no runtime
// reconfiguration and no variant reads anything the others don't expose
// through this package's shared Authenticator interface.
package authn

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// Authenticator resolves a request to a team_id, or fails with
// UNAUTHENTICATED (missing credential) or FORBIDDEN (invalid credential).
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (teamID string, err error)
}

// ExtractBearerToken pulls the bearer token out of the Authorization
// header, returning "" if the header is absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// ParseProviderArgs parses the AUTH_PROVIDER_ARGS configuration value,
// a comma-separated list of key=value pairs (e.g.
// "secret=xyz" or "rctf_url=https://rctf.example.org").
func ParseProviderArgs(raw string) map[string]string {
	args := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		args[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return args
}

// New builds the configured Authenticator variant. provider is one of
// "local", "bearer-jwt", "platform-lookup".
func New(provider string, args map[string]string, deps Deps) (Authenticator, error) {
	switch provider {
	case "local":
		return NewLocal(args), nil
	case "bearer-jwt":
		return NewJWT(args)
	case "platform-lookup":
		return NewPlatformLookup(args, deps)
	default:
		return nil, fmt.Errorf("unsupported auth_provider %q", provider)
	}
}

// errMissingToken/errInvalidToken are the shared classified errors every
// bearer-token-based variant returns for the same two failure shapes.
func errMissingToken() error {
	return instancerr.New(instancerr.Unauthenticated, "authorization token is missing")
}

func errInvalidToken(msg string) error {
	return instancerr.New(instancerr.Forbidden, msg)
}
