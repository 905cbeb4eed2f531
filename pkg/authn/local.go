package authn

import (
	"context"
	"net/http"
)

// Local is the fixed-identity authenticator: every request resolves to the
// same team_id, taken from provider args (key "team_id") or "local" if
// unset. Grounded on the original LocalAuthProvider, which always returned
// "local"; this generalizes it to the configured AUTH_PROVIDER_ARGS so a
// single-team local deployment can name itself.
type Local struct {
	teamID string
}

// NewLocal builds a Local authenticator.
func NewLocal(args map[string]string) *Local {
	teamID := args["team_id"]
	if teamID == "" {
		teamID = "local"
	}
	return &Local{teamID: teamID}
}

// Authenticate always succeeds with the configured team_id.
func (l *Local) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	return l.teamID, nil
}
