package dockergateway

import (
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// classify maps a raw docker-client error onto the Kind taxonomy callers
// branch on. Anything that isn't specifically NOT_FOUND or CONFLICT becomes
// INTERNAL, per the error-handling design.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case client.IsErrNotFound(err):
		return instancerr.Wrap(instancerr.NotFound, op, err)
	case errdefs.IsConflict(err):
		return instancerr.Wrap(instancerr.Conflict, op, err)
	default:
		return instancerr.Wrap(instancerr.Internal, op, err)
	}
}
