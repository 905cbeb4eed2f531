package lifecycle

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/metrics"
)

// plan accumulates the artifacts created so far during a start attempt, so
// a single failure path can compensate in reverse creation order instead of
// relying on exception unwinding. Rollback is best-effort: every step is
// independently attempted and errors are logged, never returned.
type plan struct {
	gateway      dockergateway.Gateway
	containerIDs []string
	networkNames []string
}

func newPlan(gateway dockergateway.Gateway) *plan {
	return &plan{gateway: gateway}
}

func (p *plan) trackContainer(id string) {
	p.containerIDs = append(p.containerIDs, id)
}

func (p *plan) trackNetwork(name string) {
	p.networkNames = append(p.networkNames, name)
}

func (p *plan) rollback(ctx context.Context, logger zerolog.Logger) {
	metrics.InstanceRollbacksTotal.Inc()
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range p.containerIDs {
		id := id
		g.Go(func() error {
			if err := p.gateway.Containers().Delete(gctx, id, true); err != nil {
				logger.Warn().Err(err).Str("container", id).Msg("rollback: failed to delete container")
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := len(p.networkNames) - 1; i >= 0; i-- {
		name := p.networkNames[i]
		details, err := p.gateway.Networks().Inspect(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Str("network", name).Msg("rollback: failed to inspect network")
			continue
		}
		for containerID := range details.Containers {
			if err := p.gateway.Networks().Disconnect(ctx, name, containerID, true); err != nil {
				logger.Warn().Err(err).Str("network", name).Str("container", containerID).Msg("rollback: failed to disconnect container")
			}
		}
		if err := p.gateway.Networks().Delete(ctx, name); err != nil {
			logger.Warn().Err(err).Str("network", name).Msg("rollback: failed to delete network")
		}
	}
}
