// Package pruner implements the background loop that reclaims expired
// managed containers and networks. It runs independently of the request
// workers, discovering everything it needs to act on by label rather than
// through any shared in-process state - the daemon's label set is the only
// input.
package pruner

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/lifecycle"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/metrics"
)

// Stopper is the subset of lifecycle.Service the pruner needs: invoking the
// same stop path a caller would, so a reaped instance is torn down exactly
// as if a team had stopped it themselves.
type Stopper interface {
	Stop(ctx context.Context, challengeName, teamID string) (lifecycle.Instance, error)
}

// Options configures a Pruner.
type Options struct {
	ManagerName string
	Prefix      string
	Interval    time.Duration
}

// Pruner periodically sweeps managed containers and networks for expired
// ones and reclaims them.
type Pruner struct {
	gateway  dockergateway.Gateway
	stopper  Stopper
	clockNow func() time.Time
	opts     Options
}

// New builds a Pruner. now defaults to time.Now if nil.
func New(gateway dockergateway.Gateway, stopper Stopper, opts Options, now func() time.Time) *Pruner {
	if now == nil {
		now = time.Now
	}
	return &Pruner{gateway: gateway, stopper: stopper, clockNow: now, opts: opts}
}

// Run blocks, ticking every Interval until ctx is cancelled. It never
// terminates on error - a tick's failures are logged and the loop sleeps
// for the next one.
func (p *Pruner) Run(ctx context.Context) {
	logger := log.WithComponent("pruner")
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx, logger)
		}
	}
}

// Tick runs one sweep: reap expired containers (by invoking Stop on their
// key), then sweep any managed network whose expires_at label has passed.
func (p *Pruner) Tick(ctx context.Context, logger zerolog.Logger) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PrunerCycleDuration)

	p.sweepContainers(ctx, logger)
	p.sweepNetworks(ctx, logger)
}

func (p *Pruner) managedFilter() map[string]string {
	return map[string]string{lifecycle.LabelManagedBy: p.opts.ManagerName}
}

func (p *Pruner) sweepContainers(ctx context.Context, logger zerolog.Logger) {
	containers, err := p.gateway.Containers().List(ctx, p.managedFilter(), true, 0)
	if err != nil {
		logger.Error().Err(err).Msg("listing managed containers failed")
		return
	}

	now := p.clockNow().Unix()
	seen := map[string]struct{}{}
	for _, c := range containers {
		details, err := p.gateway.Containers().Inspect(ctx, c.ID)
		if err != nil {
			if instancerr.KindOf(err) == instancerr.NotFound {
				continue
			}
			logger.Warn().Err(err).Str("container", c.ID).Msg("inspect failed during prune sweep")
			continue
		}

		expiresAt := parseUnix(details.Labels[lifecycle.LabelExpiresAt])
		if expiresAt > now {
			continue
		}

		challenge := details.Labels[lifecycle.LabelChallenge]
		teamID := details.Labels[lifecycle.LabelTeamID]
		key := challenge + "/" + teamID
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}

		if _, err := p.stopper.Stop(ctx, challenge, teamID); err != nil {
			if instancerr.KindOf(err) == instancerr.Conflict {
				logger.Info().Str("challenge", challenge).Str("team_id", teamID).Msg("prune stop deferred: lock contention, retrying next tick")
				continue
			}
			logger.Warn().Err(err).Str("challenge", challenge).Str("team_id", teamID).Msg("prune stop failed")
			continue
		}
		metrics.PrunerContainersReapedTotal.Inc()
	}
}

func (p *Pruner) sweepNetworks(ctx context.Context, logger zerolog.Logger) {
	networks, err := p.gateway.Networks().List(ctx, p.managedFilter())
	if err != nil {
		logger.Error().Err(err).Msg("listing managed networks failed")
		return
	}

	now := p.clockNow().Unix()
	for _, n := range networks {
		details, err := p.gateway.Networks().Inspect(ctx, n.Name)
		if err != nil {
			if instancerr.KindOf(err) == instancerr.NotFound {
				continue
			}
			logger.Warn().Err(err).Str("network", n.Name).Msg("inspect failed during prune sweep")
			continue
		}

		expiresAt := parseUnix(details.Labels[lifecycle.LabelExpiresAt])
		if expiresAt > now {
			continue
		}

		for containerID := range details.Containers {
			if err := p.gateway.Networks().Disconnect(ctx, n.Name, containerID, true); err != nil {
				logger.Warn().Err(err).Str("network", n.Name).Str("container", containerID).Msg("disconnect failed during prune sweep")
			}
		}
		if err := p.gateway.Networks().Delete(ctx, n.Name); err != nil {
			if instancerr.KindOf(err) != instancerr.NotFound {
				logger.Warn().Err(err).Str("network", n.Name).Msg("delete failed during prune sweep")
				continue
			}
		}
		metrics.PrunerNetworksReapedTotal.Inc()
	}
}

func parseUnix(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
