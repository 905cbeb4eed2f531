// Package lifecycle implements the instance start/stop/status state
// machine: the heart of the system. All mutating operations run inside a
// per-(challenge, team) lock and treat the container daemon's label set as
// the sole system of record - there is no internal registry to fall out of
// sync with it.
package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arenaforge/instancer/pkg/catalog"
	"github.com/arenaforge/instancer/pkg/clock"
	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/edgelabeler"
	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/lock"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/metrics"
)

// PortMap gives the static kind -> edge port used to build Endpoint values.
type PortMap struct {
	HTTP  int
	HTTPS int
	TCP   int
}

func (p PortMap) forKind(kind catalog.ExposeKind) int {
	switch kind {
	case catalog.ExposeHTTP:
		return p.HTTP
	case catalog.ExposeHTTPS:
		return p.HTTPS
	case catalog.ExposeTCP:
		return p.TCP
	default:
		return 0
	}
}

// Options configures a Service.
type Options struct {
	Prefix             string
	ManagerName        string
	ProxyContainerName string
	InstancesHost      string
	StopTimeout        time.Duration
	Entrypoints        edgelabeler.Entrypoints
	Ports              PortMap
}

// Service implements start/stop/status for (challenge, team) pairs.
type Service struct {
	gateway dockergateway.Gateway
	catalog *catalog.Catalog
	locks   *lock.Service
	clock   clock.Clock
	opts    Options
}

// New builds a Service.
func New(gateway dockergateway.Gateway, cat *catalog.Catalog, locks *lock.Service, clk clock.Clock, opts Options) *Service {
	return &Service{gateway: gateway, catalog: cat, locks: locks, clock: clk, opts: opts}
}

func (s *Service) keyFilters(challenge, teamID string) map[string]string {
	return map[string]string{
		LabelManagedBy: s.opts.ManagerName,
		LabelChallenge: challenge,
		LabelTeamID:    teamID,
	}
}

// Start provisions a fresh instance for (challengeName, teamID), or fails
// CONFLICT if one is already running.
func (s *Service) Start(ctx context.Context, challengeName, teamID string) (Instance, error) {
	var out Instance
	err := s.locks.WithLock(ctx, challengeName, teamID, func(ctx context.Context) error {
		timer := metrics.NewTimer()
		defer timer.ObserveDuration(metrics.InstanceStartDuration)

		inst, err := s.startLocked(ctx, challengeName, teamID)
		if err != nil {
			return err
		}
		out = inst
		return nil
	})
	return out, err
}

func (s *Service) startLocked(ctx context.Context, challengeName, teamID string) (Instance, error) {
	logger := log.WithComponent("lifecycle")

	ch, err := s.catalog.Get(challengeName)
	if err != nil {
		return Instance{}, err
	}

	running, err := s.gateway.Containers().List(ctx, s.keyFilters(challengeName, teamID), false, 1)
	if err != nil {
		return Instance{}, err
	}
	if len(running) > 0 {
		return Instance{}, instancerr.Conflictf("instance already running for %s/%s", challengeName, teamID)
	}

	instanceID := newInstanceID()
	startedAt := s.clock.Now().Unix()
	expiresAt := startedAt + int64(ch.Timeout)
	host := instanceHost(ch.Name, instanceID, s.opts.InstancesHost)
	svcNet := serviceNetworkName(s.opts.Prefix, ch.Name, teamID, instanceID)
	egNet := egressNetworkName(s.opts.Prefix, ch.Name, teamID, instanceID)

	needsEgress := false
	for _, c := range ch.Containers {
		if c.Egress {
			needsEgress = true
			break
		}
	}

	p := newPlan(s.gateway)

	if err := s.ensureNetwork(ctx, p, svcNet, true, expiresAt); err != nil {
		p.rollback(context.Background(), logger)
		return Instance{}, err
	}
	if err := s.connectProxy(ctx, svcNet); err != nil {
		p.rollback(context.Background(), logger)
		return Instance{}, err
	}
	if needsEgress {
		if err := s.ensureNetwork(ctx, p, egNet, false, expiresAt); err != nil {
			p.rollback(context.Background(), logger)
			return Instance{}, err
		}
	}

	for _, c := range ch.Containers {
		if err := s.createContainer(ctx, p, ch, c, instanceID, teamID, host, svcNet, egNet, startedAt, expiresAt); err != nil {
			p.rollback(context.Background(), logger)
			return Instance{}, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range p.containerIDs {
		id := id
		g.Go(func() error {
			return s.gateway.Containers().Start(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		p.rollback(context.Background(), logger)
		return Instance{}, instancerr.Wrap(instancerr.Internal, "starting instance containers", err)
	}

	endpoints := s.endpointsFor(ch, host)
	remaining := expiresAt - s.clock.Now().Unix()
	if remaining < 0 {
		remaining = 0
	}

	return Instance{
		Status:        StatusStarting,
		Timeout:       ch.Timeout,
		Endpoints:     endpoints,
		RemainingTime: &remaining,
	}, nil
}

func (s *Service) endpointsFor(ch catalog.Challenge, host string) []Endpoint {
	var out []Endpoint
	for _, e := range ch.Expose {
		out = append(out, Endpoint{
			Kind: string(e.Kind),
			Host: host,
			Port: s.opts.Ports.forKind(e.Kind),
		})
	}
	return out
}

// ensureNetwork idempotently creates a network if it doesn't already
// exist, tracking it on the plan for rollback on a later failure.
func (s *Service) ensureNetwork(ctx context.Context, p *plan, name string, internal bool, expiresAt int64) error {
	if _, err := s.gateway.Networks().Get(ctx, name); err == nil {
		return nil
	} else if instancerr.KindOf(err) != instancerr.NotFound {
		return err
	}

	if _, err := s.gateway.Networks().Create(ctx, dockergateway.NetworkSpec{
		Name:     name,
		Internal: internal,
		Labels:   networkLabels(s.opts.ManagerName, expiresAt),
	}); err != nil {
		return err
	}
	p.trackNetwork(name)
	return nil
}

// connectProxy attaches the edge proxy container to the service network so
// it can route to the instance. A CONFLICT means it's already attached.
func (s *Service) connectProxy(ctx context.Context, svcNet string) error {
	if s.opts.ProxyContainerName == "" {
		return nil
	}
	err := s.gateway.Networks().Connect(ctx, svcNet, s.opts.ProxyContainerName)
	if err == nil || instancerr.KindOf(err) == instancerr.Conflict {
		return nil
	}
	return err
}

func (s *Service) createContainer(ctx context.Context, p *plan, ch catalog.Challenge, c catalog.Container, instanceID, teamID, host, svcNet, egNet string, startedAt, expiresAt int64) error {
	if err := s.gateway.Images().Get(ctx, c.Image); err != nil {
		if instancerr.KindOf(err) != instancerr.NotFound {
			return err
		}
		if err := s.gateway.Images().Pull(ctx, c.Image); err != nil {
			return err
		}
	}

	labels := managedLabels(s.opts.ManagerName, ch.Name, teamID, host, instanceID, startedAt, expiresAt)
	if ch.HasExpose() {
		for k, v := range edgelabeler.LabelsFor(ch, c, edgelabeler.Inputs{
			Prefix:      s.opts.Prefix,
			InstanceID:  instanceID,
			TeamID:      teamID,
			Host:        host,
			ServiceNet:  svcNet,
			Entrypoints: s.opts.Entrypoints,
		}) {
			labels[k] = v
		}
	}

	networks := []string{svcNet}
	if c.Egress {
		networks = append(networks, egNet)
	}

	ulimits := make([]dockergateway.Ulimit, 0, len(c.Limits.Ulimits))
	for _, u := range c.Limits.Ulimits {
		ulimits = append(ulimits, dockergateway.Ulimit{Name: u.Name, Soft: u.Soft, Hard: u.Hard})
	}

	id, err := s.gateway.Containers().Create(ctx, dockergateway.ContainerSpec{
		Name:           containerName(s.opts.Prefix, ch.Name, teamID, c.Name),
		Hostname:       c.Name,
		Image:          c.Image,
		Env:            c.Env,
		Labels:         labels,
		Networks:       networks,
		RestartPolicy:  "unless-stopped",
		ReadOnlyRootfs: c.Security.ReadOnlyFS,
		SecurityOpt:    c.Security.SecurityOpt,
		CapAdd:         c.Security.CapAdd,
		CapDrop:        c.Security.CapDrop,
		MemoryBytes:    c.Limits.MemoryBytes,
		NanoCPUs:       c.Limits.NanoCPUs,
		PidsLimit:      c.Limits.PidsLimit,
		Ulimits:        ulimits,
	})
	if err != nil {
		return err
	}
	p.trackContainer(id)
	return nil
}

// Stop tears down every managed container and network for (challengeName,
// teamID). Teardown is best-effort: individual resource errors are logged,
// not surfaced, since the caller only cares that the key is clear.
func (s *Service) Stop(ctx context.Context, challengeName, teamID string) (Instance, error) {
	var out Instance
	err := s.locks.WithLock(ctx, challengeName, teamID, func(ctx context.Context) error {
		timer := metrics.NewTimer()
		defer timer.ObserveDuration(metrics.InstanceStopDuration)

		inst, err := s.stopLocked(ctx, challengeName, teamID)
		if err != nil {
			return err
		}
		out = inst
		return nil
	})
	return out, err
}

func (s *Service) stopLocked(ctx context.Context, challengeName, teamID string) (Instance, error) {
	logger := log.WithComponent("lifecycle")

	containers, err := s.gateway.Containers().List(ctx, s.keyFilters(challengeName, teamID), true, 0)
	if err != nil {
		return Instance{}, err
	}
	if len(containers) == 0 {
		return Instance{}, instancerr.NotFoundf("no instance running for %s/%s", challengeName, teamID)
	}

	networkSet := map[string]struct{}{}
	for _, c := range containers {
		details, err := s.gateway.Containers().Inspect(ctx, c.ID)
		if err != nil {
			logger.Warn().Err(err).Str("container", c.ID).Msg("inspect failed during stop")
			continue
		}
		for _, n := range details.Networks {
			if len(n) >= len(s.opts.Prefix)+1 && n[:len(s.opts.Prefix)+1] == s.opts.Prefix+"-" {
				networkSet[n] = struct{}{}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range containers {
		id := c.ID
		g.Go(func() error {
			if err := s.gateway.Containers().Stop(gctx, id, s.opts.StopTimeout); err != nil {
				logger.Warn().Err(err).Str("container", id).Msg("stop failed, continuing teardown")
			}
			return nil
		})
	}
	_ = g.Wait()

	g, gctx = errgroup.WithContext(ctx)
	for _, c := range containers {
		id := c.ID
		g.Go(func() error {
			if err := s.gateway.Containers().Delete(gctx, id, true); err != nil {
				logger.Warn().Err(err).Str("container", id).Msg("delete failed, continuing teardown")
			}
			return nil
		})
	}
	_ = g.Wait()

	for name := range networkSet {
		s.teardownNetwork(ctx, logger, name)
	}

	return Instance{Status: StatusStopped, Endpoints: nil, RemainingTime: nil}, nil
}

// teardownNetwork re-inspects a network (state may have changed since it
// was first observed), force-disconnects every attached container, then
// deletes it. Every step is best-effort.
func (s *Service) teardownNetwork(ctx context.Context, logger zerolog.Logger, name string) {
	details, err := s.gateway.Networks().Inspect(ctx, name)
	if err != nil {
		if instancerr.KindOf(err) != instancerr.NotFound {
			logger.Warn().Err(err).Str("network", name).Msg("inspect failed during teardown")
		}
		return
	}

	for containerID := range details.Containers {
		if err := s.gateway.Networks().Disconnect(ctx, name, containerID, true); err != nil {
			logger.Warn().Err(err).Str("network", name).Str("container", containerID).Msg("disconnect failed during teardown")
		}
	}

	if err := s.gateway.Networks().Delete(ctx, name); err != nil {
		if instancerr.KindOf(err) != instancerr.NotFound {
			logger.Warn().Err(err).Str("network", name).Msg("delete failed during teardown")
		}
	}
}

// Status reports the current state for (challengeName, teamID) without
// taking the lock: it only reads. Sampling a single container's state to
// represent the whole instance is a known limitation carried over as-is;
// see the design notes on multi-container status aggregation.
func (s *Service) Status(ctx context.Context, challengeName, teamID string) (Instance, error) {
	ch, err := s.catalog.Get(challengeName)
	if err != nil {
		return Instance{}, err
	}

	containers, err := s.gateway.Containers().List(ctx, s.keyFilters(challengeName, teamID), true, 1)
	if err != nil {
		return Instance{}, err
	}
	if len(containers) == 0 {
		return Instance{Status: StatusStopped, Timeout: ch.Timeout}, nil
	}

	details, err := s.gateway.Containers().Inspect(ctx, containers[0].ID)
	if err != nil {
		return Instance{}, err
	}

	status := StatusStarting
	if details.State == "running" {
		status = StatusRunning
	}

	host := details.Labels[LabelHostname]
	var remaining *int64
	var endpoints []Endpoint
	if expiresStr, ok := details.Labels[LabelExpiresAt]; ok {
		expiresAt := parseUnix(expiresStr)
		r := expiresAt - s.clock.Now().Unix()
		if r < 0 {
			r = 0
		}
		remaining = &r
		endpoints = s.endpointsFor(ch, host)
	}

	return Instance{
		Status:        status,
		Timeout:       ch.Timeout,
		Endpoints:     endpoints,
		RemainingTime: remaining,
	}, nil
}

func parseUnix(s string) int64 {
	var v int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + int64(r-'0')
	}
	return v
}
