package pruner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/lifecycle"
	"github.com/arenaforge/instancer/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

type fakeStopper struct {
	calls [][2]string
	err   error
}

func (f *fakeStopper) Stop(ctx context.Context, challengeName, teamID string) (lifecycle.Instance, error) {
	f.calls = append(f.calls, [2]string{challengeName, teamID})
	if f.err != nil {
		return lifecycle.Instance{}, f.err
	}
	return lifecycle.Instance{Status: lifecycle.StatusStopped}, nil
}

func testOpts() Options {
	return Options{ManagerName: "instancer", Prefix: "ti", Interval: time.Second}
}

func TestTickStopsExpiredContainer(t *testing.T) {
	gw := dockergateway.NewFake()
	gw.Containers["c1"] = &dockergateway.ContainerDetails{
		ID:    "c1",
		State: "running",
		Labels: map[string]string{
			lifecycle.LabelManagedBy: "instancer",
			lifecycle.LabelChallenge: "web1",
			lifecycle.LabelTeamID:    "team-a",
			lifecycle.LabelExpiresAt: "100",
		},
	}

	stopper := &fakeStopper{}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	p.Tick(context.Background(), log.WithComponent("pruner-test"))

	require.Len(t, stopper.calls, 1)
	assert.Equal(t, [2]string{"web1", "team-a"}, stopper.calls[0])
}

func TestTickSkipsUnexpiredContainer(t *testing.T) {
	gw := dockergateway.NewFake()
	gw.Containers["c1"] = &dockergateway.ContainerDetails{
		ID:    "c1",
		State: "running",
		Labels: map[string]string{
			lifecycle.LabelManagedBy: "instancer",
			lifecycle.LabelChallenge: "web1",
			lifecycle.LabelTeamID:    "team-a",
			lifecycle.LabelExpiresAt: "9999999999",
		},
	}

	stopper := &fakeStopper{}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	p.Tick(context.Background(), log.WithComponent("pruner-test"))

	assert.Empty(t, stopper.calls)
}

func TestTickDeduplicatesMultipleContainersSameKey(t *testing.T) {
	gw := dockergateway.NewFake()
	labels := map[string]string{
		lifecycle.LabelManagedBy: "instancer",
		lifecycle.LabelChallenge: "web2",
		lifecycle.LabelTeamID:    "team-b",
		lifecycle.LabelExpiresAt: "1",
	}
	gw.Containers["c1"] = &dockergateway.ContainerDetails{ID: "c1", State: "running", Labels: labels}
	gw.Containers["c2"] = &dockergateway.ContainerDetails{ID: "c2", State: "running", Labels: labels}

	stopper := &fakeStopper{}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	p.Tick(context.Background(), log.WithComponent("pruner-test"))

	assert.Len(t, stopper.calls, 1)
}

func TestTickReclaimsExpiredNetwork(t *testing.T) {
	gw := dockergateway.NewFake()
	gw.Containers["c1"] = &dockergateway.ContainerDetails{ID: "c1", State: "running", Networks: []string{"ti-svc-web1-team-a-abc123"}}
	gw.Networks["ti-svc-web1-team-a-abc123"] = &dockergateway.NetworkDetails{
		Name: "ti-svc-web1-team-a-abc123",
		Labels: map[string]string{
			lifecycle.LabelManagedBy: "instancer",
			lifecycle.LabelExpiresAt: "1",
		},
		Containers: map[string]string{"c1": "c1"},
	}

	stopper := &fakeStopper{}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	p.Tick(context.Background(), log.WithComponent("pruner-test"))

	_, ok := gw.Networks["ti-svc-web1-team-a-abc123"]
	assert.False(t, ok)
}

func TestTickIgnoresNotYetExpiredNetwork(t *testing.T) {
	gw := dockergateway.NewFake()
	gw.Networks["ti-svc-web1-team-a-abc123"] = &dockergateway.NetworkDetails{
		Name: "ti-svc-web1-team-a-abc123",
		Labels: map[string]string{
			lifecycle.LabelManagedBy: "instancer",
			lifecycle.LabelExpiresAt: "9999999999",
		},
		Containers: map[string]string{},
	}

	stopper := &fakeStopper{}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	p.Tick(context.Background(), log.WithComponent("pruner-test"))

	_, ok := gw.Networks["ti-svc-web1-team-a-abc123"]
	assert.True(t, ok)
}

func TestTickRetriesOnLockContention(t *testing.T) {
	gw := dockergateway.NewFake()
	gw.Containers["c1"] = &dockergateway.ContainerDetails{
		ID:    "c1",
		State: "running",
		Labels: map[string]string{
			lifecycle.LabelManagedBy: "instancer",
			lifecycle.LabelChallenge: "web1",
			lifecycle.LabelTeamID:    "team-a",
			lifecycle.LabelExpiresAt: "1",
		},
	}

	stopper := &fakeStopper{err: instancerr.Conflictf("another instance operation is in progress")}
	now := time.Unix(200, 0)
	p := New(gw, stopper, testOpts(), func() time.Time { return now })

	assert.NotPanics(t, func() {
		p.Tick(context.Background(), log.WithComponent("pruner-test"))
	})
	assert.Len(t, stopper.calls, 1)

	// The deferred key is picked up again on the next tick.
	p.Tick(context.Background(), log.WithComponent("pruner-test"))
	assert.Len(t, stopper.calls, 2)
}
