package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenaforge/instancer/pkg/catalog"
	"github.com/arenaforge/instancer/pkg/clock"
	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/edgelabeler"
	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/lock"
)

const oneContainerDoc = `
name: web1
timeout: 900
containers:
  - name: app
    image: demo:1
expose:
  - kind: https
    container_name: app
    container_port: 8080
`

const twoContainerDoc = `
name: web2
timeout: 900
containers:
  - name: app
    image: demo:1
    egress: true
  - name: db
    image: demo-db:1
`

func loadTestCatalog(t *testing.T, docs ...string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	for i, doc := range docs {
		sub := filepath.Join(dir, string(rune('a'+i)))
		require.NoError(t, os.MkdirAll(sub, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "challenge.yml"), []byte(doc), 0o644))
	}
	cat, err := catalog.Load(dir)
	require.NoError(t, err)
	return cat
}

func newTestLocks(t *testing.T) *lock.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return lock.New(client, "ti", 60*time.Second, 5*time.Second)
}

func testOptions() Options {
	return Options{
		Prefix:             "ti",
		ManagerName:        "instancer",
		ProxyContainerName: "traefik",
		InstancesHost:      "example.org",
		StopTimeout:        5 * time.Second,
		Entrypoints:        edgelabeler.Entrypoints{HTTP: "web", HTTPS: "websecure", TCP: "tcp"},
		Ports:              PortMap{HTTP: 80, HTTPS: 443, TCP: 9000},
	}
}

func TestStartCreatesLabeledContainerAndNetwork(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))

	svc := New(gw, cat, locks, clk, testOptions())

	inst, err := svc.Start(context.Background(), "web1", "team-a")
	require.NoError(t, err)
	assert.Equal(t, StatusStarting, inst.Status)
	assert.Equal(t, 900, inst.Timeout)
	require.Len(t, inst.Endpoints, 1)
	assert.Equal(t, "https", inst.Endpoints[0].Kind)

	require.Len(t, gw.Containers, 1)
	for _, details := range gw.Containers {
		assert.Equal(t, "running", details.State)
		assert.Equal(t, "instancer", details.Labels[LabelManagedBy])
		assert.Equal(t, "web1", details.Labels[LabelChallenge])
		assert.Equal(t, "team-a", details.Labels[LabelTeamID])
		assert.NotEmpty(t, details.Labels[LabelInstance])
		assert.Equal(t, "1900", details.Labels[LabelExpiresAt])
	}

	require.Len(t, gw.Networks, 1)
	for _, n := range gw.Networks {
		assert.Equal(t, "1900", n.Labels[LabelExpiresAt])
	}
}

func TestStartFailsConflictWhenAlreadyRunning(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Start(context.Background(), "web1", "team-a")
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "web1", "team-a")
	require.Error(t, err)
	assert.Equal(t, instancerr.Conflict, instancerr.KindOf(err))
}

func TestStartRollsBackOnNetworkCreationFailure(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	gw.FailCreateNetwork = instancerr.Wrap(instancerr.DaemonExhausted, "no free subnet", assert.AnError)
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Start(context.Background(), "web1", "team-a")
	require.Error(t, err)
	assert.Equal(t, instancerr.DaemonExhausted, instancerr.KindOf(err))
	assert.Empty(t, gw.Containers)
	assert.Empty(t, gw.Networks)
}

func TestEgressContainerJoinsBothNetworks(t *testing.T) {
	cat := loadTestCatalog(t, twoContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	gw.Images["demo-db:1"] = true
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Start(context.Background(), "web2", "team-a")
	require.NoError(t, err)

	require.Len(t, gw.Networks, 2)

	var appNets, dbNets int
	for _, d := range gw.Containers {
		switch len(d.Networks) {
		case 2:
			appNets++
		case 1:
			dbNets++
		}
	}
	assert.Equal(t, 1, appNets)
	assert.Equal(t, 1, dbNets)
}

func TestStopTearsDownContainersAndNetworks(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Start(context.Background(), "web1", "team-a")
	require.NoError(t, err)

	inst, err := svc.Stop(context.Background(), "web1", "team-a")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, inst.Status)
	assert.Empty(t, gw.Containers)
	assert.Empty(t, gw.Networks)
}

func TestStopFailsNotFoundWhenNothingRunning(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Stop(context.Background(), "web1", "team-a")
	require.Error(t, err)
	assert.Equal(t, instancerr.NotFound, instancerr.KindOf(err))
}

func TestStatusReportsStoppedWhenNoContainer(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	inst, err := svc.Status(context.Background(), "web1", "team-a")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, inst.Status)
	assert.Nil(t, inst.RemainingTime)
}

func TestStatusReportsRunningAfterStart(t *testing.T) {
	cat := loadTestCatalog(t, oneContainerDoc)
	gw := dockergateway.NewFake()
	gw.Images["demo:1"] = true
	locks := newTestLocks(t)
	clk := clock.NewFake(time.Unix(1000, 0))
	svc := New(gw, cat, locks, clk, testOptions())

	_, err := svc.Start(context.Background(), "web1", "team-a")
	require.NoError(t, err)

	clk.Advance(100 * time.Second)

	inst, err := svc.Status(context.Background(), "web1", "team-a")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)
	require.NotNil(t, inst.RemainingTime)
	assert.Equal(t, int64(800), *inst.RemainingTime)
}
