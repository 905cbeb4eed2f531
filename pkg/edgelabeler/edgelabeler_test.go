package edgelabeler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arenaforge/instancer/pkg/catalog"
)

func testChallenge() catalog.Challenge {
	return catalog.Challenge{
		Name:    "web1",
		Timeout: 900,
		Containers: []catalog.Container{
			{Name: "app"},
		},
		Expose: []catalog.ExposeRule{
			{Kind: catalog.ExposeHTTPS, ContainerName: "app", ContainerPort: 8080},
		},
	}
}

func testInputs() Inputs {
	return Inputs{
		Prefix:     "ti",
		InstanceID: "abc123",
		TeamID:     "team-a",
		Host:       "web1-abc123.example.org",
		ServiceNet: "ti-svc-web1-team-a-abc123",
		Entrypoints: Entrypoints{
			HTTP:  "web",
			HTTPS: "websecure",
			TCP:   "tcp",
		},
	}
}

func TestLabelsForHTTPS(t *testing.T) {
	ch := testChallenge()
	labels := LabelsFor(ch, ch.Containers[0], testInputs())

	router := "ti-web1-team-a-abc123-app-0"
	assert.Equal(t, "true", labels["traefik.enable"])
	assert.Equal(t, "ti-svc-web1-team-a-abc123", labels["traefik.docker.network"])
	assert.Equal(t, "Host(`web1-abc123.example.org`)", labels["traefik.http.routers."+router+".rule"])
	assert.Equal(t, "websecure", labels["traefik.http.routers."+router+".entrypoints"])
	assert.Equal(t, "true", labels["traefik.http.routers."+router+".tls"])
	assert.Equal(t, "8080", labels["traefik.http.services."+router+".loadbalancer.server.port"])
}

func TestLabelsForIsPure(t *testing.T) {
	ch := testChallenge()
	in := testInputs()
	first := LabelsFor(ch, ch.Containers[0], in)
	second := LabelsFor(ch, ch.Containers[0], in)
	assert.Equal(t, first, second)
}

func TestLabelsForNoExposeIsEmpty(t *testing.T) {
	ch := testChallenge()
	ch.Expose = nil
	labels := LabelsFor(ch, ch.Containers[0], testInputs())
	assert.Empty(t, labels)
}

func TestLabelsForTCP(t *testing.T) {
	ch := testChallenge()
	ch.Expose = []catalog.ExposeRule{{Kind: catalog.ExposeTCP, ContainerName: "app", ContainerPort: 1337}}
	labels := LabelsFor(ch, ch.Containers[0], testInputs())

	router := "ti-web1-team-a-abc123-app-0"
	assert.Equal(t, "HostSNI(`web1-abc123.example.org`)", labels["traefik.tcp.routers."+router+".rule"])
	assert.Equal(t, "true", labels["traefik.tcp.routers."+router+".tls.passthrough"])
	assert.Equal(t, "1337", labels["traefik.tcp.services."+router+".loadbalancer.server.port"])
}
