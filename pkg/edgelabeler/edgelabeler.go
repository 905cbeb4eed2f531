// Package edgelabeler synthesizes the Traefik routing labels a managed
// container needs to be reachable through the edge proxy. LabelsFor is a
// pure function: identical inputs always produce an identical label map,
// across invocations, processes, and time.
package edgelabeler

import (
	"fmt"
	"strconv"

	"github.com/arenaforge/instancer/pkg/catalog"
)

// Entrypoints carries the edge-proxy contract's configured entrypoint
// names, read once from configuration.
type Entrypoints struct {
	HTTP  string
	HTTPS string
	TCP   string
}

// Inputs are the fixed, static inputs LabelsFor needs beyond the catalog's
// challenge/container data.
type Inputs struct {
	Prefix      string
	InstanceID  string
	TeamID      string
	Host        string
	ServiceNet  string
	Entrypoints Entrypoints
}

// LabelsFor returns the reverse-proxy configuration labels for one
// container of a challenge, given the challenge's full expose list, the
// container it's being generated for, and the static inputs above.
func LabelsFor(challenge catalog.Challenge, container catalog.Container, in Inputs) map[string]string {
	labels := map[string]string{}
	if !challenge.HasExpose() {
		return labels
	}

	labels["traefik.enable"] = "true"
	labels["traefik.docker.network"] = in.ServiceNet

	for i, expose := range challenge.Expose {
		if expose.ContainerName != container.Name {
			continue
		}

		router := fmt.Sprintf("%s-%s-%s-%s-%s-%d", in.Prefix, challenge.Name, in.TeamID, in.InstanceID, container.Name, i)
		port := strconv.Itoa(expose.ContainerPort)

		switch expose.Kind {
		case catalog.ExposeTCP:
			labels[fmt.Sprintf("traefik.tcp.routers.%s.rule", router)] = fmt.Sprintf("HostSNI(`%s`)", in.Host)
			labels[fmt.Sprintf("traefik.tcp.routers.%s.entrypoints", router)] = in.Entrypoints.TCP
			labels[fmt.Sprintf("traefik.tcp.routers.%s.service", router)] = router
			labels[fmt.Sprintf("traefik.tcp.routers.%s.tls.passthrough", router)] = "true"
			labels[fmt.Sprintf("traefik.tcp.services.%s.loadbalancer.server.port", router)] = port

		case catalog.ExposeHTTP:
			labels[fmt.Sprintf("traefik.http.routers.%s.rule", router)] = fmt.Sprintf("Host(`%s`)", in.Host)
			labels[fmt.Sprintf("traefik.http.routers.%s.entrypoints", router)] = in.Entrypoints.HTTP
			labels[fmt.Sprintf("traefik.http.routers.%s.service", router)] = router
			labels[fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", router)] = port

		case catalog.ExposeHTTPS:
			labels[fmt.Sprintf("traefik.http.routers.%s.rule", router)] = fmt.Sprintf("Host(`%s`)", in.Host)
			labels[fmt.Sprintf("traefik.http.routers.%s.entrypoints", router)] = in.Entrypoints.HTTPS
			labels[fmt.Sprintf("traefik.http.routers.%s.tls", router)] = "true"
			labels[fmt.Sprintf("traefik.http.routers.%s.service", router)] = router
			labels[fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", router)] = port
		}
	}

	return labels
}
