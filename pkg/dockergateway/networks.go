package dockergateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/filters"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// NetworkSpec describes a network to ensure exists.
type NetworkSpec struct {
	Name     string
	Internal bool
	Labels   map[string]string
}

// NetworkDetails is the inspect result the lifecycle and pruner need. Some
// daemon versions omit labels from the list response, so code must always
// inspect rather than trust a list summary for Labels.
type NetworkDetails struct {
	ID         string
	Name       string
	Labels     map[string]string
	Containers map[string]string // container ID -> container name
}

// NetworkSummary is a single entry from a network list call.
type NetworkSummary struct {
	ID   string
	Name string
}

// NetworkAPI is the subset of network operations the core needs.
type NetworkAPI interface {
	Get(ctx context.Context, name string) (NetworkDetails, error)
	Create(ctx context.Context, spec NetworkSpec) (string, error)
	List(ctx context.Context, labelFilters map[string]string) ([]NetworkSummary, error)
	Inspect(ctx context.Context, name string) (NetworkDetails, error)
	Connect(ctx context.Context, networkName, containerID string) error
	Disconnect(ctx context.Context, networkName, containerID string, force bool) error
	Delete(ctx context.Context, name string) error
}

type networkAPI struct {
	cli *client.Client
}

func (n *networkAPI) Get(ctx context.Context, name string) (NetworkDetails, error) {
	return n.Inspect(ctx, name)
}

func (n *networkAPI) Create(ctx context.Context, spec NetworkSpec) (string, error) {
	resp, err := n.cli.NetworkCreate(ctx, spec.Name, networktypes.CreateOptions{
		Driver:   "bridge",
		Internal: spec.Internal,
		Labels:   spec.Labels,
	})
	if err != nil {
		if strings.Contains(err.Error(), "fully subnetted") || strings.Contains(err.Error(), "no available network") {
			return "", instancerr.Wrap(instancerr.DaemonExhausted, "daemon has run out of available subnets for network "+spec.Name, err)
		}
		return "", classify("creating network "+spec.Name, err)
	}
	return resp.ID, nil
}

func (n *networkAPI) List(ctx context.Context, labelFilters map[string]string) ([]NetworkSummary, error) {
	args := filters.NewArgs()
	for k, v := range labelFilters {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	raw, err := n.cli.NetworkList(ctx, networktypes.ListOptions{Filters: args})
	if err != nil {
		return nil, classify("listing networks", err)
	}

	out := make([]NetworkSummary, 0, len(raw))
	for _, item := range raw {
		out = append(out, NetworkSummary{ID: item.ID, Name: item.Name})
	}
	return out, nil
}

func (n *networkAPI) Inspect(ctx context.Context, name string) (NetworkDetails, error) {
	info, err := n.cli.NetworkInspect(ctx, name, networktypes.InspectOptions{})
	if err != nil {
		return NetworkDetails{}, classify("inspecting network "+name, err)
	}

	containers := make(map[string]string, len(info.Containers))
	for id, endpoint := range info.Containers {
		containers[id] = endpoint.Name
	}

	return NetworkDetails{
		ID:         info.ID,
		Name:       info.Name,
		Labels:     info.Labels,
		Containers: containers,
	}, nil
}

func (n *networkAPI) Connect(ctx context.Context, networkName, containerID string) error {
	if err := n.cli.NetworkConnect(ctx, networkName, containerID, nil); err != nil {
		return classify("connecting container "+containerID+" to network "+networkName, err)
	}
	return nil
}

func (n *networkAPI) Disconnect(ctx context.Context, networkName, containerID string, force bool) error {
	if err := n.cli.NetworkDisconnect(ctx, networkName, containerID, force); err != nil {
		return classify("disconnecting container "+containerID+" from network "+networkName, err)
	}
	return nil
}

func (n *networkAPI) Delete(ctx context.Context, name string) error {
	if err := n.cli.NetworkRemove(ctx, name); err != nil {
		return classify("removing network "+name, err)
	}
	return nil
}
