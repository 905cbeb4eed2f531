package dockergateway

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// Ulimit mirrors the resource-limit pair the catalog parses.
type Ulimit struct {
	Name string
	Soft int64
	Hard int64
}

// ContainerSpec is everything needed to create one managed container.
type ContainerSpec struct {
	Name           string
	Hostname       string
	Image          string
	Env            map[string]string
	Labels         map[string]string
	Networks       []string // network names to attach at creation time
	RestartPolicy  string
	ReadOnlyRootfs bool
	SecurityOpt    []string
	CapAdd         []string
	CapDrop        []string
	MemoryBytes    int64
	NanoCPUs       int64
	PidsLimit      int64
	Ulimits        []Ulimit
}

// ContainerDetails is the inspect result the lifecycle and pruner need.
type ContainerDetails struct {
	ID       string
	State    string // e.g. "running", "created", "exited"
	Labels   map[string]string
	Networks []string // names of currently attached networks
}

// ContainerSummary is a single entry from a container list call.
type ContainerSummary struct {
	ID     string
	Labels map[string]string
}

// ContainerAPI is the subset of container operations the core needs.
type ContainerAPI interface {
	List(ctx context.Context, labelFilters map[string]string, all bool, limit int) ([]ContainerSummary, error)
	Create(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Delete(ctx context.Context, id string, force bool) error
	Inspect(ctx context.Context, id string) (ContainerDetails, error)
}

type containerAPI struct {
	cli *client.Client
}

func (c *containerAPI) List(ctx context.Context, labelFilters map[string]string, all bool, limit int) ([]ContainerSummary, error) {
	args := filters.NewArgs()
	for k, v := range labelFilters {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	opts := container.ListOptions{All: all, Filters: args}
	if limit > 0 {
		opts.Limit = limit
	}

	raw, err := c.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, classify("listing containers", err)
	}

	out := make([]ContainerSummary, 0, len(raw))
	for _, item := range raw {
		out = append(out, ContainerSummary{ID: item.ID, Labels: item.Labels})
	}
	return out, nil
}

func (c *containerAPI) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	tmpfs := map[string]string{}
	if spec.ReadOnlyRootfs {
		tmpfs["/tmp"] = "noexec,nosuid,nodev"
	}

	ulimits := make([]*container.Ulimit, 0, len(spec.Ulimits))
	for _, u := range spec.Ulimits {
		ulimits = append(ulimits, &container.Ulimit{Name: u.Name, Soft: u.Soft, Hard: u.Hard})
	}

	endpoints := map[string]*network.EndpointSettings{}
	for _, net := range spec.Networks {
		endpoints[net] = &network.EndpointSettings{}
	}

	cfg := &container.Config{
		Hostname: spec.Hostname,
		Image:    spec.Image,
		Env:      env,
		Labels:   spec.Labels,
	}

	hostCfg := &container.HostConfig{
		RestartPolicy:  container.RestartPolicy{Name: container.RestartPolicyMode(spec.RestartPolicy)},
		ReadonlyRootfs: spec.ReadOnlyRootfs,
		Tmpfs:          tmpfs,
		SecurityOpt:    spec.SecurityOpt,
		CapAdd:         spec.CapAdd,
		CapDrop:        spec.CapDrop,
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
			NanoCPUs:   spec.NanoCPUs,
			PidsLimit:  &spec.PidsLimit,
			Ulimits:    ulimits,
		},
		LogConfig: container.LogConfig{Type: "json-file"},
	}

	netCfg := &network.NetworkingConfig{EndpointsConfig: endpoints}

	resp, err := c.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return "", classify("creating container "+spec.Name, err)
	}
	return resp.ID, nil
}

func (c *containerAPI) Start(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return classify("starting container "+id, err)
	}
	return nil
}

func (c *containerAPI) Stop(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		return classify("stopping container "+id, err)
	}
	return nil
}

func (c *containerAPI) Delete(ctx context.Context, id string, force bool) error {
	if err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return classify("removing container "+id, err)
	}
	return nil
}

func (c *containerAPI) Inspect(ctx context.Context, id string) (ContainerDetails, error) {
	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerDetails{}, classify("inspecting container "+id, err)
	}

	var nets []string
	if info.NetworkSettings != nil {
		for name := range info.NetworkSettings.Networks {
			nets = append(nets, name)
		}
	}

	state := ""
	if info.State != nil {
		state = info.State.Status
	}

	var labels map[string]string
	if info.Config != nil {
		labels = info.Config.Labels
	}

	return ContainerDetails{
		ID:       info.ID,
		State:    state,
		Labels:   labels,
		Networks: nets,
	}, nil
}
