package dockergateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// Fake is an in-memory Gateway for exercising the lifecycle and pruner
// packages without a live daemon. It keeps just enough state to answer the
// same queries the real client answers: label-filtered listing, inspect,
// and network membership.
type Fake struct {
	Containers map[string]*ContainerDetails
	Networks   map[string]*NetworkDetails
	Images     map[string]bool

	// FailCreateNetwork, when set, is returned by Networks().Create instead
	// of succeeding - used to exercise the "daemon exhausted" rollback path.
	FailCreateNetwork error
}

// NewFake builds an empty fake gateway.
func NewFake() *Fake {
	return &Fake{
		Containers: map[string]*ContainerDetails{},
		Networks:   map[string]*NetworkDetails{},
		Images:     map[string]bool{},
	}
}

func (f *Fake) Containers() ContainerAPI { return &fakeContainers{f: f} }
func (f *Fake) Networks() NetworkAPI     { return &fakeNetworks{f: f} }
func (f *Fake) Images() ImageAPI         { return &fakeImages{f: f} }

func (f *Fake) Close() error { return nil }

type fakeContainers struct{ f *Fake }

func labelsMatch(labels, filter map[string]string) bool {
	for k, v := range filter {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func (c *fakeContainers) List(ctx context.Context, labelFilters map[string]string, all bool, limit int) ([]ContainerSummary, error) {
	var out []ContainerSummary
	for id, d := range c.f.Containers {
		if !labelsMatch(d.Labels, labelFilters) {
			continue
		}
		out = append(out, ContainerSummary{ID: id, Labels: d.Labels})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *fakeContainers) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	id := uuid.NewString()
	c.f.Containers[id] = &ContainerDetails{
		ID:       id,
		State:    "created",
		Labels:   spec.Labels,
		Networks: append([]string(nil), spec.Networks...),
	}
	return id, nil
}

func (c *fakeContainers) Start(ctx context.Context, id string) error {
	d, ok := c.f.Containers[id]
	if !ok {
		return instancerr.NotFoundf("container %s not found", id)
	}
	d.State = "running"
	return nil
}

func (c *fakeContainers) Stop(ctx context.Context, id string, timeout time.Duration) error {
	d, ok := c.f.Containers[id]
	if !ok {
		return instancerr.NotFoundf("container %s not found", id)
	}
	d.State = "exited"
	return nil
}

func (c *fakeContainers) Delete(ctx context.Context, id string, force bool) error {
	if _, ok := c.f.Containers[id]; !ok {
		return instancerr.NotFoundf("container %s not found", id)
	}
	delete(c.f.Containers, id)
	return nil
}

func (c *fakeContainers) Inspect(ctx context.Context, id string) (ContainerDetails, error) {
	d, ok := c.f.Containers[id]
	if !ok {
		return ContainerDetails{}, instancerr.NotFoundf("container %s not found", id)
	}
	return *d, nil
}

type fakeNetworks struct{ f *Fake }

func (n *fakeNetworks) Get(ctx context.Context, name string) (NetworkDetails, error) {
	return n.Inspect(ctx, name)
}

func (n *fakeNetworks) Create(ctx context.Context, spec NetworkSpec) (string, error) {
	if n.f.FailCreateNetwork != nil {
		return "", n.f.FailCreateNetwork
	}
	id := uuid.NewString()
	n.f.Networks[spec.Name] = &NetworkDetails{
		ID:         id,
		Name:       spec.Name,
		Labels:     spec.Labels,
		Containers: map[string]string{},
	}
	return id, nil
}

func (n *fakeNetworks) List(ctx context.Context, labelFilters map[string]string) ([]NetworkSummary, error) {
	var out []NetworkSummary
	for _, d := range n.f.Networks {
		if !labelsMatch(d.Labels, labelFilters) {
			continue
		}
		out = append(out, NetworkSummary{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

func (n *fakeNetworks) Inspect(ctx context.Context, name string) (NetworkDetails, error) {
	d, ok := n.f.Networks[name]
	if !ok {
		return NetworkDetails{}, instancerr.NotFoundf("network %s not found", name)
	}
	return *d, nil
}

func (n *fakeNetworks) Connect(ctx context.Context, networkName, containerID string) error {
	net, ok := n.f.Networks[networkName]
	if !ok {
		return instancerr.NotFoundf("network %s not found", networkName)
	}
	net.Containers[containerID] = containerID
	if c, ok := n.f.Containers[containerID]; ok {
		c.Networks = append(c.Networks, networkName)
	}
	return nil
}

func (n *fakeNetworks) Disconnect(ctx context.Context, networkName, containerID string, force bool) error {
	net, ok := n.f.Networks[networkName]
	if !ok {
		return instancerr.NotFoundf("network %s not found", networkName)
	}
	delete(net.Containers, containerID)
	return nil
}

func (n *fakeNetworks) Delete(ctx context.Context, name string) error {
	if _, ok := n.f.Networks[name]; !ok {
		return instancerr.NotFoundf("network %s not found", name)
	}
	delete(n.f.Networks, name)
	return nil
}

type fakeImages struct{ f *Fake }

func (i *fakeImages) Get(ctx context.Context, ref string) error {
	if !i.f.Images[ref] {
		return instancerr.NotFoundf("image %s not present", ref)
	}
	return nil
}

func (i *fakeImages) Pull(ctx context.Context, ref string) error {
	i.f.Images[ref] = true
	return nil
}
