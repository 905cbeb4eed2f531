// Package dockergateway is a thin typed facade over a container daemon,
// exposing only the container/network/image operations the lifecycle and
// pruner subsystems need. It retains no state of its own: every call talks
// directly to the daemon, and the daemon's label set remains the sole
// source of truth.
package dockergateway

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/client"
)

// Gateway is the narrow facade the lifecycle and pruner packages depend on.
// Production code uses *Client; tests substitute a fake.
type Gateway interface {
	Containers() ContainerAPI
	Networks() NetworkAPI
	Images() ImageAPI
	Close() error
}

// Client wraps the real Docker Engine API client.
type Client struct {
	cli        *client.Client
	containers *containerAPI
	networks   *networkAPI
	images     *imageAPI
}

// New builds a Client. If host is empty, the client negotiates the daemon
// connection the way the Docker CLI does (DOCKER_HOST env var, then the
// platform default socket).
func New(host string) (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else if env := os.Getenv("DOCKER_HOST"); env != "" {
		opts = append(opts, client.WithHost(env))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("constructing docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("pinging docker daemon: %w", err)
	}

	return &Client{
		cli:        cli,
		containers: &containerAPI{cli: cli},
		networks:   &networkAPI{cli: cli},
		images:     &imageAPI{cli: cli},
	}, nil
}

func (c *Client) Containers() ContainerAPI { return c.containers }
func (c *Client) Networks() NetworkAPI     { return c.networks }
func (c *Client) Images() ImageAPI         { return c.images }

func (c *Client) Close() error { return c.cli.Close() }
