package dockergateway

import (
	"context"
	"io"

	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// ImageAPI covers the minimal image operations the lifecycle needs before
// creating a container: check whether an image is already present locally,
// and pull it if not.
type ImageAPI interface {
	Get(ctx context.Context, ref string) error
	Pull(ctx context.Context, ref string) error
}

type imageAPI struct {
	cli *client.Client
}

func (i *imageAPI) Get(ctx context.Context, ref string) error {
	_, err := i.cli.ImageInspect(ctx, ref)
	if err != nil {
		return classify("inspecting image "+ref, err)
	}
	return nil
}

func (i *imageAPI) Pull(ctx context.Context, ref string) error {
	rc, err := i.cli.ImagePull(ctx, ref, imagetypes.PullOptions{})
	if err != nil {
		return instancerr.Wrap(instancerr.Internal, "pulling image "+ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return instancerr.Wrap(instancerr.Internal, "streaming pull output for image "+ref, err)
	}
	return nil
}
