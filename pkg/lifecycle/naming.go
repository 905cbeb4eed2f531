package lifecycle

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// newInstanceID returns 12 hex characters, uniformly random.
func newInstanceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func containerName(prefix, challenge, teamID, containerTemplateName string) string {
	return fmt.Sprintf("%s-%s-%s-%s", prefix, challenge, teamID, containerTemplateName)
}

func serviceNetworkName(prefix, challenge, teamID, instanceID string) string {
	return fmt.Sprintf("%s-svc-%s-%s-%s", prefix, challenge, teamID, instanceID)
}

func egressNetworkName(prefix, challenge, teamID, instanceID string) string {
	return fmt.Sprintf("%s-eg-%s-%s-%s", prefix, challenge, teamID, instanceID)
}

func instanceHost(challenge, instanceID, hostSuffix string) string {
	return fmt.Sprintf("%s-%s.%s", challenge, instanceID, hostSuffix)
}
