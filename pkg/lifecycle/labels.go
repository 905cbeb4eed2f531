package lifecycle

import "strconv"

// Managed label keys. These are the sole persistence layer: every field a
// caller can later read back about an instance must round-trip through one
// of these, since there is no internal registry backing them.
const (
	LabelManagedBy = "io.instancer.managed_by"
	LabelChallenge = "io.instancer.challenge"
	LabelTeamID    = "io.instancer.team_id"
	LabelHostname  = "io.instancer.hostname"
	LabelInstance  = "io.instancer.instance_id"
	LabelStartedAt = "io.instancer.started_at"
	LabelExpiresAt = "io.instancer.expires_at"
)

// managedLabels builds the full set of managed labels for a container.
func managedLabels(managerName, challenge, teamID, hostname, instanceID string, startedAt, expiresAt int64) map[string]string {
	return map[string]string{
		LabelManagedBy: managerName,
		LabelChallenge: challenge,
		LabelTeamID:    teamID,
		LabelHostname:  hostname,
		LabelInstance:  instanceID,
		LabelStartedAt: strconv.FormatInt(startedAt, 10),
		LabelExpiresAt: strconv.FormatInt(expiresAt, 10),
	}
}

// networkLabels builds the label set for a managed network: managed_by plus
// expires_at, per the data model's "every managed network's labels include
// expires_at" invariant.
func networkLabels(managerName string, expiresAt int64) map[string]string {
	return map[string]string{
		LabelManagedBy: managerName,
		LabelExpiresAt: strconv.FormatInt(expiresAt, 10),
	}
}
