package catalog

import "gopkg.in/yaml.v3"

// ExposeKind names the edge-proxy entrypoint an ExposeRule advertises on.
type ExposeKind string

const (
	ExposeHTTP  ExposeKind = "http"
	ExposeHTTPS ExposeKind = "https"
	ExposeTCP   ExposeKind = "tcp"
)

// Ulimit is a single container resource-limit pair.
type Ulimit struct {
	Name string `yaml:"name"`
	Soft int64  `yaml:"soft"`
	Hard int64  `yaml:"hard"`
}

// Security holds the container security-hardening options.
type Security struct {
	ReadOnlyFS  bool     `yaml:"read_only_fs"`
	SecurityOpt []string `yaml:"security_opt"`
	CapAdd      []string `yaml:"cap_add"`
	CapDrop     []string `yaml:"cap_drop"`
}

// DefaultSecurity mirrors the catalog's pydantic defaults.
func DefaultSecurity() Security {
	return Security{
		ReadOnlyFS:  true,
		SecurityOpt: []string{"no-new-privileges"},
		CapAdd:      []string{},
		CapDrop:     []string{"ALL"},
	}
}

// UnmarshalYAML overlays the decoded fields onto DefaultSecurity() so a
// partially-specified security block (e.g. only read_only_fs) keeps the
// defaults for every field it doesn't mention, rather than zeroing them.
func (s *Security) UnmarshalYAML(value *yaml.Node) error {
	*s = DefaultSecurity()
	var raw struct {
		ReadOnlyFS  *bool     `yaml:"read_only_fs"`
		SecurityOpt *[]string `yaml:"security_opt"`
		CapAdd      *[]string `yaml:"cap_add"`
		CapDrop     *[]string `yaml:"cap_drop"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ReadOnlyFS != nil {
		s.ReadOnlyFS = *raw.ReadOnlyFS
	}
	if raw.SecurityOpt != nil {
		s.SecurityOpt = *raw.SecurityOpt
	}
	if raw.CapAdd != nil {
		s.CapAdd = *raw.CapAdd
	}
	if raw.CapDrop != nil {
		s.CapDrop = *raw.CapDrop
	}
	return nil
}

// Limits holds the container resource limits, both as configured strings and
// (once parsed) as the values the gateway needs.
type Limits struct {
	Memory     string   `yaml:"memory"`
	CPU        string   `yaml:"cpu"`
	PidsLimit  int64    `yaml:"pids_limit"`
	Ulimits    []Ulimit `yaml:"ulimits"`
	MemoryBytes int64   `yaml:"-"`
	NanoCPUs    int64   `yaml:"-"`
}

// DefaultLimits mirrors the catalog's pydantic defaults.
func DefaultLimits() Limits {
	return Limits{
		Memory:    "512m",
		CPU:       "0.5",
		PidsLimit: 1024,
		Ulimits:   []Ulimit{{Name: "nofile", Soft: 1024, Hard: 1024}},
	}
}

// UnmarshalYAML overlays the decoded fields onto DefaultLimits() so a
// partially-specified limits block (e.g. only memory) keeps the defaults
// for every field it doesn't mention, rather than zeroing them.
func (l *Limits) UnmarshalYAML(value *yaml.Node) error {
	*l = DefaultLimits()
	var raw struct {
		Memory    *string   `yaml:"memory"`
		CPU       *string   `yaml:"cpu"`
		PidsLimit *int64    `yaml:"pids_limit"`
		Ulimits   *[]Ulimit `yaml:"ulimits"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Memory != nil {
		l.Memory = *raw.Memory
	}
	if raw.CPU != nil {
		l.CPU = *raw.CPU
	}
	if raw.PidsLimit != nil {
		l.PidsLimit = *raw.PidsLimit
	}
	if raw.Ulimits != nil {
		l.Ulimits = *raw.Ulimits
	}
	return nil
}

// Container is a challenge's container template.
type Container struct {
	Name     string            `yaml:"name"`
	Image    string            `yaml:"image"`
	Env      map[string]string `yaml:"env"`
	Egress   bool              `yaml:"egress"`
	Security Security          `yaml:"security"`
	Limits   Limits            `yaml:"limits"`
}

// ExposeRule declares that a container port should be reachable via the
// edge proxy under a given protocol kind.
type ExposeRule struct {
	Kind          ExposeKind `yaml:"kind"`
	ContainerName string     `yaml:"container_name"`
	ContainerPort int        `yaml:"container_port"`
}

// Challenge is a validated catalog entry.
type Challenge struct {
	Name       string       `yaml:"name"`
	Timeout    int          `yaml:"timeout"`
	Containers []Container  `yaml:"containers"`
	Expose     []ExposeRule `yaml:"expose"`
}

// Container looks up one of the challenge's container templates by name.
func (c Challenge) Container(name string) (Container, bool) {
	for _, container := range c.Containers {
		if container.Name == name {
			return container, true
		}
	}
	return Container{}, false
}

// HasExpose reports whether the challenge advertises any endpoint at all.
func (c Challenge) HasExpose() bool {
	return len(c.Expose) > 0
}
