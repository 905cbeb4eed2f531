// Package catalog loads, validates, and serves the in-memory challenge
// catalog: the validated set of Challenge documents the lifecycle depends
// on for name grammar, expose->container referential integrity, and
// resource-limit parsing. The catalog is built once at startup and is
// immutable thereafter.
package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/metrics"
)

var nameGrammar = regexp.MustCompile(`^[a-z0-9-]+$`)

// Catalog is the validated, read-only set of loaded challenges.
type Catalog struct {
	byName map[string]Challenge
}

// Get returns the named challenge, failing with NOT_FOUND if absent.
func (c *Catalog) Get(name string) (Challenge, error) {
	ch, ok := c.byName[name]
	if !ok {
		return Challenge{}, instancerr.NotFoundf("challenge %q not found", name)
	}
	return ch, nil
}

// All returns every loaded challenge, in no particular order.
func (c *Catalog) All() []Challenge {
	out := make([]Challenge, 0, len(c.byName))
	for _, ch := range c.byName {
		out = append(out, ch)
	}
	return out
}

// Load scans path (a single file, or a directory searched recursively for
// challenge.yml/challenge.yaml) and builds a Catalog. A document that fails
// validation is logged and skipped; other documents still load.
func Load(path string) (*Catalog, error) {
	logger := log.WithComponent("catalog")

	files, err := discoverFiles(path)
	if err != nil {
		return nil, fmt.Errorf("discovering challenge files under %s: %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn().Str("path", path).Msg("no challenge configuration files found")
	}

	byName := make(map[string]Challenge)
	for _, file := range files {
		logger.Info().Str("file", file).Msg("loading challenges")
		challenges, err := loadFile(file)
		if err != nil {
			logger.Error().Err(err).Str("file", file).Msg("error reading challenge file")
			continue
		}
		for _, ch := range challenges {
			if err := validate(ch); err != nil {
				logger.Error().Err(err).Str("file", file).Str("challenge", ch.Name).Msg("rejected challenge document")
				metrics.CatalogRejectedDocumentsTotal.Inc()
				continue
			}
			applyDefaultsAndWarn(&ch, logger)
			byName[ch.Name] = ch
			logger.Info().Str("challenge", ch.Name).Str("file", file).Msg("loaded challenge")
		}
	}

	logger.Info().Int("challenges", len(byName)).Int("files", len(files)).Msg("catalog loaded")
	metrics.CatalogChallengesTotal.Set(float64(len(byName)))
	return &Catalog{byName: byName}, nil
}

func discoverFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	seen := make(map[string]struct{})
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "challenge.yml" || name == "challenge.yaml" {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				files = append(files, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func loadFile(path string) ([]Challenge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Challenge
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	for {
		var raw rawChallenge
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		out = append(out, raw.toChallenge())
	}
	return out, nil
}

// rawChallenge mirrors Challenge; its rawContainer entries use pointer fields
// for the Security and Limits sub-documents so unset sections can be told
// apart from explicitly empty ones and defaults applied after decode, the way
// the original catalog's pydantic model defaults them.
type rawChallenge struct {
	Name       string          `yaml:"name"`
	Timeout    int             `yaml:"timeout"`
	Containers []rawContainer  `yaml:"containers"`
	Expose     []ExposeRule    `yaml:"expose"`
}

type rawContainer struct {
	Name     string            `yaml:"name"`
	Image    string            `yaml:"image"`
	Env      map[string]string `yaml:"env"`
	Egress   bool              `yaml:"egress"`
	Security *Security         `yaml:"security"`
	Limits   *Limits           `yaml:"limits"`
}

func (r rawChallenge) toChallenge() Challenge {
	ch := Challenge{
		Name:    r.Name,
		Timeout: r.Timeout,
		Expose:  r.Expose,
	}
	ch.Containers = make([]Container, 0, len(r.Containers))
	for _, rc := range r.Containers {
		c := Container{
			Name:   rc.Name,
			Image:  rc.Image,
			Env:    rc.Env,
			Egress: rc.Egress,
		}
		if rc.Security != nil {
			c.Security = *rc.Security
		} else {
			c.Security = DefaultSecurity()
		}
		if rc.Limits != nil {
			c.Limits = *rc.Limits
		} else {
			c.Limits = DefaultLimits()
		}
		ch.Containers = append(ch.Containers, c)
	}
	return ch
}

// validate enforces the load-time invariants: name grammar, unique container
// names, and expose referential integrity. Limit parsing errors are also
// load-time failures since a challenge whose limits don't parse can never
// be started.
func validate(ch Challenge) error {
	if !nameGrammar.MatchString(ch.Name) {
		return fmt.Errorf("challenge name %q must match [a-z0-9-]+", ch.Name)
	}
	if len(ch.Containers) == 0 {
		return fmt.Errorf("challenge %q has no containers", ch.Name)
	}
	if ch.Timeout <= 0 {
		return fmt.Errorf("challenge %q has non-positive timeout", ch.Name)
	}

	seen := make(map[string]struct{}, len(ch.Containers))
	for _, c := range ch.Containers {
		if !nameGrammar.MatchString(c.Name) {
			return fmt.Errorf("container name %q in challenge %q must match [a-z0-9-]+", c.Name, ch.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate container name %q in challenge %q", c.Name, ch.Name)
		}
		seen[c.Name] = struct{}{}

		if _, err := ParseMemory(c.Limits.Memory); err != nil {
			return fmt.Errorf("container %q in challenge %q: %w", c.Name, ch.Name, err)
		}
		if _, err := ParseCPU(c.Limits.CPU); err != nil {
			return fmt.Errorf("container %q in challenge %q: %w", c.Name, ch.Name, err)
		}
	}

	for _, e := range ch.Expose {
		if _, ok := seen[e.ContainerName]; !ok {
			return fmt.Errorf("expose references unknown container %q in challenge %q", e.ContainerName, ch.Name)
		}
		switch e.Kind {
		case ExposeHTTP, ExposeHTTPS, ExposeTCP:
		default:
			return fmt.Errorf("expose has unknown kind %q in challenge %q", e.Kind, ch.Name)
		}
	}

	return nil
}

// applyDefaultsAndWarn fills in the parsed MemoryBytes/NanoCPUs fields and
// logs (without rejecting) non-positive limits, matching the catalog
// source's warning-only behavior for limits that parsed but are useless.
func applyDefaultsAndWarn(ch *Challenge, logger zerolog.Logger) {
	for i := range ch.Containers {
		c := &ch.Containers[i]
		memBytes, _ := ParseMemory(c.Limits.Memory)
		nanoCPUs, _ := ParseCPU(c.Limits.CPU)
		c.Limits.MemoryBytes = memBytes
		c.Limits.NanoCPUs = nanoCPUs

		if !c.Security.ReadOnlyFS {
			logger.Warn().Str("container", c.Name).Msg("container has read_only_fs set to false")
		}
		if len(c.Security.SecurityOpt) == 0 {
			logger.Warn().Str("container", c.Name).Msg("container has empty security_opt list")
		}
		if memBytes <= 0 {
			logger.Warn().Str("container", c.Name).Msg("container has non-positive memory limit")
		}
		if nanoCPUs <= 0 {
			logger.Warn().Str("container", c.Name).Msg("container has non-positive cpu limit")
		}
		if c.Limits.PidsLimit <= 0 {
			logger.Warn().Str("container", c.Name).Msg("container has non-positive pids_limit")
		}
	}
}
