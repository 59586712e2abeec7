package config

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "/etc/pve-cslb.yml"

// Defaults for the balancing engine.
const (
	DefaultTolerance     = 0.2
	DefaultPercentCPU    = 0.4
	DefaultPercentMem    = 0.6
	DefaultMaxMigrations = 5
	DefaultProxmoxPort   = 8006
)

const weightEpsilon = 1e-9

// Config is the full configuration of one balancing run. It is built once
// in main and passed by value into the scheduler; the engine never reads
// ambient process state.
type Config struct {
	ProxmoxHost        string `yaml:"proxmox_host"`
	ProxmoxPort        int    `yaml:"proxmox_port"`
	ProxmoxUser        string `yaml:"proxmox_user"`
	ProxmoxPass        string `yaml:"proxmox_pass"`
	ProxmoxTokenID     string `yaml:"proxmox_token_id"`
	ProxmoxTokenSecret string `yaml:"proxmox_token_secret"`
	NoVerifySSL        bool   `yaml:"no_verify_ssl"`

	// Connector selects the cluster API backend: "https", "ssh" or "const".
	Connector  string `yaml:"connector"`
	SSHUser    string `yaml:"ssh_user"`
	SSHKeyFile string `yaml:"ssh_key_file"`

	Tolerance     float64 `yaml:"tolerance"`
	PercentCPU    float64 `yaml:"percent_cpu"`
	PercentMem    float64 `yaml:"percent_mem"`
	MaxMigrations int     `yaml:"max_migrations"`
	DryRun        bool    `yaml:"dry_run"`

	ExcludeNodes []string `yaml:"exclude_nodes"`
	IncludeNodes []string `yaml:"include_nodes"`
	ExcludeVMIDs []int    `yaml:"exclude_vmids"`
	IncludeVMIDs []int    `yaml:"include_vmids"`
	ExcludeTypes []string `yaml:"exclude_types"`
	IncludeTypes []string `yaml:"include_types"`
}

// New returns a Config carrying the engine defaults.
func New() Config {
	return Config{
		ProxmoxPort:   DefaultProxmoxPort,
		Connector:     "https",
		Tolerance:     DefaultTolerance,
		PercentCPU:    DefaultPercentCPU,
		PercentMem:    DefaultPercentMem,
		MaxMigrations: DefaultMaxMigrations,
	}
}

// Load reads a YAML config file over the defaults. A missing file is only
// an error when the path was explicitly given.
func Load(path string, explicit bool) (Config, error) {
	cfg := New()

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(yamlFile, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations the engine must never run with. It is
// called before any snapshot is collected.
func (c Config) Validate() error {
	if math.Abs(c.PercentCPU+c.PercentMem-1.0) > weightEpsilon {
		return fmt.Errorf("percent_cpu (%g) and percent_mem (%g) must sum to 1.0", c.PercentCPU, c.PercentMem)
	}
	if c.PercentCPU < 0 || c.PercentMem < 0 {
		return fmt.Errorf("resource weights must not be negative")
	}
	if c.Tolerance < 0 || c.Tolerance >= 1 {
		return fmt.Errorf("tolerance %g out of range [0, 1)", c.Tolerance)
	}
	if c.MaxMigrations <= 0 {
		return fmt.Errorf("max_migrations must be positive, got %d", c.MaxMigrations)
	}

	for _, t := range append(append([]string{}, c.ExcludeTypes...), c.IncludeTypes...) {
		if t != "lxc" && t != "qemu" {
			return fmt.Errorf("unknown workload type %q (must be lxc or qemu)", t)
		}
	}

	switch c.Connector {
	case "https", "ssh", "const":
	default:
		return fmt.Errorf("connector kind %q is not recognized", c.Connector)
	}

	return nil
}

// Weights returns the (cpu, mem) priority vector used for load scoring.
func (c Config) Weights() *mat.VecDense {
	return mat.NewVecDense(2, []float64{c.PercentCPU, c.PercentMem})
}

// Redacted returns the key/value view logged at debug level, with secrets
// masked the way the effective config is dumped on startup.
func (c Config) Redacted() map[string]interface{} {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}

	return map[string]interface{}{
		"proxmox_host":         c.ProxmoxHost,
		"proxmox_port":         c.ProxmoxPort,
		"proxmox_user":         c.ProxmoxUser,
		"proxmox_pass":         mask(c.ProxmoxPass),
		"proxmox_token_id":     c.ProxmoxTokenID,
		"proxmox_token_secret": mask(c.ProxmoxTokenSecret),
		"no_verify_ssl":        c.NoVerifySSL,
		"connector":            c.Connector,
		"tolerance":            c.Tolerance,
		"percent_cpu":          c.PercentCPU,
		"percent_mem":          c.PercentMem,
		"max_migrations":       c.MaxMigrations,
		"dry_run":              c.DryRun,
		"exclude_nodes":        c.ExcludeNodes,
		"include_nodes":        c.IncludeNodes,
		"exclude_vmids":        c.ExcludeVMIDs,
		"include_vmids":        c.IncludeVMIDs,
		"exclude_types":        c.ExcludeTypes,
		"include_types":        c.IncludeTypes,
	}
}
