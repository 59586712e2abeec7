package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/connector"
	"github.com/padthaitofuhot/pve-cslb/internal/scheduler"
	"github.com/padthaitofuhot/pve-cslb/logging"
	"github.com/padthaitofuhot/pve-cslb/sim"
)

// Version is set during build.
var Version = "dev"

var log = logging.Get()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Msgf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:     "pve-cslb",
		Short:   "A workload balancing engine for Proxmox PVE",
		Long:    "pve-cslb identifies nodes with imbalanced loads and migrates workloads around to even things out.",
		Version: Version,

		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			if verbose {
				logging.SetVerbose()
			}

			return runOnce(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config-file", "c", config.DefaultConfigFile, "YAML configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Increase verbosity")
	flags.BoolP("dry-run", "d", false, "Perform read-only analysis; no write actions")
	flags.String("proxmox-host", "", "Proxmox host")
	flags.Int("proxmox-port", config.DefaultProxmoxPort, "Proxmox port")
	flags.String("proxmox-user", "", "Proxmox user")
	flags.String("proxmox-pass", "", "Proxmox password")
	flags.String("proxmox-token-id", "", "Proxmox API token id")
	flags.String("proxmox-token-secret", "", "Proxmox API token secret")
	flags.Bool("no-verify-ssl", false, "Skip TLS certificate verification")
	flags.String("connector", "https", "Cluster API backend (https, ssh or const)")
	flags.String("ssh-user", "", "SSH user for the ssh connector")
	flags.String("ssh-key-file", "", "SSH private key for the ssh connector")
	flags.IntP("max-migrations", "m", config.DefaultMaxMigrations, "Max number of simultaneous migrations to spawn")
	flags.Float64("p-cpu", config.DefaultPercentCPU, "Percent priority of CPU rule (p-cpu and p-mem must equal 1.0)")
	flags.Float64("p-mem", config.DefaultPercentMem, "Percent priority of MEM rule (p-cpu and p-mem must equal 1.0)")
	flags.Float64("tolerance", config.DefaultTolerance, "Score distance from the mean below which a node is balanced")
	flags.StringArray("exclude-node", nil, "Exclude a node (can be specified multiple times)")
	flags.IntSlice("exclude-vmid", nil, "Exclude a VMID (can be specified multiple times)")
	flags.StringArray("exclude-type", nil, "Exclude a workload type ('lxc' or 'qemu')")
	flags.StringArray("include-node", nil, "Include a previously excluded node")
	flags.IntSlice("include-vmid", nil, "Include a previously excluded VMID")
	flags.StringArray("include-type", nil, "Include a previously excluded workload type")

	cmd.AddCommand(newSimulateCmd())

	return cmd
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate FILE",
		Short: "Play a synthetic cluster scenario through the balancer for several rounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sim.Start(args[0])
		},
	}
}

// loadConfig reads the config file and lets explicitly set flags override
// it.
func loadConfig(cmd *cobra.Command, configFile string) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags().Changed("config-file"))
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("proxmox-host") {
		cfg.ProxmoxHost, _ = flags.GetString("proxmox-host")
	}
	if flags.Changed("proxmox-port") {
		cfg.ProxmoxPort, _ = flags.GetInt("proxmox-port")
	}
	if flags.Changed("proxmox-user") {
		cfg.ProxmoxUser, _ = flags.GetString("proxmox-user")
	}
	if flags.Changed("proxmox-pass") {
		cfg.ProxmoxPass, _ = flags.GetString("proxmox-pass")
	}
	if flags.Changed("proxmox-token-id") {
		cfg.ProxmoxTokenID, _ = flags.GetString("proxmox-token-id")
	}
	if flags.Changed("proxmox-token-secret") {
		cfg.ProxmoxTokenSecret, _ = flags.GetString("proxmox-token-secret")
	}
	if flags.Changed("no-verify-ssl") {
		cfg.NoVerifySSL, _ = flags.GetBool("no-verify-ssl")
	}
	if flags.Changed("connector") {
		cfg.Connector, _ = flags.GetString("connector")
	}
	if flags.Changed("ssh-user") {
		cfg.SSHUser, _ = flags.GetString("ssh-user")
	}
	if flags.Changed("ssh-key-file") {
		cfg.SSHKeyFile, _ = flags.GetString("ssh-key-file")
	}
	if flags.Changed("max-migrations") {
		cfg.MaxMigrations, _ = flags.GetInt("max-migrations")
	}
	if flags.Changed("p-cpu") {
		cfg.PercentCPU, _ = flags.GetFloat64("p-cpu")
	}
	if flags.Changed("p-mem") {
		cfg.PercentMem, _ = flags.GetFloat64("p-mem")
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("exclude-node") {
		cfg.ExcludeNodes, _ = flags.GetStringArray("exclude-node")
	}
	if flags.Changed("exclude-vmid") {
		cfg.ExcludeVMIDs, _ = flags.GetIntSlice("exclude-vmid")
	}
	if flags.Changed("exclude-type") {
		cfg.ExcludeTypes, _ = flags.GetStringArray("exclude-type")
	}
	if flags.Changed("include-node") {
		cfg.IncludeNodes, _ = flags.GetStringArray("include-node")
	}
	if flags.Changed("include-vmid") {
		cfg.IncludeVMIDs, _ = flags.GetIntSlice("include-vmid")
	}
	if flags.Changed("include-type") {
		cfg.IncludeTypes, _ = flags.GetStringArray("include-type")
	}

	if cfg.ProxmoxPass == "" {
		cfg.ProxmoxPass = os.Getenv("PVE_PASSWORD")
	}

	return cfg, nil
}

func buildConnector(cfg config.Config) (connector.Connector, error) {
	switch cfg.Connector {
	case "https":
		return connector.NewProxmoxConnector(cfg)
	case "ssh":
		return connector.NewSSHConnector(cfg)
	case "const":
		return connector.NewConstantConnector(), nil
	default:
		return nil, fmt.Errorf("connector kind %q is not recognized", cfg.Connector)
	}
}

func runOnce(cfg config.Config) error {
	for k, v := range cfg.Redacted() {
		log.Debug().Msgf("%s: %v", k, v)
	}

	c, err := buildConnector(cfg)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg, c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Println(report)

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d migrations failed", report.Failed, len(report.Results))
	}

	return nil
}
