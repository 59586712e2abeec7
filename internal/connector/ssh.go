package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
)

// SSHConnector drives pvesh on a cluster node over SSH, for setups where
// the API port is not reachable from the balancer host. Every call runs in
// its own session on one shared client connection.
type SSHConnector struct {
	client *ssh.Client
}

func NewSSHConnector(cfg config.Config) (*SSHConnector, error) {
	if cfg.ProxmoxHost == "" {
		return nil, fmt.Errorf("proxmox_host is required for the ssh connector")
	}
	if cfg.SSHKeyFile == "" {
		return nil, fmt.Errorf("ssh_key_file is required for the ssh connector")
	}

	keyBytes, err := os.ReadFile(cfg.SSHKeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read ssh key %s: %w", cfg.SSHKeyFile, err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse ssh key %s: %w", cfg.SSHKeyFile, err)
	}

	user := cfg.SSHUser
	if user == "" {
		user = "root"
	}

	sshConfig := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		// The balancer typically runs inside the cluster network
		// against hosts it also trusts with API credentials.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:22", cfg.ProxmoxHost), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", cfg.ProxmoxHost, err)
	}

	return &SSHConnector{client: client}, nil
}

func (sc *SSHConnector) Collect(ctx context.Context) (*model.ClusterSnapshot, error) {
	var nodes []nodeStatus
	if err := sc.pvesh(ctx, "get /nodes", &nodes); err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not list cluster nodes")
	}

	guests := make(map[string]map[model.GuestType][]guestStatus)
	for _, n := range nodes {
		if n.Status != "online" {
			continue
		}

		guests[n.Node] = make(map[model.GuestType][]guestStatus)
		for _, guestType := range []model.GuestType{model.GuestQEMU, model.GuestLXC} {
			var listed []guestStatus
			if err := sc.pvesh(ctx, fmt.Sprintf("get /nodes/%s/%s", n.Node, guestType), &listed); err != nil {
				log.Err(err).Send()

				return nil, fmt.Errorf("could not list %s guests on node %s", guestType, n.Node)
			}
			guests[n.Node][guestType] = listed
		}
	}

	return buildSnapshot(nodes, guests)
}

func (sc *SSHConnector) Migrate(ctx context.Context, action *model.MigrationAction) error {
	command := fmt.Sprintf("create /nodes/%s/%s/%d/migrate --target %s",
		action.Source, action.Type, action.VMID, action.Target)
	switch action.Type {
	case model.GuestQEMU:
		command += " --online 1"
	case model.GuestLXC:
		command += " --restart 1"
	}

	if err := sc.pvesh(ctx, command, nil); err != nil {
		log.Err(err).Msgf("migration of %d to %s was not accepted", action.VMID, action.Target)

		return fmt.Errorf("migrate %d %s -> %s: %w", action.VMID, action.Source, action.Target, err)
	}

	log.Info().Msgf("migration of %d from %s to %s accepted", action.VMID, action.Source, action.Target)

	return nil
}

func (sc *SSHConnector) Close() error {
	return sc.client.Close()
}

// pvesh runs one pvesh invocation and decodes its JSON output. Unlike the
// HTTP API, pvesh prints the bare data payload without an envelope.
func (sc *SSHConnector) pvesh(ctx context.Context, command string, out interface{}) error {
	session, err := sc.client.NewSession()
	if err != nil {
		return fmt.Errorf("could not open ssh session: %w", err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		output, err := session.Output("pvesh " + command + " --output-format json")
		done <- result{output, err}
	}()

	select {
	case <-ctx.Done():
		// Best effort: tear the session down so the remote command
		// does not linger.
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("pvesh %s: %w", command, r.err)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(r.output, out)
	}
}
