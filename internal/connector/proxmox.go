package connector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
)

// PVE access tickets are valid for two hours; refresh well before that.
const (
	ticketTTL      = 90 * time.Minute
	ticketCacheKey = "pve-ticket"
)

type ticket struct {
	Ticket    string `json:"ticket"`
	CSRFToken string `json:"CSRFPreventionToken"`
}

// ProxmoxConnector talks to the PVE REST API over HTTPS, authenticating
// with an API token when configured and falling back to ticket login.
type ProxmoxConnector struct {
	baseURL     string
	user        string
	pass        string
	tokenID     string
	tokenSecret string

	client  *http.Client
	tickets *cache.Cache
}

func NewProxmoxConnector(cfg config.Config) (*ProxmoxConnector, error) {
	if cfg.ProxmoxHost == "" {
		return nil, fmt.Errorf("proxmox_host is required for the https connector")
	}
	if cfg.ProxmoxTokenID != "" {
		// The token header is formatted as user!tokenid=secret, so a
		// token is unusable without all three parts.
		if cfg.ProxmoxUser == "" || cfg.ProxmoxTokenSecret == "" {
			return nil, fmt.Errorf("proxmox_token_id needs proxmox_user and proxmox_token_secret")
		}
	} else if cfg.ProxmoxUser == "" || cfg.ProxmoxPass == "" {
		return nil, fmt.Errorf("https connector needs either an API token or user and password")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.NoVerifySSL},
	}

	return &ProxmoxConnector{
		baseURL:     fmt.Sprintf("https://%s:%d/api2/json", cfg.ProxmoxHost, cfg.ProxmoxPort),
		user:        cfg.ProxmoxUser,
		pass:        cfg.ProxmoxPass,
		tokenID:     cfg.ProxmoxTokenID,
		tokenSecret: cfg.ProxmoxTokenSecret,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		tickets: cache.New(ticketTTL, 10*time.Minute),
	}, nil
}

func (pc *ProxmoxConnector) Collect(ctx context.Context) (*model.ClusterSnapshot, error) {
	var nodes []nodeStatus
	if err := pc.get(ctx, "/nodes", &nodes); err != nil {
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
			if err := pc.get(ctx, fmt.Sprintf("/nodes/%s/%s", n.Node, guestType), &listed); err != nil {
				log.Err(err).Send()

				return nil, fmt.Errorf("could not list %s guests on node %s", guestType, n.Node)
			}
			guests[n.Node][guestType] = listed
		}
	}

	return buildSnapshot(nodes, guests)
}

func (pc *ProxmoxConnector) Migrate(ctx context.Context, action *model.MigrationAction) error {
	form := url.Values{"target": {action.Target}}
	switch action.Type {
	case model.GuestQEMU:
		form.Set("online", "1")
	case model.GuestLXC:
		form.Set("restart", "1")
	}

	path := fmt.Sprintf("/nodes/%s/%s/%d/migrate", action.Source, action.Type, action.VMID)
	if err := pc.post(ctx, path, form, nil); err != nil {
		log.Err(err).Msgf("migration of %d to %s was not accepted", action.VMID, action.Target)

		return fmt.Errorf("migrate %d %s -> %s: %w", action.VMID, action.Source, action.Target, err)
	}

	log.Info().Msgf("migration of %d from %s to %s accepted", action.VMID, action.Source, action.Target)

	return nil
}

func (pc *ProxmoxConnector) get(ctx context.Context, path string, out interface{}) error {
	return pc.request(ctx, http.MethodGet, path, nil, out)
}

func (pc *ProxmoxConnector) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	return pc.request(ctx, http.MethodPost, path, form, out)
}

func (pc *ProxmoxConnector) request(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, pc.baseURL+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := pc.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := pc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s", method, path, strings.TrimSpace(resp.Status))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("bad response for %s: %w", path, err)
	}

	return json.Unmarshal(envelope.Data, out)
}

func (pc *ProxmoxConnector) authorize(ctx context.Context, req *http.Request) error {
	if pc.tokenID != "" {
		req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s!%s=%s", pc.user, pc.tokenID, pc.tokenSecret))

		return nil
	}

	t, err := pc.ticket(ctx)
	if err != nil {
		return err
	}

	req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: t.Ticket})
	if req.Method != http.MethodGet {
		req.Header.Set("CSRFPreventionToken", t.CSRFToken)
	}

	return nil
}

// ticket returns a cached access ticket, logging in again only after the
// cached one ages out.
func (pc *ProxmoxConnector) ticket(ctx context.Context) (*ticket, error) {
	if cached, ok := pc.tickets.Get(ticketCacheKey); ok {
		return cached.(*ticket), nil
	}

	form := url.Values{
		"username": {pc.user},
		"password": {pc.pass},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/access/ticket", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := pc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login as %s failed: %s", pc.user, strings.TrimSpace(resp.Status))
	}

	var envelope struct {
		Data ticket `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("bad login response: %w", err)
	}

	pc.tickets.Set(ticketCacheKey, &envelope.Data, cache.DefaultExpiration)

	return &envelope.Data, nil
}
