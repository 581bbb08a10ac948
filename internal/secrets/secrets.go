package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config configures the Vault-backed secret store
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	SecretPath string // KV v2 mount prefix, e.g. "secret/data/alert-engine"
}

// Client reads delivery credentials (webhook URLs, bot tokens) from
// Vault, with a local fallback map when Vault is disabled.
type Client struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient creates a new secret store client. With Enabled false the
// client serves only values placed with Put, which suits development.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[string]string),
	}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	c.client = client
	return c, nil
}

// Get retrieves a named secret, consulting the cache first
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return "", fmt.Errorf("secret %q not found and vault is disabled", name)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.path(name))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %q not found", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format for %q", name)
	}
	value, ok := data["value"].(string)
	if !ok {
		return "", fmt.Errorf("secret %q has no value field", name)
	}

	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return value, nil
}

// Put stores a named secret and updates the cache
func (c *Client) Put(ctx context.Context, name, value string) error {
	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{"value": value},
	}
	if _, err := c.client.Logical().WriteWithContext(ctx, c.path(name), payload); err != nil {
		return fmt.Errorf("failed to store secret in vault: %w", err)
	}
	return nil
}

func (c *Client) path(name string) string {
	prefix := c.config.SecretPath
	if prefix == "" {
		prefix = "secret/data/alert-engine"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
