// Package vault fetches platform credentials from HashiCorp Vault.
package vault

import (
	"context"
	"fmt"
	"sync"

	"matrix-board-platform/config"

	"github.com/hashicorp/vault/api"
)

// Credentials holds the secrets the platform reads at startup. Anything
// left empty in Vault keeps its config/env value.
type Credentials struct {
	DBPassword    string `json:"db_password"`
	RedisPassword string `json:"redis_password"`
}

// Client wraps the HashiCorp Vault client. When Vault is disabled the
// client is inert and Load returns empty credentials.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *Credentials
}

// NewClient creates a Vault client. With Enabled false no connection is
// attempted.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// Load reads the platform credentials from the KV v2 secret path.
func (c *Client) Load(ctx context.Context) (*Credentials, error) {
	if !c.config.Enabled {
		return &Credentials{}, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		creds := c.cached
		c.mu.RUnlock()
		return creds, nil
	}
	c.mu.RUnlock()

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", path)
	}

	creds := &Credentials{
		DBPassword:    getString(data, "db_password"),
		RedisPassword: getString(data, "redis_password"),
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	return creds, nil
}

// Apply overlays Vault-held credentials onto the runtime config.
func (c *Client) Apply(ctx context.Context, cfg *config.Config) error {
	creds, err := c.Load(ctx)
	if err != nil {
		return err
	}
	if creds.DBPassword != "" {
		cfg.DatabaseConfig.Password = creds.DBPassword
	}
	if creds.RedisPassword != "" {
		cfg.RedisConfig.Password = creds.RedisPassword
	}
	return nil
}

// IsEnabled returns whether Vault is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
