// Package secretcfg loads bus credentials from a Vault KV v2 backend, the
// way the host process is expected to source BaseConfiguration values before
// handing them to the runtime.
package secretcfg

import (
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/cosmonic-labs/concordance/internal/config"
)

// SecretManager wraps the Vault API client for reading bus credentials.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// secretField reads a string value out of a KV v2 data map, tolerating a
// missing or non-string field as an empty override (the caller's existing
// value is left untouched in that case).
func secretField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

// LoadBusConfiguration reads the bus connection fields from the given KV v2
// path and overlays them onto base, returning the merged configuration. A
// field absent from the secret leaves base's corresponding value in place,
// so Vault only needs to carry the fields it is meant to override.
func (s *SecretManager) LoadBusConfiguration(path string, base config.BaseConfiguration) (config.BaseConfiguration, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return config.BaseConfiguration{}, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return config.BaseConfiguration{}, fmt.Errorf("no data found at %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return config.BaseConfiguration{}, fmt.Errorf("unexpected data format at %s", path)
	}

	out := base
	if v := secretField(data, "bus_url"); v != "" {
		out.BusURL = v
	}
	if v := secretField(data, "user_jwt"); v != "" {
		out.UserJWT = v
	}
	if v := secretField(data, "user_seed"); v != "" {
		out.UserSeed = v
	}
	if v := secretField(data, "bus_domain"); v != "" {
		out.BusDomain = v
	}
	return out, nil
}
