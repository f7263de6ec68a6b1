package settings

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets such as
// CIPHER_KEY or a recorder's DSN, adapted from go-core/config.SecretManager.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at address, authenticated
// with token.
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

// GetSecret reads the raw data map at path. For KV v2 backends the caller
// must unwrap the nested "data" key — see GetKV2.
func (s *SecretManager) GetSecret(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// GetKV2 reads from a KV v2 backend and returns the inner "data" map,
// unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	raw, err := s.GetSecret(path)
	if err != nil {
		return nil, err
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// ResolveSecrets builds a SecretManager from env's VAULT_ADDR/VAULT_TOKEN
// (defaulted the way cookie-scanner/cmd/api/main.go defaults them) and
// reads the KV v2 secret at VAULT_SECRET_PATH. It returns a nil map and no
// error when VAULT_ADDR isn't set at all, so callers can treat Vault as
// strictly optional: PG_URL/CIPHER_KEY fall back to plain env vars.
func ResolveSecrets(env *Env) (map[string]interface{}, error) {
	address := env.GetString("VAULT_ADDR", "")
	if address == "" {
		return nil, nil
	}
	token := env.GetString("VAULT_TOKEN", "root")
	path := env.GetString("VAULT_SECRET_PATH", "secret/data/arc/eventcore")

	manager, err := NewSecretManager(address, token)
	if err != nil {
		return nil, err
	}
	return manager.GetKV2(path)
}

// SecretString pulls key out of a GetKV2 result as a string, returning ""
// if secrets is nil or the key is absent or not a string.
func SecretString(secrets map[string]interface{}, key string) string {
	if secrets == nil {
		return ""
	}
	v, _ := secrets[key].(string)
	return v
}
