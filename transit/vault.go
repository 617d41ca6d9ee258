package transit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-mailsync/pkg/types"
	vault "github.com/hashicorp/vault/api"
)

// ErrKeyRequired is returned when no key name was supplied.
var ErrKeyRequired = errors.New("go-mailsync: transit key name required")

// VaultConfig configures the Vault transit client.
type VaultConfig struct {
	Address        string
	Token          string
	RoleID         string
	SecretID       string
	Mount          string
	// DisableRetries turns off the client's retry on 5xx responses.
	DisableRetries bool
	Logger         types.Logger
}

// VaultCipher talks to Vault's transit secrets engine.
type VaultCipher struct {
	client *vault.Client
	mount  string
	logger types.Logger
}

var _ Cipher = (*VaultCipher)(nil)

// NewVaultCipher builds the client and logs in. A static token wins over
// AppRole credentials.
func NewVaultCipher(ctx context.Context, cfg VaultConfig) (*VaultCipher, error) {
	vcfg := vault.DefaultConfig()
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	if cfg.DisableRetries {
		vcfg.MaxRetries = 0
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("transit: vault client: %w", err)
	}
	switch {
	case cfg.Token != "":
		client.SetToken(cfg.Token)
	case cfg.RoleID != "":
		secret, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]any{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return nil, types.NewTransientError(err, "transit: approle login")
		}
		if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
			return nil, errors.New("transit: approle login returned no token")
		}
		client.SetToken(secret.Auth.ClientToken)
	}
	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "transit"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &VaultCipher{client: client, mount: mount, logger: logger}, nil
}

func (c *VaultCipher) Encrypt(ctx context.Context, plaintext, key string) Result {
	if plaintext == "" {
		return empty()
	}
	if key == "" {
		return failed(ErrKeyRequired)
	}
	secret, err := c.write(ctx, "encrypt", key, map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString([]byte(plaintext)),
	})
	if err != nil {
		return failed(err)
	}
	value, _ := secret["ciphertext"].(string)
	if value == "" {
		return failed(errors.New("transit: vault returned no ciphertext"))
	}
	return ok(value)
}

func (c *VaultCipher) Decrypt(ctx context.Context, ciphertext, key string) Result {
	if ciphertext == "" {
		return empty()
	}
	if key == "" {
		return failed(ErrKeyRequired)
	}
	secret, err := c.write(ctx, "decrypt", key, map[string]any{"ciphertext": ciphertext})
	if err != nil {
		return failed(err)
	}
	return decodePlaintext(secret["plaintext"])
}

// EncryptBatch encrypts every non-empty value in one request. Empty inputs
// keep their position as StatusEmpty results.
func (c *VaultCipher) EncryptBatch(ctx context.Context, values []string, key string) []Result {
	return c.batch(ctx, "encrypt", key, values, func(v string) map[string]any {
		return map[string]any{"plaintext": base64.StdEncoding.EncodeToString([]byte(v))}
	}, func(item map[string]any) Result {
		value, _ := item["ciphertext"].(string)
		if value == "" {
			return failed(errors.New("transit: vault returned no ciphertext"))
		}
		return ok(value)
	})
}

// DecryptBatch decrypts every non-empty value in one request.
func (c *VaultCipher) DecryptBatch(ctx context.Context, values []string, key string) []Result {
	return c.batch(ctx, "decrypt", key, values, func(v string) map[string]any {
		return map[string]any{"ciphertext": v}
	}, func(item map[string]any) Result {
		return decodePlaintext(item["plaintext"])
	})
}

func (c *VaultCipher) batch(
	ctx context.Context,
	op, key string,
	values []string,
	input func(string) map[string]any,
	output func(map[string]any) Result,
) []Result {
	results := make([]Result, len(values))
	positions := make([]int, 0, len(values))
	batch := make([]map[string]any, 0, len(values))
	for i, value := range values {
		if value == "" {
			results[i] = empty()
			continue
		}
		positions = append(positions, i)
		batch = append(batch, input(value))
	}
	if len(batch) == 0 {
		return results
	}
	fail := func(err error) []Result {
		for _, pos := range positions {
			results[pos] = failed(err)
		}
		return results
	}
	if key == "" {
		return fail(ErrKeyRequired)
	}
	data, err := c.write(ctx, op, key, map[string]any{"batch_input": batch})
	if err != nil {
		return fail(err)
	}
	items, _ := data["batch_results"].([]any)
	if len(items) != len(batch) {
		return fail(fmt.Errorf("transit: expected %d batch results, got %d", len(batch), len(items)))
	}
	for i, raw := range items {
		item, _ := raw.(map[string]any)
		if msg, _ := item["error"].(string); msg != "" {
			results[positions[i]] = failed(errors.New("transit: " + msg))
			continue
		}
		results[positions[i]] = output(item)
	}
	return results
}

func (c *VaultCipher) write(ctx context.Context, op, key string, data map[string]any) (map[string]any, error) {
	path := fmt.Sprintf("%s/%s/%s", c.mount, op, key)
	secret, err := c.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		c.logger.Error("vault transit request failed", err, "path", path)
		return nil, types.NewTransientError(err, "transit: vault "+op)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.New("transit: empty vault response")
	}
	return secret.Data, nil
}

func decodePlaintext(raw any) Result {
	encoded, _ := raw.(string)
	if encoded == "" {
		return empty()
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return failed(fmt.Errorf("transit: decode plaintext: %w", err))
	}
	if len(plaintext) == 0 {
		return empty()
	}
	return ok(string(plaintext))
}
