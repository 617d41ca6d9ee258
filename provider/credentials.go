package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/transit"
)

// Credentials is the secret material stored, encrypted, on an account.
type Credentials struct {
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Password     string `json:"password,omitempty"`
}

// Sealer encrypts credentials with a named transit key.
type Sealer struct {
	Cipher transit.Cipher
	Key    string
}

// Seal encrypts creds. Transit failures are returned, never swallowed.
func (s Sealer) Seal(ctx context.Context, creds Credentials) (string, error) {
	if creds == (Credentials{}) {
		return "", ErrMissingCredentials
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	res := s.cipher().Encrypt(ctx, string(payload), s.Key)
	if !res.OK() {
		if res.Err == nil {
			return "", errors.New("go-mailsync: credential encryption returned no value")
		}
		return "", res.Err
	}
	return res.Value, nil
}

// Apply seals creds onto acct.
func (s Sealer) Apply(ctx context.Context, acct *account.Account, creds Credentials) error {
	sealed, err := s.Seal(ctx, creds)
	if err != nil {
		return err
	}
	acct.Credentials = sealed
	acct.CredentialsKey = s.Key
	return nil
}

// Open decrypts the credentials stored on acct, using the key recorded with
// them.
func (s Sealer) Open(ctx context.Context, acct *account.Account) (Credentials, error) {
	if acct == nil {
		return Credentials{}, account.ErrAccountRequired
	}
	key := acct.CredentialsKey
	if key == "" {
		key = s.Key
	}
	res := s.cipher().Decrypt(ctx, acct.Credentials, key)
	switch res.Status {
	case transit.StatusEmpty:
		return Credentials{}, ErrMissingCredentials
	case transit.StatusFailed:
		return Credentials{}, res.Err
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(res.Value), &creds); err != nil {
		return Credentials{}, fmt.Errorf("provider: decode credentials: %w", err)
	}
	return creds, nil
}

func (s Sealer) cipher() transit.Cipher {
	if s.Cipher == nil {
		return transit.NopCipher{}
	}
	return s.Cipher
}
