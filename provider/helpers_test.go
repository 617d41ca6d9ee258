package provider

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/transit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStates struct {
	mu       sync.Mutex
	payloads map[string]types.SecureLinkPayload
}

func newMemoryStates() *memoryStates {
	return &memoryStates{payloads: make(map[string]types.SecureLinkPayload)}
}

func (s *memoryStates) Generate(route string, payloads ...types.SecureLinkPayload) (string, error) {
	token := route + "." + strings.ReplaceAll(uuid.NewString(), "-", "")
	merged := types.SecureLinkPayload{}
	for _, payload := range payloads {
		for k, v := range payload {
			merged[k] = v
		}
	}
	s.mu.Lock()
	s.payloads[token] = merged
	s.mu.Unlock()
	return token, nil
}

func (s *memoryStates) Validate(token string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.payloads[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return map[string]any(payload), nil
}

func newSealer(t *testing.T) Sealer {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	cipher, err := transit.NewAESCipher(map[string]string{"accounts": base64.StdEncoding.EncodeToString(raw)})
	require.NoError(t, err)
	return Sealer{Cipher: cipher, Key: "accounts"}
}
