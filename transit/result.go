// Package transit encrypts credentials and payload fields through a named
// key, either with Vault's transit engine or a local AES-GCM keyring.
package transit

import "context"

// Status classifies the outcome of a single transit operation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Result is the outcome of encrypting or decrypting one value. An empty
// input yields StatusEmpty, never StatusFailed.
type Result struct {
	Status Status
	Value  string
	Err    error
}

// OK reports whether the operation produced a value.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Empty reports whether there was nothing to transform.
func (r Result) Empty() bool {
	return r.Status == StatusEmpty
}

// Failed reports whether the operation failed.
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Unwrap returns the value or the failure. Empty results return "" and nil.
func (r Result) Unwrap() (string, error) {
	if r.Status == StatusFailed {
		return "", r.Err
	}
	return r.Value, nil
}

func ok(value string) Result {
	return Result{Status: StatusOK, Value: value}
}

func empty() Result {
	return Result{Status: StatusEmpty}
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Cipher encrypts and decrypts values with a named key.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext, key string) Result
	Decrypt(ctx context.Context, ciphertext, key string) Result
	EncryptBatch(ctx context.Context, plaintexts []string, key string) []Result
	DecryptBatch(ctx context.Context, ciphertexts []string, key string) []Result
}

// NopCipher returns values unchanged. It is used when encryption is
// disabled.
type NopCipher struct{}

var _ Cipher = NopCipher{}

func (NopCipher) Encrypt(_ context.Context, plaintext, _ string) Result {
	return passthrough(plaintext)
}

func (NopCipher) Decrypt(_ context.Context, ciphertext, _ string) Result {
	return passthrough(ciphertext)
}

func (NopCipher) EncryptBatch(_ context.Context, values []string, _ string) []Result {
	return mapResults(values, passthrough)
}

func (NopCipher) DecryptBatch(_ context.Context, values []string, _ string) []Result {
	return mapResults(values, passthrough)
}

func passthrough(value string) Result {
	if value == "" {
		return empty()
	}
	return ok(value)
}

func mapResults(values []string, fn func(string) Result) []Result {
	out := make([]Result, len(values))
	for i, value := range values {
		out[i] = fn(value)
	}
	return out
}
