package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "smartonboard"

// KeyringStore is a store.Store backed by the operating system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring returns a KeyringStore using the first available system
// backend, falling back to an encrypted file under fileDir.
func OpenKeyring(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("smartonboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Get retrieves a credential value by key from the keyring.
func (k *KeyringStore) Get(_ context.Context, key string) (string, bool, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), true, nil
}

// Set stores a credential value by key in the keyring.
func (k *KeyringStore) Set(_ context.Context, key string, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Remove deletes a credential by key from the keyring.
func (k *KeyringStore) Remove(_ context.Context, key string) error {
	err := k.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
