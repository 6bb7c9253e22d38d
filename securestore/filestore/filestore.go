package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/dropzone-client/securestore"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltLength = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrDecrypt is returned by Open when the file cannot be authenticated with
// the supplied passphrase.
var ErrDecrypt = errors.New("secure store: decryption failed")

var _ securestore.Store = (*Store)(nil)

type envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// Store keeps every value in a single XChaCha20-Poly1305 encrypted file.
// Each Set or Remove rewrites the file atomically and fsyncs it before
// returning, so a value is durable once the call returns.
type Store struct {
	path string
	salt []byte
	key  []byte

	mu     sync.RWMutex
	values map[string]string
}

// Open loads the store at path, creating it on first write. The directory is
// created with 0700 permissions if needed.
func Open(path, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, errors.New("[filestore Open] passphrase is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filestore Open] mkdir: %w", err)
	}

	s := &Store{path: path, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("[filestore Open] salt: %w", err)
		}
		s.key = deriveKey(passphrase, s.salt)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("[filestore Open] read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("[filestore Open] decode: %w", err)
	}
	s.salt = env.Salt
	s.key = deriveKey(passphrase, s.salt)

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("[filestore Open] cipher: %w", err)
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, env.Salt)
	if err != nil {
		return nil, ErrDecrypt
	}
	if err := json.Unmarshal(plain, &s.values); err != nil {
		return nil, fmt.Errorf("[filestore Open] values: %w", err)
	}
	return s, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.flush(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// flush must be called with mu held.
func (s *Store) flush() error {
	plain, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("[filestore flush] encode: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("[filestore flush] cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("[filestore flush] nonce: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Salt:  s.salt,
		Nonce: nonce,
		Data:  aead.Seal(nil, nonce, plain, s.salt),
	})
	if err != nil {
		return fmt.Errorf("[filestore flush] envelope: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".securestore-*")
	if err != nil {
		return fmt.Errorf("[filestore flush] temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore flush] write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore flush] sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filestore flush] close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("[filestore flush] chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("[filestore flush] rename: %w", err)
	}
	return nil
}
