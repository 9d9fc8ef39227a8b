package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
)

// File format: [magic (4)] [version (1)] [salt (16)] [nonce (12)] [ciphertext].
// The payload is a JSON map of secret name to value, sealed with AES-256-GCM
// under a key derived from the master key with Argon2id.
const (
	magicHeader = "RLAY"
	fileVersion = byte(0x01)
	saltLength  = 16
	nonceLength = 12
)

// Argon2id parameters (OWASP recommended).
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// FileKeystore implements Keystore using an encrypted file.
type FileKeystore struct {
	path      string
	masterKey []byte
	mu        sync.RWMutex
}

// OpenFile creates a file-backed keystore at the given path. The master key
// is derived from machine-specific data so the file is only readable on the
// host that wrote it.
func OpenFile(path string) (*FileKeystore, error) {
	return OpenFileWithKey(path, machineKey())
}

// OpenFileWithKey creates a file-backed keystore with an explicit master key.
func OpenFileWithKey(path string, masterKey []byte) (*FileKeystore, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("keystore: empty master key")
	}
	return &FileKeystore{path: path, masterKey: masterKey}, nil
}

// Set stores a named secret.
func (f *FileKeystore) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[name] = value
	return f.save(data)
}

// Get retrieves a secret by name.
func (f *FileKeystore) Get(name string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	value, ok := data[name]
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return value, nil
}

// Delete removes a secret by name.
func (f *FileKeystore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(data, name)
	return f.save(data)
}

// List returns all stored secret names, sorted.
func (f *FileKeystore) List() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileKeystore) load() (map[string]string, error) {
	data := make(map[string]string)

	sealed, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if len(sealed) == 0 {
		return data, nil
	}

	plaintext, err := f.decrypt(sealed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *FileKeystore) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return err
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return err
	}
	sealed, err := f.encrypt(plaintext)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, sealed, 0600)
}

func deriveKey(masterKey, salt []byte) []byte {
	return argon2.IDKey(masterKey, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func (f *FileKeystore) encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := newGCM(deriveKey(f.masterKey, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(magicHeader)+1+saltLength+nonceLength)
	header = append(header, []byte(magicHeader)...)
	header = append(header, fileVersion)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated so tampering with version or salt fails
	// the GCM tag check.
	sealed := gcm.Seal(nil, nonce, plaintext, header)
	return append(header, sealed...), nil
}

func (f *FileKeystore) decrypt(sealed []byte) ([]byte, error) {
	headerLen := len(magicHeader) + 1 + saltLength + nonceLength
	if len(sealed) < headerLen {
		return nil, errors.New("keystore: file too short")
	}
	if string(sealed[:len(magicHeader)]) != magicHeader || sealed[len(magicHeader)] != fileVersion {
		return nil, errors.New("keystore: unrecognized file format")
	}

	offset := len(magicHeader) + 1
	salt := sealed[offset : offset+saltLength]
	offset += saltLength
	nonce := sealed[offset : offset+nonceLength]
	offset += nonceLength
	header := sealed[:offset]

	gcm, err := newGCM(deriveKey(f.masterKey, salt))
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, sealed[offset:], header)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// machineKey builds the default master key from host-specific data. The
// Argon2id salt stored per file supplies the randomness the material lacks.
func machineKey() []byte {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	return []byte(hostname + ":" + username + ":relay-keystore")
}

var _ Keystore = (*FileKeystore)(nil)
