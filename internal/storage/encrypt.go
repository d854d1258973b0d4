// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// AT-REST ENCRYPTION
// =============================================================================

// Conversations can optionally be encrypted on disk with AES-256-GCM. The
// key is derived from a passphrase with PBKDF2 using a per-store salt kept
// next to the conversation files. Encrypted files carry a versioned header
// so loading detects them without any out-of-band state:
//
//	magic (6 bytes) || version (1 byte) || nonce (12 bytes) || ciphertext+tag
//
// Plaintext and encrypted files can coexist in one store; readFile checks
// the magic per file, so turning encryption on does not require rewriting
// existing history.

const (
	// keySize is 32 bytes for AES-256
	keySize = 32

	// nonceSize is the GCM standard nonce size
	nonceSize = 12

	// saltSize for PBKDF2 key derivation
	saltSize = 32

	// pbkdf2Iterations per OWASP 2023 recommendation for PBKDF2-SHA-256
	pbkdf2Iterations = 600000

	// encVersion is the current encrypted file format version
	encVersion = 0x01

	// saltFileName holds the per-store PBKDF2 salt inside BaseDir
	saltFileName = "salt.bin"
)

// encMagic marks an encrypted conversation file.
var encMagic = []byte("GLMENC")

// Encryption errors.
var (
	// ErrEncrypted is returned when loading an encrypted conversation from
	// a store that has no passphrase configured.
	ErrEncrypted = errors.New("conversation is encrypted: no passphrase configured")

	// ErrDecryptionFailed indicates wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidCiphertext indicates a malformed encrypted file.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrUnsupportedVersion indicates an encrypted file from a newer format.
	ErrUnsupportedVersion = errors.New("unsupported encryption format version")

	// ErrEmptyPassphrase is returned when enabling encryption without one.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// storeCipher wraps the AEAD used for sealing conversation files.
type storeCipher struct {
	aead cipher.AEAD
}

// EnableEncryption derives a key from the passphrase and encrypts all
// subsequent writes. The salt is created on first use and persisted in the
// store directory; the same passphrase then opens the store on later runs.
func (s *Store) EnableEncryption(passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}

	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return err
	}

	key := deriveKey([]byte(passphrase), salt)
	// SECURITY: Zero key material after the cipher has its key schedule
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	s.cipher = &storeCipher{aead: aead}
	return nil
}

// EncryptionEnabled reports whether writes are being encrypted.
func (s *Store) EncryptionEnabled() bool {
	return s.cipher != nil
}

// loadOrCreateSalt reads the store salt, generating and persisting a fresh
// one if none exists yet.
func (s *Store) loadOrCreateSalt() ([]byte, error) {
	saltPath := filepath.Join(s.BaseDir, saltFileName)

	salt, err := os.ReadFile(saltPath)
	if err == nil {
		if len(salt) != saltSize {
			return nil, fmt.Errorf("corrupted salt file %s: expected %d bytes, got %d", saltPath, saltSize, len(salt))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(saltPath, salt, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to persist salt: %w", err)
	}

	return salt, nil
}

// deriveKey derives an AES-256 key from a passphrase using PBKDF2-SHA-256.
func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iterations, keySize, sha256.New)
}

// seal encrypts plaintext and prepends the versioned header.
func (c *storeCipher) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := make([]byte, 0, len(encMagic)+1+nonceSize)
	header = append(header, encMagic...)
	header = append(header, encVersion)
	header = append(header, nonce...)

	// Seal appends ciphertext and authentication tag after the header
	return c.aead.Seal(header, nonce, plaintext, nil), nil
}

// open verifies the header and decrypts the payload.
func (c *storeCipher) open(data []byte) ([]byte, error) {
	if !IsEncryptedData(data) {
		return nil, ErrInvalidCiphertext
	}

	rest := data[len(encMagic):]
	if len(rest) < 1+nonceSize {
		return nil, ErrInvalidCiphertext
	}
	if rest[0] != encVersion {
		return nil, ErrUnsupportedVersion
	}

	nonce := rest[1 : 1+nonceSize]
	ciphertext := rest[1+nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// IsEncryptedData reports whether data carries the encrypted file magic.
func IsEncryptedData(data []byte) bool {
	return bytes.HasPrefix(data, encMagic)
}

// zeroBytes securely wipes a byte slice.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
