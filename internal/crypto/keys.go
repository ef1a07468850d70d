package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
	"crypto/sha256"

	"github.com/distfs/coordinator/pkg/errors"
)

// fixedPassphrase is the passphrase PBKDF2 derives the encryption key from.
// It is fixed rather than operator-supplied, matching the reference's
// single-process, single-tenant key model; rotating it is an explicit
// re-keying operation outside this package's scope.
const fixedPassphrase = "distfs-coordinator-chunk-encryption"

const saltSize = 16

// KeyMaterial holds the two 16-byte subkeys a Fernet-equivalent token needs:
// a signing key for the HMAC and an encryption key for AES-128-CBC.
type KeyMaterial struct {
	SigningKey    [16]byte
	EncryptionKey [16]byte
}

// LoadOrCreate reads the persisted salt (generating one on first run) and
// derives KeyMaterial via PBKDF2-HMAC-SHA256 with the configured iteration
// count. keyFile is written with the base64 encoding of the salt when it
// does not exist yet; its presence signals the coordinator has initialized
// key material before.
func LoadOrCreate(keyFile, saltFile string, iterations int) (*KeyMaterial, error) {
	salt, err := loadOrCreateSalt(saltFile)
	if err != nil {
		return nil, errors.NewCrypto("failed to load or create encryption salt").
			WithComponent("crypto").WithOperation("LoadOrCreate").WithCause(err)
	}

	if _, err := os.Stat(keyFile); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(keyFile), 0750); err != nil {
			return nil, errors.NewCrypto("failed to create key directory").WithCause(err)
		}
		marker := base64.URLEncoding.EncodeToString(salt)
		if err := os.WriteFile(keyFile, []byte(marker), 0600); err != nil {
			return nil, errors.NewCrypto("failed to persist key marker").WithCause(err)
		}
	}

	derived := pbkdf2.Key([]byte(fixedPassphrase), salt, iterations, 32, sha256.New)

	km := &KeyMaterial{}
	copy(km.SigningKey[:], derived[:16])
	copy(km.EncryptionKey[:], derived[16:32])
	return km, nil
}

func loadOrCreateSalt(saltFile string) ([]byte, error) {
	if data, err := os.ReadFile(saltFile); err == nil {
		if len(data) != saltSize {
			return nil, errors.NewCrypto("persisted salt has unexpected length")
		}
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(saltFile), 0750); err != nil {
		return nil, err
	}
	if err := os.WriteFile(saltFile, salt, 0600); err != nil {
		return nil, err
	}

	return salt, nil
}
