package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/distfs/coordinator/pkg/errors"
)

// Token layout mirrors Fernet: version(1) || timestamp(8, big-endian unix
// seconds) || iv(16) || ciphertext(PKCS7-padded AES-128-CBC) || hmac(32,
// over everything preceding it).
const (
	tokenVersion = 0x80
	ivSize       = aes.BlockSize
	macSize      = sha256.Size
	headerSize   = 1 + 8 + ivSize
)

// seal encrypts plaintext under km, producing a Fernet-equivalent token.
func seal(km *KeyMaterial, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(km.EncryptionKey[:])
	if err != nil {
		return nil, errors.NewCrypto("failed to initialize AES cipher").WithCause(err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.NewCrypto("failed to generate iv").WithCause(err)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	token := make([]byte, 0, headerSize+len(ciphertext)+macSize)
	token = append(token, tokenVersion)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(time.Now().Unix()))
	token = append(token, tsBuf[:]...)
	token = append(token, iv...)
	token = append(token, ciphertext...)

	mac := hmac.New(sha256.New, km.SigningKey[:])
	mac.Write(token)
	token = mac.Sum(token)

	return token, nil
}

// unseal verifies and decrypts a token produced by seal. Any structural,
// MAC, or padding failure is a CorruptionError — the caller's read path is
// expected to treat it as a signal to try a replica.
func unseal(km *KeyMaterial, token []byte) ([]byte, error) {
	if len(token) < headerSize+macSize {
		return nil, errors.NewCorruption("token too short")
	}
	if token[0] != tokenVersion {
		return nil, errors.NewCorruption("unrecognized token version")
	}

	body := token[:len(token)-macSize]
	wantMAC := token[len(token)-macSize:]

	mac := hmac.New(sha256.New, km.SigningKey[:])
	mac.Write(body)
	gotMAC := mac.Sum(nil)
	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, errors.NewCorruption("token authentication failed")
	}

	iv := body[9:headerSize]
	ciphertext := body[headerSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.NewCorruption("ciphertext is not block-aligned")
	}

	block, err := aes.NewCipher(km.EncryptionKey[:])
	if err != nil {
		return nil, errors.NewCrypto("failed to initialize AES cipher").WithCause(err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.NewCorruption("cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, errors.NewCorruption("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.NewCorruption("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
