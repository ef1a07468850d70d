// Package crypto provides the coordinator's chunk-payload protection:
// DEFLATE compression followed by Fernet-equivalent authenticated
// encryption (AES-128-CBC + HMAC-SHA256 over a timestamped token), with the
// key derived once via PBKDF2-HMAC-SHA256 from a persisted salt.
package crypto

// Cipher wraps a loaded KeyMaterial with the compress-then-encrypt and
// decrypt-then-decompress operations every chunk passes through.
type Cipher struct {
	key *KeyMaterial
}

// New wraps already-loaded key material. Use LoadOrCreate to obtain it from
// the configured key/salt files.
func New(key *KeyMaterial) *Cipher {
	return &Cipher{key: key}
}

// EncryptCompress compresses data at the given DEFLATE level (0-9) then
// encrypts the result, returning the stored payload bytes.
func (c *Cipher) EncryptCompress(data []byte, level int) ([]byte, error) {
	compressed, err := deflate(data, level)
	if err != nil {
		return nil, err
	}
	return seal(c.key, compressed)
}

// DecryptDecompress reverses EncryptCompress. A MAC failure or a malformed
// DEFLATE stream both surface as CorruptionError, matching §4.1's contract
// that the read path can fall back to another replica.
func (c *Cipher) DecryptDecompress(stored []byte) ([]byte, error) {
	compressed, err := unseal(c.key, stored)
	if err != nil {
		return nil, err
	}
	return inflate(compressed)
}
