// Package cryptox implements the credential hashers used to store and check
// user passwords.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/argon2"
)

// Hasher names accepted by NewHasher.
const (
	HasherArgon2id = "argon2id"
	HasherSHA256   = "sha256"
)

// Argon2id parameters applied to new digests.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrUnknownHasher   = errors.New("unknown password hasher")
	errMalformedDigest = errors.New("malformed digest")
)

// Hasher turns a plaintext secret into a storable digest and checks secrets
// against stored digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Matches(secret, digest string) bool
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HasherArgon2id:
		return NewArgon2idHasher(), nil
	case HasherSHA256:
		return NewSHA256Hasher(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}

// SHA256Hasher produces unsalted lowercase-hex SHA-256 digests. It exists
// for digests written by earlier deployments; new installs use argon2id.
type SHA256Hasher struct{}

func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

func (h *SHA256Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:]), nil
}

func (h *SHA256Hasher) Matches(secret, digest string) bool {
	candidate, err := h.Hash(secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}

// Argon2idHasher salts every secret and stores the salt and parameters next
// to the key in PHC form:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2idHasher struct {
	time    uint32
	memory  uint32
	threads uint8
}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{time: argon2Time, memory: argon2Memory, threads: argon2Threads}
}

func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}

	plain := []byte(secret)
	defer common.WipeByteArray(plain)

	salt := common.GenerateRandByteArray(argon2SaltLen)
	key := argon2.IDKey(plain, salt, h.time, h.memory, h.threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Matches(secret, digest string) bool {
	p, err := parsePHC(digest)
	if err != nil {
		return false
	}

	plain := []byte(secret)
	defer common.WipeByteArray(plain)

	candidate := argon2.IDKey(plain, p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(candidate, p.key) == 1
}

type phcParams struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parsePHC(digest string) (*phcParams, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errMalformedDigest
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, errMalformedDigest
	}
	if threads == 0 || threads > 255 || iterations == 0 {
		return nil, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errMalformedDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return nil, errMalformedDigest
	}

	return &phcParams{time: iterations, memory: memory, threads: uint8(threads), salt: salt, key: key}, nil
}
