package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Cost of newly hashed passwords. Stored hashes carry their own cost.
const (
	hashIterations = 3
	hashMemoryKiB  = 64 * 1024
	hashLanes      = 1
	hashKeyLen     = 32
	hashSaltLen    = 16
)

var errMalformedHash = errors.New("auth: malformed password hash")

// passwordHash is a decoded Argon2id PHC string.
type passwordHash struct {
	iterations uint32
	memoryKiB  uint32
	lanes      uint8
	salt       []byte
	key        []byte
}

// HashPassword returns an Argon2id PHC string for password, suitable for a
// user's password_hash setting:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	h := passwordHash{
		iterations: hashIterations,
		memoryKiB:  hashMemoryKiB,
		lanes:      hashLanes,
		salt:       salt,
	}
	h.key = h.derive(password, hashKeyLen)
	return h.String(), nil
}

// VerifyPassword reports whether password matches an Argon2id PHC string.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

func (h passwordHash) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.iterations, h.memoryKiB, h.lanes, keyLen)
}

func (h passwordHash) matches(password string) bool {
	candidate := h.derive(password, uint32(len(h.key))) //nolint:gosec // G115: key length is at most a few dozen bytes
	return subtle.ConstantTimeCompare(h.key, candidate) == 1
}

func (h passwordHash) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memoryKiB, h.iterations, h.lanes,
		enc.EncodeToString(h.salt), enc.EncodeToString(h.key))
}

// parsePasswordHash decodes "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func parsePasswordHash(encoded string) (passwordHash, error) {
	var h passwordHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" { //nolint:mnd // leading empty field plus five PHC sections
		return h, errMalformedHash
	}
	if fields[1] != "argon2id" {
		return h, fmt.Errorf("%w: algorithm %q", errMalformedHash, fields[1])
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return h, fmt.Errorf("%w: version %q", errMalformedHash, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memoryKiB, &h.iterations, &h.lanes); err != nil {
		return h, fmt.Errorf("%w: parameters: %w", errMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return h, fmt.Errorf("%w: key: %w", errMalformedHash, err)
	}
	if len(h.key) == 0 {
		return h, fmt.Errorf("%w: empty key", errMalformedHash)
	}
	return h, nil
}
