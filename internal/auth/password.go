package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// argon2Time is the number of iterations (time cost) for Argon2id.
	// OWASP minimum recommendation is 1; 2 provides a better security margin.
	argon2Time = 2

	// argon2Memory is the memory cost in KiB for Argon2id (64 MiB).
	argon2Memory = 64 * 1024

	// argon2Threads is the parallelism factor for Argon2id.
	argon2Threads = 2

	// argon2KeyLen is the output hash length in bytes.
	argon2KeyLen = 32

	// argon2SaltLen is the random salt length in bytes.
	argon2SaltLen = 16
)

// HashPassword hashes a plaintext password with Argon2id and returns it in
// PHC string format, e.g.
//
//	$argon2id$v=19$m=65536,t=2,p=2$<salt-b64>$<hash-b64>
//
// The parameters are embedded in the string so they can be raised later
// without invalidating existing hashes.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// VerifyPassword reports whether the plaintext password matches the PHC
// encoded Argon2id hash. Malformed hashes verify as false rather than
// returning an error — a corrupted hash and a wrong password are
// indistinguishable to the caller by design.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
