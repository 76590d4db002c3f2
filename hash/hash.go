// Package hash derives SED credential hashes from a human-entered
// passphrase and a device serial number, matching the two PBKDF2
// derivations the Drive Trust Alliance's sedutil tooling established as
// the de facto standard for Opal SID/Admin1 passwords. This is
// credential preparation before Authenticate, not the cryptographic
// operation on the host spec.md's Non-goals exclude (all key-wrap/AES
// happens on the drive; this only derives the proof bytes Authenticate
// sends).
package hash

import (
	"crypto/sha1"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// SedutilDTA derives a 32-byte credential the same way
// github.com/Drive-Trust-Alliance/sedutil does: PBKDF2-HMAC-SHA1 over
// password, salted with the device serial number padded/truncated to 20
// bytes, 75000 iterations.
func SedutilDTA(password, serial string) []byte {
	salt := fmt.Sprintf("%-20s", serial)
	return pbkdf2.Key([]byte(password), []byte(salt[:20]), 75000, 32, sha1.New)
}

// Sedutil512 derives a 32-byte credential the way the ChubbyAnt fork of
// sedutil does: PBKDF2-HMAC-SHA512 over the same salt convention, at a
// much higher iteration count.
func Sedutil512(password, serial string) []byte {
	salt := fmt.Sprintf("%-20s", serial)
	return pbkdf2.Key([]byte(password), []byte(salt[:20]), 500000, 32, sha512.New)
}
