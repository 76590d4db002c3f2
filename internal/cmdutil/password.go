// Package cmdutil holds the small pieces of kong wiring the CLI needs
// that don't belong in any protocol-layer package: a password kong.Resolver
// that prompts interactively when a required flag is left unset, and a
// PasswordEmbed flag group that
// turns a plaintext password into the sedutil-compatible hash a given
// device expects. Grounded on the teacher's pkg/cmdutil, rebuilt against
// this module's device/hash packages instead of its core.Core.
package cmdutil

import (
	"fmt"

	"github.com/outerbridge/tcgstorage/device"
	"github.com/outerbridge/tcgstorage/hash"
)

// PasswordEmbed is a kong flag group a subcommand embeds to accept a
// password plus its hashing scheme, matching the authentication methods
// TakeOwnership and AuthenticateWithPassword expect.
type PasswordEmbed struct {
	Password string `required:"" type:"password" env:"TCGSTORAGECTL_PASSWORD" help:"Authentication password"`
	Hash     string `optional:"" default:"dta" enum:"dta,sha1,sedutil-dta,512,sha512" help:"Password hashing scheme (dta=PBKDF2-SHA1, 512=PBKDF2-SHA512)"`
}

// GenerateHash derives the on-wire credential bytes for t.Password,
// salted with d's serial number, using whichever scheme t.Hash names.
func (t *PasswordEmbed) GenerateHash(d *device.EncryptedDevice) ([]byte, error) {
	serial, err := d.SerialNumber()
	if err != nil {
		return nil, fmt.Errorf("cmdutil: SerialNumber: %w", err)
	}
	switch t.Hash {
	case "sedutil-dta", "sha1", "dta", "":
		return hash.SedutilDTA(t.Password, serial), nil
	case "512", "sha512":
		return hash.Sedutil512(t.Password, serial), nil
	default:
		return nil, fmt.Errorf("cmdutil: unknown hash method %q", t.Hash)
	}
}
