// tcgstoragectl drives a TCG Storage self-encrypting drive through this
// module's EncryptedDevice façade: discovery inspection, take-ownership
// provisioning, table/row/column browsing, credential and key
// generation, locking-range control, and stack recovery.
//
// The platform block-device transport is an external collaborator: this
// binary ships with an in-memory mock peripheral (--mock) and accepts
// any real transport through the drive.Interface contract.
package main

import (
	"github.com/alecthomas/kong"

	"github.com/outerbridge/tcgstorage/internal/cmdutil"
)

const (
	programName = "tcgstoragectl"
	programDesc = "TCG Storage (Opal/Pyrite/Ruby) drive control"
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.Resolvers(cmdutil.ResolvePassword(false)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	err := ctx.Run(&runContext{})
	ctx.FatalIfErrorf(err)
}
