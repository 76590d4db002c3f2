package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outerbridge/tcgstorage/device"
	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/internal/cmdutil"
	"github.com/outerbridge/tcgstorage/locking"
	"github.com/outerbridge/tcgstorage/metrics"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// runContext is the kong binding context shared by every sub-command.
type runContext struct{}

// deviceEmbed carries the flags every sub-command needs to reach a
// peripheral. One of --device or --mock must be given; --mock wins when
// both are.
type deviceEmbed struct {
	Device        string `flag:"" optional:"" short:"d" help:"Path to SED device (e.g. /dev/nvme0); requires a platform transport"`
	Mock          bool   `flag:"" optional:"" help:"Use the built-in mock peripheral instead of real hardware"`
	MetricsListen string `flag:"" optional:"" help:"Serve Prometheus metrics on this address while the command runs"`
}

func (g *deviceEmbed) open(ctx context.Context) (*device.EncryptedDevice, error) {
	if g.MetricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(g.MetricsListen, mux); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	var d drive.Interface
	switch {
	case g.Mock:
		d = newMockDrive()
	case g.Device != "":
		// The platform ioctl transports (NVMe/SCSI/ATA security
		// send/receive) are external collaborators; wire one in through
		// drive.Interface to use real hardware.
		return nil, fmt.Errorf("no platform transport compiled into this build; use --mock or link a drive.Interface implementation for %s", g.Device)
	default:
		return nil, fmt.Errorf("one of --device or --mock is required")
	}
	return device.New(ctx, d)
}

// sessionEmbed adds the SP selection and optional authentication every
// data command performs before its operation.
type sessionEmbed struct {
	deviceEmbed
	SP        string `flag:"" optional:"" default:"SP::Admin" help:"Security Provider to open the session against (name or hex UID)"`
	Authority string `flag:"" optional:"" help:"Authority to authenticate as after login (name or hex UID)"`
	Password  string `flag:"" optional:"" env:"TCGSTORAGECTL_PASSWORD" help:"Password for --authority"`
	Hash      string `flag:"" optional:"" default:"dta" enum:"dta,sha1,sedutil-dta,512,sha512" help:"Password hashing scheme"`
}

// login opens the device, starts a session against --sp, and runs the
// optional --authority authentication.
func (g *sessionEmbed) login(ctx context.Context) (*device.EncryptedDevice, error) {
	d, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	sp, err := resolveUID(d, g.SP, uid.Null)
	if err != nil {
		return nil, err
	}
	if err := d.Login(ctx, sp); err != nil {
		return nil, fmt.Errorf("login to %s: %w", g.SP, err)
	}
	if g.Authority == "" {
		return d, nil
	}
	auth, err := resolveUID(d, g.Authority, sp)
	if err != nil {
		return nil, err
	}
	pw := cmdutil.PasswordEmbed{Password: g.Password, Hash: g.Hash}
	proof, err := pw.GenerateHash(d)
	if err != nil {
		return nil, err
	}
	if err := d.Authenticate(ctx, auth, proof); err != nil {
		return nil, fmt.Errorf("authenticate as %s: %w", g.Authority, err)
	}
	return d, nil
}

// resolveUID turns a "Category::Member" name or canonical hex form into
// a UID through the device's module collection.
func resolveUID(d *device.EncryptedDevice, name string, sp uid.UID) (uid.UID, error) {
	if u, ok := d.Modules().FindUID(name, sp); ok {
		return u, nil
	}
	if u, err := uid.Parse(name); err == nil {
		return u, nil
	}
	return uid.Null, fmt.Errorf("unknown name %q", name)
}

type inspectCmd struct {
	deviceEmbed
}

func (c *inspectCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.open(ctx)
	if err != nil {
		return err
	}
	spew.Dump(d.Discovery())
	return nil
}

type takeOwnershipCmd struct {
	deviceEmbed
	Password string `flag:"" required:"" short:"p" type:"password" help:"New owner (SID/Admin1) password"`
	PBAImage string `flag:"" optional:"" type:"existingfile" help:"PBA image to load into the shadow MBR"`
}

func (c *takeOwnershipCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	var opts []device.TakeOwnershipOpt
	if c.PBAImage != "" {
		img, err := os.ReadFile(c.PBAImage)
		if err != nil {
			return err
		}
		opts = append(opts, device.WithPBAImage(img))
	}
	if err := d.TakeOwnership(ctx, c.Password, opts...); err != nil {
		return err
	}
	fmt.Println("Ownership taken; Locking SP active.")
	return nil
}

type listCmd struct {
	sessionEmbed
	What string `arg:"" enum:"sps,auths,tables" help:"What to list: sps, auths, or tables"`
}

func (c *listCmd) Run(rc *runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	var t uid.UID
	switch c.What {
	case "sps":
		t = uid.TableSP
	case "auths":
		t = uid.TableAuthority
	case "tables":
		t = uid.TableTable
	}
	return printRows(ctx, d, t)
}

type rowsCmd struct {
	sessionEmbed
	Table string `arg:"" help:"Table to iterate (name or hex UID)"`
}

func (c *rowsCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	t, err := resolveUID(d, c.Table, uid.Null)
	if err != nil {
		return err
	}
	return printRows(ctx, d, t)
}

func printRows(ctx context.Context, d *device.EncryptedDevice, t uid.UID) error {
	seq, err := d.GetTableRows(ctx, t)
	if err != nil {
		return err
	}
	for {
		row, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if name, ok := d.Modules().FindName(row, uid.Null); ok {
			fmt.Printf("%s  %s\n", row, name)
		} else {
			fmt.Println(row)
		}
	}
}

type columnsCmd struct {
	sessionEmbed
	Object string `arg:"" help:"Object whose columns to read (name or hex UID)"`
}

func (c *columnsCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	sp, _ := resolveUID(d, c.SP, uid.Null)
	obj, err := resolveUID(d, c.Object, sp)
	if err != nil {
		return err
	}
	seq := d.GetObjectColumns(obj)
	for {
		col, ok, err := seq.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("%2d %-20s %s\n", col.Index, col.Desc.Name, renderValue(col.Value))
	}
}

type getCmd struct {
	sessionEmbed
	Object string `arg:"" help:"Object to read (name or hex UID)"`
	Column uint32 `arg:"" help:"Column number"`
}

func (c *getCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	sp, _ := resolveUID(d, c.SP, uid.Null)
	obj, err := resolveUID(d, c.Object, sp)
	if err != nil {
		return err
	}
	v, err := d.GetObjectColumn(ctx, obj, c.Column)
	if err != nil {
		return err
	}
	fmt.Println(renderValue(v))
	return nil
}

type setCmd struct {
	sessionEmbed
	Object string `arg:"" help:"Object to write (name or hex UID)"`
	Column uint32 `arg:"" help:"Column number"`
	Value  string `arg:"" help:"New value: decimal integer, 0x-prefixed hex bytes, or a quoted string"`
}

func (c *setCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	sp, _ := resolveUID(d, c.SP, uid.Null)
	obj, err := resolveUID(d, c.Object, sp)
	if err != nil {
		return err
	}
	return d.SetObjectColumn(ctx, obj, c.Column, parseValue(c.Value))
}

type genMEKCmd struct {
	sessionEmbed
	Range string `arg:"" optional:"" default:"Locking::GlobalRange" help:"Locking range whose media key to regenerate"`
}

func (c *genMEKCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	r, err := resolveUID(d, c.Range, uid.Null)
	if err != nil {
		return err
	}
	if err := d.GenMEK(ctx, r); err != nil {
		return err
	}
	fmt.Println("Media encryption key regenerated; prior data is unrecoverable.")
	return nil
}

type genPINCmd struct {
	sessionEmbed
	Credential string `arg:"" help:"C_PIN row to store the generated PIN in (name or hex UID)"`
	Length     int    `arg:"" optional:"" default:"32" help:"PIN length in bytes"`
}

func (c *genPINCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	sp, _ := resolveUID(d, c.SP, uid.Null)
	cred, err := resolveUID(d, c.Credential, sp)
	if err != nil {
		return err
	}
	pin, err := d.GenPIN(ctx, cred, c.Length)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", pin)
	return nil
}

type revertCmd struct {
	sessionEmbed
	Target string `arg:"" optional:"" default:"SP::Admin" help:"SP to revert to factory state"`
}

func (c *revertCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	target, err := resolveUID(d, c.Target, uid.Null)
	if err != nil {
		return err
	}
	return d.Revert(ctx, target)
}

type activateCmd struct {
	sessionEmbed
	Target string `arg:"" optional:"" default:"SP::Locking" help:"SP to activate"`
}

func (c *activateCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	target, err := resolveUID(d, c.Target, uid.Null)
	if err != nil {
		return err
	}
	return d.Activate(ctx, target)
}

type lockCmd struct {
	sessionEmbed
	Range  string `arg:"" optional:"" default:"Locking::GlobalRange" help:"Locking range"`
	Unlock bool   `flag:"" optional:"" help:"Unlock instead of lock"`
}

func (c *lockCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.login(ctx)
	if err != nil {
		return err
	}
	defer d.End(ctx)
	row, err := resolveUID(d, c.Range, uid.Null)
	if err != nil {
		return err
	}
	r, err := locking.Get(ctx, d, row)
	if err != nil {
		return err
	}
	if c.Unlock {
		if err := r.UnlockRead(ctx); err != nil {
			return err
		}
		return r.UnlockWrite(ctx)
	}
	if err := r.LockRead(ctx); err != nil {
		return err
	}
	return r.LockWrite(ctx)
}

type stackResetCmd struct {
	deviceEmbed
}

func (c *stackResetCmd) Run(*runContext) error {
	ctx := context.Background()
	d, err := c.open(ctx)
	if err != nil {
		return err
	}
	return d.StackReset(ctx)
}

var cli struct {
	Inspect       inspectCmd       `cmd:"" help:"Dump the Level-0 Discovery response"`
	TakeOwnership takeOwnershipCmd `cmd:"" help:"Provision a factory-fresh drive: claim SID, activate locking, enable the shadow MBR"`
	List          listCmd          `cmd:"" help:"List SPs, authorities, or tables"`
	Rows          rowsCmd          `cmd:"" help:"Iterate a table's row UIDs"`
	Columns       columnsCmd       `cmd:"" help:"Read every column of an object"`
	Get           getCmd           `cmd:"" help:"Read one column of an object"`
	Set           setCmd           `cmd:"" help:"Write one column of an object"`
	GenMek        genMEKCmd        `cmd:"" help:"Regenerate a locking range's media encryption key (crypto-erase)"`
	GenPin        genPINCmd        `cmd:"" help:"Generate a random PIN into a credential object"`
	Revert        revertCmd        `cmd:"" help:"Revert an SP to factory state"`
	Activate      activateCmd      `cmd:"" help:"Activate an SP (typically Locking)"`
	Lock          lockCmd          `cmd:"" help:"Lock or unlock a locking range"`
	StackReset    stackResetCmd    `cmd:"" help:"Reset the peripheral's in-band communication stack"`
}

func renderValue(v stream.Value) string {
	switch {
	case v.IsEmpty():
		return "-"
	case v.IsInteger():
		n, _ := v.Uint()
		return strconv.FormatUint(n, 10)
	case v.IsBytes():
		b, _ := v.Bytes()
		if len(b) == 8 {
			if u, err := uid.FromBytes(b); err == nil {
				return u.String()
			}
		}
		return hex.EncodeToString(b)
	default:
		return spew.Sprintf("%v", v)
	}
}

func parseValue(s string) stream.Value {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return stream.NewUint(n)
	}
	if strings.HasPrefix(s, "0x") {
		if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
			return stream.NewBytes(b)
		}
	}
	return stream.NewBytes([]byte(s))
}
