package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/progskeet/hardware/progskeet"
	"github.com/temoto/progskeet/helpers/cli"
	"github.com/temoto/progskeet/log2"
	"github.com/temoto/progskeet/state"
)

const usage = `syntax: commands separated by whitespace, queue is synced at end of line
(device)
- reset          reset device and driver state to baseline
- sync           send queued commands now
- a=ADDR         set address (hex)
- ai=ADDR        set address with auto increment
- cfg=XX         set config byte (hex): low nibble delay, 10 word, 20 tristate, 40 wait ready
- xform=MASK:ADD address transform (hex)
- w:XX...        write hex bytes at current address
- w@ADDR:XX...   write hex bytes at address
- r:N            read N bytes at current address, shown after sync
- r@ADDR:N       read N bytes at address
- g=XXXX         set GPIO value
- gd=XXXX        set GPIO direction, 1=output
- g+XXXX g-XXXX  assert / deassert GPIO bits
- g?             read GPIO, shown after sync
- wg=MASK:VALUE  device waits until (gpio & mask) == (value & mask)
- wait=DURATION  device side delay, e.g. 20ns 5us 10ms 1s
- data=XXXX      single write cycle

(host)
- sN       pause N milliseconds
- list     show connected devices
- stat     show driver counters

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- loop=N   repeat N times all commands on this line
`

const tag = "skeet-cli"

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := cmdline.String("config", "", "HCL config file")
	bus := cmdline.Int("bus", 0, "USB bus, 0 = any")
	addr := cmdline.Int("addr", 0, "USB device address, 0 = any")
	byteMode := cmdline.Bool("byte", false, "byte mode baseline (default word)")
	logLevel := cmdline.String("log-level", "", "error|info|verbose|debug, overrides config")
	version := cmdline.Bool("version", false, "print version and exit")
	_ = cmdline.Parse(os.Args[1:])

	if *version {
		fmt.Printf("%s progskeet driver %s\n", tag, progskeet.Version)
		return
	}

	log.SetFlags(log2.LInteractiveFlags)

	config := new(state.Config)
	if *configPath != "" {
		config = state.MustReadConfig(log, state.NewOsFullReader(), *configPath)
	}
	if *bus != 0 {
		config.Device.Bus = *bus
	}
	if *addr != 0 {
		config.Device.Address = *addr
	}
	if *byteMode {
		config.Device.ByteMode = true
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}

	ctx, g := state.NewContext(log)
	g.MustInit(ctx, config)
	if _, err := g.Progskeet(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer func() {
		if err := g.Stop(); err != nil {
			log.Error(errors.ErrorStack(err))
		}
	}()

	cli.MainLoop(tag, newExecutor(ctx), newCompleter(ctx), func() {
		if h, err := g.Progskeet(); err == nil {
			_ = h.Cancel()
		}
	})
}

func newCompleter(ctx context.Context) func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "reset", Description: "device reset to baseline"},
		{Text: "sync", Description: "send queued commands"},
		{Text: "a=", Description: "set address"},
		{Text: "ai=", Description: "set address, auto increment"},
		{Text: "cfg=", Description: "set config byte"},
		{Text: "w@", Description: "write hex bytes at address"},
		{Text: "r@", Description: "read N bytes at address"},
		{Text: "g?", Description: "read GPIO"},
		{Text: "wait=", Description: "device delay"},
		{Text: "wg=", Description: "wait for GPIO condition"},
		{Text: "loop=N", Description: "repeat line N times"},
		{Text: "stat", Description: "driver counters"},
		{Text: "help", Description: "show syntax"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	return func(line string) {
		d, err := parseLine(ctx, line)
		if err != nil {
			g.Log.Error(errors.ErrorStack(err))
			return
		}
		err = d.Do(ctx)
		if err != nil {
			if progskeet.IsCancelled(err) {
				g.Log.Info("cancelled, consider reset")
				return
			}
			g.Log.Error(errors.ErrorStack(err))
		}
	}
}
