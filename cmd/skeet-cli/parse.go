package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/progskeet/engine"
	"github.com/temoto/progskeet/hardware/progskeet"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
	"github.com/temoto/progskeet/state"
)

// lineState collects read results to show after sync.
type lineState struct {
	after []func()
}

func (ls *lineState) show(f func()) { ls.after = append(ls.after, f) }

var doUsage = engine.Func{Name: "help", F: func(ctx context.Context) error {
	state.GetGlobal(ctx).Log.Info(usage)
	return nil
}}

// handleFunc binds action to device handle, opened on demand.
func handleFunc(name string, f func(context.Context, *progskeet.Handle) error) engine.Doer {
	return engine.Func{Name: name, F: func(ctx context.Context) error {
		h, err := state.GetGlobal(ctx).Progskeet()
		if err != nil {
			return err
		}
		return f(ctx, h)
	}}
}

func newSync(ls *lineState) engine.Doer {
	return handleFunc("sync", func(ctx context.Context, h *progskeet.Handle) error {
		after := ls.after
		ls.after = nil
		if err := h.SyncContext(ctx); err != nil {
			return err
		}
		for _, f := range after {
			f()
		}
		return nil
	})
}

func parseLine(ctx context.Context, line string) (engine.Doer, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return engine.Nothing{}, nil
	}

	// pre-parse special commands
	loopn := uint(0)
	wordsRest := make([]string, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return doUsage, nil
		case strings.HasPrefix(word, "loop="):
			if loopn != 0 {
				return nil, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
		default:
			wordsRest = append(wordsRest, word)
		}
	}

	ls := &lineState{}
	tx := engine.NewSeq("input:" + line)
	for _, word := range wordsRest {
		d, err := parseCommand(ls, word)
		if err != nil {
			return nil, err
		}
		tx.Append(d)
	}
	tx.Append(newSync(ls))
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if loopn != 0 {
		return engine.RepeatN{N: loopn, D: tx}, nil
	}
	return tx, nil
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, bits)
}

// parsePair parses "X:Y" where X is hex.
func parsePair(s string) (uint64, string, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, "", errors.NotValidf("expected X:Y in '%s'", s)
	}
	x, err := parseHex(parts[0], 32)
	return x, parts[1], err
}

func parseCommand(ls *lineState, word string) (engine.Doer, error) {
	fail := func(err error) (engine.Doer, error) {
		return nil, errors.Annotatef(err, "word=%s", word)
	}
	switch {
	case word == "log=yes":
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			h.Log.SetLevel(log2.LDebug)
			return nil
		}), nil
	case word == "log=no":
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			h.Log.SetLevel(log2.LError)
			return nil
		}), nil
	case word == "reset":
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error { return h.Reset() }), nil
	case word == "sync":
		return newSync(ls), nil
	case word == "stat":
		return handleFunc(word, func(ctx context.Context, h *progskeet.Handle) error {
			g := state.GetGlobal(ctx)
			tx, rx := h.Pending()
			errCount, lastErr := g.Errors()
			g.Log.Infof("stat=%+v pending tx=%d rx=%d errors=%d last=%v", h.Stat(), tx, rx, errCount, lastErr)
			return nil
		}), nil
	case word == "list":
		return engine.Func{Name: word, F: func(ctx context.Context) error {
			g := state.GetGlobal(ctx)
			if g.Hardware.Usb == nil {
				return errors.Errorf("usb provider not initialized")
			}
			list, err := g.Hardware.Usb.List()
			for _, d := range list {
				g.Log.Infof("%s", d.String())
			}
			return err
		}}, nil

	case strings.HasPrefix(word, "a="), strings.HasPrefix(word, "ai="):
		autoInc := word[1] == 'i'
		addr, err := parseHex(word[strings.IndexByte(word, '=')+1:], 32)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			return h.SetAddr(uint32(addr), autoInc)
		}), nil

	case strings.HasPrefix(word, "cfg="):
		x, err := parseHex(word[4:], 8)
		if err != nil {
			return fail(err)
		}
		c := progskeet.ConfigFlag(x)
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			return h.SetConfig(uint8(c&progskeet.CONFIG_DELAY_MASK), c&^progskeet.CONFIG_DELAY_MASK)
		}), nil

	case strings.HasPrefix(word, "xform="):
		mask, rest, err := parsePair(word[6:])
		if err != nil {
			return fail(err)
		}
		add, err := parseHex(rest, 32)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			return h.SetAddrTransform(uint32(mask), uint32(add))
		}), nil

	case strings.HasPrefix(word, "w:"), strings.HasPrefix(word, "w@"):
		var addr uint64
		hexData := word[2:]
		at := word[1] == '@'
		if at {
			var err error
			if addr, hexData, err = parsePair(word[2:]); err != nil {
				return fail(err)
			}
		}
		data, err := helpers.ParseHex(hexData)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			if at {
				return h.WriteAt(uint32(addr), data)
			}
			return h.Write(data)
		}), nil

	case strings.HasPrefix(word, "r:"), strings.HasPrefix(word, "r@"):
		var addr uint64
		nstr := word[2:]
		at := word[1] == '@'
		if at {
			var err error
			if addr, nstr, err = parsePair(word[2:]); err != nil {
				return fail(err)
			}
		}
		n, err := strconv.ParseUint(nstr, 0, 31)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(ctx context.Context, h *progskeet.Handle) error {
			buf := make([]byte, n)
			var err error
			if at {
				err = h.ReadAt(uint32(addr), buf)
			} else {
				err = h.Read(buf)
			}
			if err != nil {
				return err
			}
			log := state.GetGlobal(ctx).Log
			ls.show(func() { log.Infof("< %s %x", word, buf) })
			return nil
		}), nil

	case word == "g?":
		return handleFunc(word, func(ctx context.Context, h *progskeet.Handle) error {
			v := new(uint16)
			if err := h.GetGPIO(v); err != nil {
				return err
			}
			log := state.GetGlobal(ctx).Log
			ls.show(func() { log.Infof("< gpio=%04x", *v) })
			return nil
		}), nil

	case strings.HasPrefix(word, "gd="):
		x, err := parseHex(word[3:], 16)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error { return h.SetGPIODir(uint16(x)) }), nil
	case strings.HasPrefix(word, "g="), strings.HasPrefix(word, "g+"), strings.HasPrefix(word, "g-"):
		x, err := parseHex(word[2:], 16)
		if err != nil {
			return fail(err)
		}
		op := word[1]
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			switch op {
			case '+':
				return h.AssertGPIO(uint16(x))
			case '-':
				return h.DeassertGPIO(uint16(x))
			}
			return h.SetGPIO(uint16(x))
		}), nil

	case strings.HasPrefix(word, "wg="):
		mask, rest, err := parsePair(word[3:])
		if err != nil {
			return fail(err)
		}
		value, err := parseHex(rest, 16)
		if err != nil {
			return fail(err)
		}
		if mask > 0xffff {
			return fail(errors.NotValidf("mask=%x", mask))
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error {
			return h.WaitGPIO(uint16(mask), uint16(value))
		}), nil

	case strings.HasPrefix(word, "wait="):
		d, err := time.ParseDuration(word[5:])
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error { return h.Sleep(d) }), nil

	case strings.HasPrefix(word, "data="):
		x, err := parseHex(word[5:], 16)
		if err != nil {
			return fail(err)
		}
		return handleFunc(word, func(_ context.Context, h *progskeet.Handle) error { return h.SetData(uint16(x)) }), nil

	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return fail(err)
		}
		return engine.Sleep{Duration: time.Duration(i) * time.Millisecond}, nil
	}
	return nil, errors.Errorf("error: invalid command: '%s'", word)
}
