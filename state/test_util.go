package state

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/temoto/progskeet/hardware/progskeet"
	"github.com/temoto/progskeet/log2"
)

func NewTestContext(t testing.TB, confString string) (context.Context, *Global, *progskeet.MockTransport) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	log := log2.NewTest(t, log2.LDebug)
	// log := log2.NewStderr(log2.LDebug) // useful with panics
	ctx, g := NewContext(log)
	g.MustInit(ctx, MustReadConfig(log, fs, "test-inline"))
	log.SetLevel(log2.LDebug)

	h, mt := progskeet.NewTestHandle(t, &g.Config.Device)
	g.Hardware.Progskeet = h
	if _, err := g.Progskeet(); err != nil {
		t.Fatal(errors.ErrorStack(err))
	}
	return ctx, g, mt
}
