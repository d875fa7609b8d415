package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/progskeet/hardware/progskeet"
	"github.com/temoto/progskeet/hardware/progskeet/usb"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
)

type Global struct {
	Alive    *alive.Alive
	Config   *Config
	Hardware struct {
		Usb       *usb.Provider
		Progskeet *progskeet.Handle
	}
	Log *log2.Log

	errorCount uint32
	lastError  atomic.Value // errorBox

	lk sync.Mutex

	initProgskeetOnce sync.Once
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	g.Log.SetLevel(level)
	g.Log.SetErrorFunc(g.countError)
	g.Log.Debugf("config: device=%#v", g.Config.Device)
	log2.SetGlobal(g.Log)
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(errors.ErrorStack(err))
	}
}

type errorBox struct{ error }

func (g *Global) countError(err error) {
	atomic.AddUint32(&g.errorCount, 1)
	g.lastError.Store(errorBox{err})
}

// Errors returns number of logged errors and the last one.
func (g *Global) Errors() (uint32, error) {
	last, _ := g.lastError.Load().(errorBox)
	return atomic.LoadUint32(&g.errorCount), last.error
}

// cancelOnStop makes Stop() interrupt running Sync of h.
func (g *Global) cancelOnStop(h *progskeet.Handle) {
	if !g.Alive.Add(1) {
		_ = h.Cancel()
		return
	}
	go func() {
		defer g.Alive.Done()
		<-g.Alive.StopChan()
		_ = h.Cancel()
	}()
}

// Stop cancels device work and releases hardware. Safe to call more than once.
func (g *Global) Stop() error {
	g.Alive.Stop()
	g.Alive.Wait()
	g.lk.Lock()
	defer g.lk.Unlock()
	errs := make([]error, 0, 2)
	if h := g.Hardware.Progskeet; h != nil {
		if err := h.Close(); err != nil && err != progskeet.ErrClosed {
			errs = append(errs, err)
		}
	}
	if g.Hardware.Usb != nil {
		errs = append(errs, g.Hardware.Usb.Close())
	}
	return helpers.FoldErrors(errs)
}

func recoverFatal(f helpers.Fataler) {
	if x := recover(); x != nil {
		f.Fatal(x)
	}
}
