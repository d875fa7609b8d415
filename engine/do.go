// Package engine runs small command scripts: sequences of actions
// with repeat, used by interactive tools.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
)

type Doer interface {
	Validate() error
	Do(context.Context) error
	String() string // for logs
}

type Nothing struct{ Name string }

func (self Nothing) Do(ctx context.Context) error { return nil }
func (self Nothing) Validate() error              { return nil }
func (self Nothing) String() string               { return self.Name }

type Func struct {
	Name string
	F    func(context.Context) error
	V    ValidateFunc
}

func (self Func) Validate() error              { return useValidator(self.V) }
func (self Func) Do(ctx context.Context) error { return self.F(ctx) }
func (self Func) String() string               { return self.Name }

// Sleep pauses host, not device.
type Sleep struct{ time.Duration }

func (self Sleep) Validate() error { return nil }
func (self Sleep) Do(ctx context.Context) error {
	select {
	case <-time.After(self.Duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (self Sleep) String() string { return fmt.Sprintf("Sleep(%v)", self.Duration) }

type RepeatN struct {
	N uint
	D Doer
}

func (self RepeatN) Validate() error { return self.D.Validate() }
func (self RepeatN) Do(ctx context.Context) error {
	log := log2.ContextValueLogger(ctx)
	var err error
	for i := uint(1); i <= self.N && err == nil; i++ {
		log.Debugf("engine loop %d/%d", i, self.N)
		err = self.D.Do(ctx)
	}
	return err
}
func (self RepeatN) String() string {
	return fmt.Sprintf("RepeatN(N=%d D=%s)", self.N, self.D.String())
}

type ValidateFunc func() error

func useValidator(v ValidateFunc) error {
	if v == nil {
		return nil
	}
	return v()
}

type Fail struct{ E error }

func (self Fail) Validate() error              { return self.E }
func (self Fail) Do(ctx context.Context) error { return self.E }
func (self Fail) String() string               { return self.E.Error() }

// Sequence executor.
// Error in one action aborts whole group, so does done context.
type Seq struct {
	name  string
	_b    [8]Doer
	items []Doer
}

func NewSeq(name string) *Seq {
	self := &Seq{name: name}
	self.items = self._b[:0]
	return self
}

func (self *Seq) Append(d Doer) *Seq {
	self.items = append(self.items, d)
	return self
}

func (self *Seq) Len() int { return len(self.items) }

func (self *Seq) Validate() error {
	errs := make([]error, 0, len(self.items))
	for _, d := range self.items {
		if err := d.Validate(); err != nil {
			err = errors.Annotatef(err, "node=%s validate", d.String())
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

func (self *Seq) Do(ctx context.Context) error {
	log := log2.ContextValueLogger(ctx)
	for _, d := range self.items {
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "%s before=%s", self.name, d.String())
		}
		if _, ok := d.(Nothing); !ok {
			log.Debugf("engine execute %s", d.String())
		}
		if err := d.Do(ctx); err != nil {
			return errors.Annotate(err, d.String())
		}
	}
	return nil
}

func (self *Seq) String() string {
	return self.name
}
