package state

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// FullReader resolves config include names and reads whole files.
type FullReader interface {
	Normalize(name string) string
	// nil,nil = not found
	ReadAll(name string) ([]byte, error)
}

// OsFullReader reads local files, relative names resolve against base (process cwd by default).
type OsFullReader struct {
	base string
}

func NewOsFullReader() *OsFullReader { return &OsFullReader{} }

// SetBase makes relative names resolve against dir.
func (self *OsFullReader) SetBase(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	self.base = dir
}

func (self *OsFullReader) Normalize(name string) string {
	if !filepath.IsAbs(name) && self.base != "" {
		name = filepath.Join(self.base, name)
	}
	return filepath.Clean(name)
}

func (self *OsFullReader) ReadAll(name string) ([]byte, error) {
	b, err := ioutil.ReadFile(name)
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, errors.Annotatef(err, "config read %s", name)
	}
	return b, nil
}

// MockFullReader serves config sources from memory, for tests.
type MockFullReader struct {
	Map map[string]string
}

func NewMockFullReader(sources map[string]string) *MockFullReader {
	return &MockFullReader{Map: sources}
}

func (self *MockFullReader) Normalize(name string) string { return filepath.Clean(name) }

func (self *MockFullReader) ReadAll(name string) ([]byte, error) {
	s, ok := self.Map[name]
	if !ok {
		return nil, nil
	}
	return []byte(s), nil
}
