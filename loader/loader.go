// Package loader turns a .um program binary into a machine ready to run.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/um32/emulator/vm"
)

// Load reads a program binary from r and returns a machine with the program
// installed as segment 0 and the instruction pointer at 0.
func Load(r io.Reader) (*vm.VM, error) {
	mem, err := vm.NewMemory(r)
	if err != nil {
		return nil, err
	}
	return vm.NewVM(mem), nil
}

// LoadFile opens the program binary at path and loads it.
func LoadFile(path string) (*vm.VM, error) {
	f, err := os.Open(path) // #nosec G304 -- user-specified program path
	if err != nil {
		return nil, fmt.Errorf("opening program: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	machine, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return machine, nil
}
