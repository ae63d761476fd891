// Package loader handles ROM file loading operations.
package loader

import (
	"fmt"
	"os"

	"github.com/retro65816/disasm/internal/rom"
)

// Loader handles loading ROM files from disk.
type Loader struct{}

// New creates a new ROM loader.
func New() *Loader {
	return &Loader{}
}

// Load reads path from disk and parses it as an SNES cartridge image.
func (l *Loader) Load(path string) (*rom.ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}

	image, err := rom.New(data)
	if err != nil {
		return nil, fmt.Errorf("loading ROM: %w", err)
	}
	return image, nil
}
