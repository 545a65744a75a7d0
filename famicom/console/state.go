package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/valerio/go-famicom/famicom/state"
)

// SaveState writes the machine state as a sequence of component blocks.
// The slave console of a VS DualSystem follows the master's blocks.
func (c *Console) SaveState(w io.Writer) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	// flush the pending samples so the restored APU starts a clean frame
	c.apu.EndFrame()

	return c.writeBlocks(w)
}

// LoadState restores a state written by SaveState for the same ROM. When
// the stream is unreadable the console is left as it was.
func (c *Console) LoadState(r io.Reader) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	var rollback bytes.Buffer
	if err := c.writeBlocks(&rollback); err != nil {
		return fmt.Errorf("failed to snapshot console before load: %w", err)
	}

	err := c.readBlocks(r)
	if err != nil {
		if restoreErr := c.readBlocks(&rollback); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore previous state: %w", restoreErr))
		}
	}

	c.updateModels()
	return err
}

func (c *Console) writeBlocks(w io.Writer) error {
	for _, part := range c.components() {
		if err := state.WriteBlock(w, part.streamer); err != nil {
			return fmt.Errorf("failed to save %s state: %w", part.name, err)
		}
	}
	// reserved for expansion port devices
	if err := state.WriteEmptyBlock(w); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	if c.slave != nil {
		if err := c.slave.writeBlocks(w); err != nil {
			return fmt.Errorf("failed to save slave console: %w", err)
		}
	}
	return nil
}

func (c *Console) readBlocks(r io.Reader) error {
	for _, part := range c.components() {
		if err := state.ReadBlock(r, part.streamer); err != nil {
			return fmt.Errorf("failed to load %s state: %w", part.name, err)
		}
	}
	if err := state.SkipBlock(r); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if c.slave != nil {
		if err := c.slave.readBlocks(r); err != nil {
			return fmt.Errorf("failed to load slave console: %w", err)
		}
	}
	return nil
}

func (c *Console) updateModels() {
	c.UpdateNesModel()
	if c.slave != nil {
		c.slave.UpdateNesModel()
	}
}

type component struct {
	name     string
	streamer state.Streamer
}

func (c *Console) components() []component {
	return []component{
		{"cpu", c.cpu},
		{"ppu", c.ppu},
		{"memory", c.bus},
		{"apu", c.apu},
		{"controls", c.controls},
		{"mapper", c.mapper},
	}
}
