package console

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
)

// The console is the CPU's view of the rest of the machine and the
// cartridge's view of its host.

func (c *Console) RunPPU(masterClock uint64) {
	c.ppu.Run(masterClock)
}

func (c *Console) ProcessCPUClock() {
	c.mapper.ProcessCPUClock()
	c.apu.ProcessCPUClock()
}

func (c *Console) DMCReadAddress() uint16 {
	return c.apu.DMCReadAddress()
}

func (c *Console) SetDMCReadBuffer(value uint8) {
	c.apu.SetDMCReadBuffer(value)
}

func (c *Console) ConsoleType() config.ConsoleType {
	return c.settings.ConsoleType
}

func (c *Console) InputOpenBusMask(port uint8) uint8 {
	return c.controls.OpenBusMask(port)
}

// Alignment keeps the power-on phase fixed unless randomized alignment is
// enabled, in which case any of the possible phases can come up.
func (c *Console) Alignment(ppuDivider, cpuDivider uint8) (ppuOffset, cpuOffset uint8) {
	if !c.settings.RandomizeAlignment {
		return 1, 0
	}
	rng := c.settings.Rand()
	return uint8(rng.IntN(int(ppuDivider))), uint8(rng.IntN(int(cpuDivider)))
}

func (c *Console) CPUCycleCount() int64 {
	return c.cpu.CycleCount()
}

func (c *Console) PPUFrameCycle() uint32 {
	return c.ppu.FrameCycle()
}

func (c *Console) SetIRQSource(source cpu.IRQSource) {
	c.cpu.SetIRQSource(source)
}

func (c *Console) ClearIRQSource(source cpu.IRQSource) {
	c.cpu.ClearIRQSource(source)
}

func (c *Console) OpenBus(mask uint8) uint8 {
	return c.bus.OpenBus(mask)
}

func (c *Console) InitializeRAM(data []byte) {
	c.settings.InitializeRAM(data)
}

// systemActions holds reset requests made mid-frame; they are applied
// once the frame is complete.
type systemActions struct {
	needReset      bool
	needPowerCycle bool
}

func (a *systemActions) requestReset()      { a.needReset = true }
func (a *systemActions) requestPowerCycle() { a.needPowerCycle = true }

func (c *Console) processSystemActions() error {
	switch {
	case c.actions.needPowerCycle:
		c.actions = systemActions{}
		slog.Info("Power cycling console")
		// rebuilding from the ROM drops every bit of mapper and RAM state
		if err := c.Initialize(c.romData); err != nil {
			return fmt.Errorf("power cycle failed: %w", err)
		}
	case c.actions.needReset:
		c.actions = systemActions{}
		slog.Info("Resetting console")
		c.ResetComponents(true)
		c.controls.UpdateInputState()
	}
	return nil
}
