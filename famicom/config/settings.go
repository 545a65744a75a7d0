package config

import (
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds the emulation options shared by every component of a
// console. A zero Settings is not valid, use Default.
type Settings struct {
	Model           Model           `yaml:"region"`
	ConsoleType     ConsoleType     `yaml:"console"`
	RAMPowerOnState RAMPowerOnState `yaml:"ram_power_on_state"`

	// RandomizeAlignment picks a random CPU/PPU phase at every reset.
	RandomizeAlignment bool `yaml:"randomize_alignment"`
	// Seed feeds the random RAM fill and alignment. Zero keeps the
	// sequence fixed so runs stay reproducible.
	Seed uint64 `yaml:"seed"`

	IntegerFPS bool `yaml:"integer_fps"`
	// EmulationSpeed in percent, 0 means unthrottled.
	EmulationSpeed int `yaml:"emulation_speed"`
	SampleRate     int `yaml:"sample_rate"`

	// DipSwitches for VS System games; the slave console reads the high byte.
	DipSwitches uint32 `yaml:"dip_switches"`

	// DisablePPUReset keeps PPU state across soft resets.
	DisablePPUReset bool `yaml:"disable_ppu_reset"`

	rng *rand.Rand
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		Model:          ModelAuto,
		ConsoleType:    ConsoleNES,
		EmulationSpeed: 100,
		SampleRate:     44100,
	}
}

// Load reads a YAML settings file on top of the defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if s.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", s.SampleRate)
	}
	return s, nil
}

// Rand returns the random source used for power-on RAM and alignment.
func (s *Settings) Rand() *rand.Rand {
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(s.Seed, s.Seed^0x9E3779B97F4A7C15))
	}
	return s.rng
}

// InitializeRAM fills data according to the configured power-on state.
func (s *Settings) InitializeRAM(data []byte) {
	switch s.RAMPowerOnState {
	case RAMAllOnes:
		for i := range data {
			data[i] = 0xFF
		}
	case RAMRandom:
		rng := s.Rand()
		for i := range data {
			data[i] = uint8(rng.UintN(256))
		}
	default:
		clear(data)
	}
}
