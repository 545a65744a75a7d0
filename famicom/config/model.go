package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model is the video timing standard of the emulated console.
type Model uint8

const (
	ModelAuto Model = iota
	ModelNTSC
	ModelPAL
	ModelDendy
)

var modelNames = map[Model]string{
	ModelAuto:  "auto",
	ModelNTSC:  "ntsc",
	ModelPAL:   "pal",
	ModelDendy: "dendy",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", uint8(m))
}

// ParseModel converts a region name (case insensitive) to a Model.
func ParseModel(name string) (Model, error) {
	for m, n := range modelNames {
		if strings.EqualFold(n, name) {
			return m, nil
		}
	}
	return ModelAuto, fmt.Errorf("unknown region %q", name)
}

func (m *Model) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseModel(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ConsoleType selects between NES and Famicom bus behaviour. The two
// differ in controller port open bus bits and in how DMA reads of the
// controller registers are aliased.
type ConsoleType uint8

const (
	ConsoleNES ConsoleType = iota
	ConsoleFamicom
)

func (c ConsoleType) String() string {
	if c == ConsoleFamicom {
		return "famicom"
	}
	return "nes"
}

// ParseConsoleType converts "nes" or "famicom" to a ConsoleType.
func ParseConsoleType(name string) (ConsoleType, error) {
	switch strings.ToLower(name) {
	case "nes", "":
		return ConsoleNES, nil
	case "famicom", "fc":
		return ConsoleFamicom, nil
	}
	return ConsoleNES, fmt.Errorf("unknown console type %q", name)
}

func (c *ConsoleType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseConsoleType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// RAMPowerOnState controls the contents of RAM after a power cycle.
type RAMPowerOnState uint8

const (
	RAMAllZeros RAMPowerOnState = iota
	RAMAllOnes
	RAMRandom
)

func (r RAMPowerOnState) String() string {
	switch r {
	case RAMAllOnes:
		return "ones"
	case RAMRandom:
		return "random"
	}
	return "zeros"
}

// ParseRAMPowerOnState converts "zeros", "ones" or "random".
func ParseRAMPowerOnState(name string) (RAMPowerOnState, error) {
	switch strings.ToLower(name) {
	case "zeros", "zero", "":
		return RAMAllZeros, nil
	case "ones", "one":
		return RAMAllOnes, nil
	case "random":
		return RAMRandom, nil
	}
	return RAMAllZeros, fmt.Errorf("unknown RAM power-on state %q", name)
}

func (r *RAMPowerOnState) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseRAMPowerOnState(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
