package input

import "github.com/valerio/go-famicom/famicom/input/action"

// DefaultKeyMap holds the key names every backend understands. Backends
// translate their native key codes to these names.
var DefaultKeyMap = map[string]action.Action{
	"z":      action.PadA,
	"x":      action.PadB,
	"Enter":  action.PadStart,
	"Shift":  action.PadSelect,
	"Select": action.PadSelect,
	"Up":     action.PadUp,
	"Down":   action.PadDown,
	"Left":   action.PadLeft,
	"Right":  action.PadRight,

	"w": action.PadUp,
	"s": action.PadDown,
	"a": action.PadLeft,
	"d": action.PadRight,

	"k": action.Pad2A,
	"j": action.Pad2B,
	"i": action.Pad2Up,
	"m": action.Pad2Down,
	"u": action.Pad2Left,
	"o": action.Pad2Right,

	"5": action.VSInsertCoin1,
	"6": action.VSInsertCoin2,
	"7": action.VSServiceButton,

	"Space":  action.EmulatorPauseToggle,
	"p":      action.EmulatorPauseToggle,
	"f":      action.EmulatorStepFrame,
	"F9":     action.EmulatorSnapshot,
	"F1":     action.EmulatorReset,
	"F2":     action.EmulatorPowerCycle,
	"F5":     action.EmulatorSaveState,
	"F7":     action.EmulatorLoadState,
	"Escape": action.EmulatorQuit,
	"q":      action.EmulatorQuit,

	"+": action.DebugLogLevelIncrease,
	"=": action.DebugLogLevelIncrease,
	"-": action.DebugLogLevelDecrease,
	"_": action.DebugLogLevelDecrease,
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (action.Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}
