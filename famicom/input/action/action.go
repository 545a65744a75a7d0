package action

// Action is something a key can be bound to
type Action int

const (
	// standard controller, player 1
	PadA Action = iota
	PadB
	PadSelect
	PadStart
	PadUp
	PadDown
	PadLeft
	PadRight

	// standard controller, player 2
	Pad2A
	Pad2B
	Pad2Select
	Pad2Start
	Pad2Up
	Pad2Down
	Pad2Left
	Pad2Right

	// VS System cabinet
	VSInsertCoin1
	VSInsertCoin2
	VSServiceButton

	// emulator features
	EmulatorPauseToggle
	EmulatorStepFrame
	EmulatorSnapshot
	EmulatorReset
	EmulatorPowerCycle
	EmulatorSaveState
	EmulatorLoadState
	EmulatorQuit

	DebugLogLevelIncrease
	DebugLogLevelDecrease
)

// IsPad reports whether a is a controller button.
func (a Action) IsPad() bool {
	return a >= PadA && a <= Pad2Right
}

// IsVS reports whether a is a cabinet button.
func (a Action) IsVS() bool {
	return a >= VSInsertCoin1 && a <= VSServiceButton
}

func (a Action) String() string {
	if s, ok := names[a]; ok {
		return s
	}
	return "Unknown"
}

var names = map[Action]string{
	PadA:                  "PadA",
	PadB:                  "PadB",
	PadSelect:             "PadSelect",
	PadStart:              "PadStart",
	PadUp:                 "PadUp",
	PadDown:               "PadDown",
	PadLeft:               "PadLeft",
	PadRight:              "PadRight",
	Pad2A:                 "Pad2A",
	Pad2B:                 "Pad2B",
	Pad2Select:            "Pad2Select",
	Pad2Start:             "Pad2Start",
	Pad2Up:                "Pad2Up",
	Pad2Down:              "Pad2Down",
	Pad2Left:              "Pad2Left",
	Pad2Right:             "Pad2Right",
	VSInsertCoin1:         "VSInsertCoin1",
	VSInsertCoin2:         "VSInsertCoin2",
	VSServiceButton:       "VSServiceButton",
	EmulatorPauseToggle:   "EmulatorPauseToggle",
	EmulatorStepFrame:     "EmulatorStepFrame",
	EmulatorSnapshot:      "EmulatorSnapshot",
	EmulatorReset:         "EmulatorReset",
	EmulatorPowerCycle:    "EmulatorPowerCycle",
	EmulatorSaveState:     "EmulatorSaveState",
	EmulatorLoadState:     "EmulatorLoadState",
	EmulatorQuit:          "EmulatorQuit",
	DebugLogLevelIncrease: "DebugLogLevelIncrease",
	DebugLogLevelDecrease: "DebugLogLevelDecrease",
}
