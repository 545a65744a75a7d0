package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-famicom/famicom/backend"
	"github.com/valerio/go-famicom/famicom/backend/headless"
	"github.com/valerio/go-famicom/famicom/cheat"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/debug"
	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/video"
)

// loopProgram increments $00 forever with NMIs enabled.
var loopProgram = []byte{
	0xA9, 0x80,       // LDA #$80
	0x8D, 0x00, 0x20, // STA $2000
	0xE6, 0x00,       // loop: INC $00
	0x4C, 0x05, 0x80, // JMP loop
	0x40,             // nmi: RTI
}

func testROM() *rom.Data {
	prg := make([]byte, 0x8000)
	copy(prg, loopProgram)
	// NMI, reset and IRQ vectors
	copy(prg[0x7FFA:], []byte{0x0A, 0x80, 0x00, 0x80, 0x0A, 0x80})
	return rom.New(rom.Info{Name: "test", System: rom.SystemNTSC, HasBattery: true}, prg, make([]byte, 0x2000))
}

func unthrottled() *config.Settings {
	s := config.Default()
	s.EmulationSpeed = 0
	return s
}

// scriptedBackend presses an action on given Update calls.
type scriptedBackend struct {
	config  backend.BackendConfig
	script  map[int]action.Action
	updates int
	frames  int
	cleaned bool
}

func (b *scriptedBackend) Init(config backend.BackendConfig) error {
	b.config = config
	return nil
}

func (b *scriptedBackend) Update(frame *video.FrameBuffer) error {
	b.updates++
	if frame != nil {
		b.frames++
	}
	if act, ok := b.script[b.updates]; ok {
		b.config.InputManager.Trigger(act, event.Press)
	}
	return nil
}

func (b *scriptedBackend) Cleanup() error {
	b.cleaned = true
	return nil
}

func TestNewRequiresROMAndBackend(t *testing.T) {
	_, err := New(Options{Backend: &scriptedBackend{}})
	assert.Error(t, err)
	_, err = New(Options{ROM: testROM()})
	assert.Error(t, err)
}

func TestCheatOptions(t *testing.T) {
	s, err := New(Options{
		ROM:      testROM(),
		Settings: unthrottled(),
		Backend:  &scriptedBackend{},
		Cheats:   []string{"SXIOPO", "0006:01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Console().Cheats().Len())

	_, err = New(Options{
		ROM:     testROM(),
		Backend: &scriptedBackend{},
		Cheats:  []string{"not a code"},
	})
	assert.ErrorIs(t, err, cheat.ErrInvalidCode)
}

func TestHeadlessRun(t *testing.T) {
	dir := t.TempDir()
	snapshots, err := headless.CreateSnapshotConfig(5, dir, "test.nes")
	require.NoError(t, err)

	s, err := New(Options{
		ROM:        testROM(),
		Settings:   unthrottled(),
		Backend:    headless.New(10, snapshots),
		Frames:     10,
		WAVPath:    filepath.Join(dir, "out.wav"),
		BatteryDir: dir,
		SaveState:  filepath.Join(dir, "end.fcs"),
		CDLPath:    filepath.Join(dir, "test.cdl"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 10, s.Runner().Frames())
	for _, name := range []string{"test_frame_5.png", "test_frame_10.png", "out.wav", "end.fcs", "test.cdl", "test.sav"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	logger := debug.NewCodeDataLogger(nil, 0x8000)
	require.NoError(t, logger.Load(filepath.Join(dir, "test.cdl")))
	assert.NotZero(t, logger.Flags(0)&debug.CDLCode)
	assert.NotZero(t, logger.Flags(5)&debug.CDLCode)
	assert.Zero(t, logger.Flags(0x4000))
}

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "end.fcs")

	first, err := New(Options{
		ROM:       testROM(),
		Settings:  unthrottled(),
		Backend:   &scriptedBackend{},
		Frames:    7,
		SaveState: statePath,
	})
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))
	saved := first.Console().FrameCount()

	second, err := New(Options{
		ROM:       testROM(),
		Settings:  unthrottled(),
		Backend:   &scriptedBackend{},
		Frames:    1,
		LoadState: statePath,
	})
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background()))
	assert.Equal(t, saved+1, second.Console().FrameCount())
}

func TestLoadStateMissing(t *testing.T) {
	b := &scriptedBackend{}
	s, err := New(Options{
		ROM:       testROM(),
		Settings:  unthrottled(),
		Backend:   b,
		LoadState: filepath.Join(t.TempDir(), "missing.fcs"),
	})
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background()))
	assert.True(t, b.cleaned)
}

func TestActions(t *testing.T) {
	t.Run("quit", func(t *testing.T) {
		b := &scriptedBackend{script: map[int]action.Action{3: action.EmulatorQuit}}
		s, err := New(Options{ROM: testROM(), Settings: unthrottled(), Backend: b})
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, 3, b.frames)
		assert.True(t, b.cleaned)
	})

	t.Run("pause keeps polling", func(t *testing.T) {
		b := &scriptedBackend{script: map[int]action.Action{
			2: action.EmulatorPauseToggle,
			5: action.EmulatorQuit,
		}}
		s, err := New(Options{ROM: testROM(), Settings: unthrottled(), Backend: b})
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, 5, b.updates)
		assert.Equal(t, 2, b.frames)
		assert.True(t, s.Runner().Paused())
	})

	t.Run("quick save and load", func(t *testing.T) {
		dir := t.TempDir()
		b := &scriptedBackend{script: map[int]action.Action{
			2: action.EmulatorSaveState,
			4: action.EmulatorLoadState,
			6: action.EmulatorQuit,
		}}
		s, err := New(Options{ROM: testROM(), Settings: unthrottled(), Backend: b, StateDir: dir})
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))

		_, err = os.Stat(filepath.Join(dir, "test_1.fcs"))
		require.NoError(t, err)
		// saved at frame 3, reloaded two frames later
		assert.Equal(t, uint32(5), s.Console().FrameCount())
	})

	t.Run("pad buttons reach the console", func(t *testing.T) {
		b := &scriptedBackend{script: map[int]action.Action{1: action.PadStart, 2: action.EmulatorQuit}}
		s, err := New(Options{ROM: testROM(), Settings: unthrottled(), Backend: b})
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		assert.NotZero(t, s.Input().Held(0))
	})
}

func TestStatusPanel(t *testing.T) {
	s, err := New(Options{ROM: testROM(), Settings: unthrottled(), Backend: &scriptedBackend{}})
	require.NoError(t, err)
	lines := statusPanel{s}.DebugLines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "RUNNING")
	assert.Contains(t, lines[2], "PC: $8000")
}
