package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-famicom/famicom/backend"
	"github.com/valerio/go-famicom/famicom/backend/terminal/render"
	"github.com/valerio/go-famicom/famicom/debug"
	"github.com/valerio/go-famicom/famicom/input"
	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
	"github.com/valerio/go-famicom/famicom/video"
)

const (
	defaultScale = 2
	logCapacity  = 200
	panelWidth   = 40
	statusHeight = 8

	// terminals only report key presses, a key counts as released once
	// it has not repeated for this long
	keyTimeout = 100 * time.Millisecond
)

// Backend renders frames into the terminal with half-block characters
// and shows the captured log next to them.
type Backend struct {
	screen    tcell.Screen
	running   bool
	config    backend.BackendConfig
	scale     int
	logBuffer *render.LogBuffer
	logLevel  slog.Level
	signals   chan os.Signal

	keyStates  map[action.Action]time.Time // last time each pad key was seen
	activeKeys map[action.Action]bool

	currentFrame *video.FrameBuffer
}

func New() *Backend {
	return &Backend{logLevel: slog.LevelInfo}
}

func (t *Backend) Init(config backend.BackendConfig) error {
	t.config = config
	t.scale = config.Scale
	if t.scale <= 0 {
		t.scale = defaultScale
	}
	t.keyStates = make(map[action.Action]time.Time)
	t.activeKeys = make(map[action.Action]bool)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen = screen
	t.running = true

	// logs go to the side panel while the screen is owned by tcell
	t.logBuffer = render.NewLogBuffer(logCapacity)
	slog.SetDefault(slog.New(render.NewHandler(t.logBuffer, slog.LevelDebug)))

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	t.signals = make(chan os.Signal, 1)
	signal.Notify(t.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	t.setupCallbacks()
	slog.Info("Terminal backend initialized", "colors", screen.Colors())
	return nil
}

func (t *Backend) setupCallbacks() {
	im := t.config.InputManager
	if im == nil {
		slog.Warn("No input manager available, callbacks not registered")
		return
	}
	im.On(action.EmulatorSnapshot, event.Press, func() {
		debug.TakeSnapshot(t.currentFrame)
	})
	im.On(action.DebugLogLevelIncrease, event.Press, func() { t.changeLogLevel(1) })
	im.On(action.DebugLogLevelDecrease, event.Press, func() { t.changeLogLevel(-1) })
}

// Update polls keys and signals, then draws frame. A nil frame redraws
// the last one so the log panel stays live while paused.
func (t *Backend) Update(frame *video.FrameBuffer) error {
	select {
	case sig := <-t.signals:
		slog.Info("Received signal", "signal", sig)
		t.stop()
	default:
	}

	now := time.Now()
	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev, now)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
	t.updatePads(now)

	if !t.running {
		return nil
	}

	if frame != nil {
		t.currentFrame = frame
	}
	t.render()
	t.screen.Show()
	return nil
}

func (t *Backend) Cleanup() error {
	if t.signals != nil {
		signal.Stop(t.signals)
	}
	if t.screen != nil {
		slog.Info("Cleaning up terminal backend")
		t.screen.Fini()
	}
	// restore plain logging once the screen is gone
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return nil
}

func (t *Backend) stop() {
	if !t.running {
		return
	}
	t.running = false
	t.config.Callbacks.Quit()
}

// updatePads turns the key repeat stream into press, hold and release
// events for the controller buttons.
func (t *Backend) updatePads(now time.Time) {
	im := t.config.InputManager
	active := make(map[action.Action]bool)

	for act, last := range t.keyStates {
		if now.Sub(last) >= keyTimeout {
			delete(t.keyStates, act)
			continue
		}
		active[act] = true
		if im == nil {
			continue
		}
		if t.activeKeys[act] {
			im.Trigger(act, event.Hold)
		} else {
			slog.Debug("Key press", "action", act)
			im.Trigger(act, event.Press)
		}
	}

	for act := range t.activeKeys {
		if !active[act] && im != nil {
			slog.Debug("Key release", "action", act)
			im.Trigger(act, event.Release)
		}
	}
	t.activeKeys = active
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey, now time.Time) {
	act, ok := keyMapping[ev.Key()]
	if !ok && ev.Key() == tcell.KeyRune {
		act, ok = runeMapping[ev.Rune()]
	}
	if !ok {
		return
	}

	if act.IsPad() || act.IsVS() {
		if opposite, ok := oppositeDirection[act]; ok {
			// a terminal cannot report two held directions, the newest wins
			delete(t.keyStates, opposite)
		}
		t.keyStates[act] = now
		return
	}

	if act == action.EmulatorQuit {
		t.stop()
		return
	}
	if t.config.InputManager != nil {
		t.config.InputManager.Trigger(act, event.Press)
	}
}

var oppositeDirection = map[action.Action]action.Action{
	action.PadUp:     action.PadDown,
	action.PadDown:   action.PadUp,
	action.PadLeft:   action.PadRight,
	action.PadRight:  action.PadLeft,
	action.Pad2Up:    action.Pad2Down,
	action.Pad2Down:  action.Pad2Up,
	action.Pad2Left:  action.Pad2Right,
	action.Pad2Right: action.Pad2Left,
}

// tcellKeyNameMap converts tcell keys to key names used in default mappings
var tcellKeyNameMap = map[tcell.Key]string{
	tcell.KeyEnter:  "Enter",
	tcell.KeyTab:    "Select",
	tcell.KeyUp:     "Up",
	tcell.KeyDown:   "Down",
	tcell.KeyLeft:   "Left",
	tcell.KeyRight:  "Right",
	tcell.KeyEscape: "Escape",
	tcell.KeyF1:     "F1",
	tcell.KeyF2:     "F2",
	tcell.KeyF5:     "F5",
	tcell.KeyF7:     "F7",
	tcell.KeyF9:     "F9",
}

func buildKeyMapping() map[tcell.Key]action.Action {
	mapping := make(map[tcell.Key]action.Action)
	for key, name := range tcellKeyNameMap {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	mapping[tcell.KeyCtrlC] = action.EmulatorQuit
	return mapping
}

// buildRuneMapping takes every single character key of the defaults.
func buildRuneMapping() map[rune]action.Action {
	mapping := make(map[rune]action.Action)
	for name, act := range input.DefaultKeyMap {
		runes := []rune(name)
		if len(runes) == 1 {
			mapping[runes[0]] = act
		}
	}
	if act, ok := input.GetDefaultMapping("Space"); ok {
		mapping[' '] = act
	}
	return mapping
}

var (
	keyMapping  = buildKeyMapping()
	runeMapping = buildRuneMapping()
)

func (t *Backend) changeLogLevel(direction int) {
	levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	idx := 1
	for i, l := range levels {
		if l == t.logLevel {
			idx = i
		}
	}
	// increasing shows more, so it walks towards debug
	idx = min(max(idx-direction, 0), len(levels)-1)
	if levels[idx] != t.logLevel {
		old := t.logLevel
		t.logLevel = levels[idx]
		slog.Info("Log filter changed", "from", old, "to", t.logLevel)
	}
}

func (t *Backend) render() {
	termWidth, termHeight := t.screen.Size()
	gameWidth := video.FramebufferWidth / t.scale
	gameHeight := video.FramebufferHeight / (2 * t.scale)

	t.screen.Clear()
	if termWidth < gameWidth+2 || termHeight < gameHeight+2 {
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		t.drawText(0, termHeight/2, termWidth, fmt.Sprintf("Terminal too small! Need at least %dx%d", gameWidth+2, gameHeight+2), style)
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	t.drawText(1, 0, gameWidth, " "+t.config.Title+" ", titleStyle)
	if t.currentFrame != nil {
		t.drawFrame(t.currentFrame, 0, 1)
	}

	dividerX := gameWidth + 1
	panelX := dividerX + 2
	for y := 0; y < termHeight; y++ {
		t.screen.SetContent(dividerX, y, '│', nil, borderStyle)
	}
	width := min(termWidth-panelX, panelWidth*2)

	logsY := 0
	if t.config.Debug != nil {
		t.drawText(panelX, 0, width, " Status ", titleStyle)
		style := tcell.StyleDefault.Foreground(tcell.ColorBlue)
		for i, line := range t.config.Debug.DebugLines() {
			if i >= statusHeight {
				break
			}
			t.drawText(panelX, 1+i, width, line, style)
		}
		logsY = statusHeight + 2
	}

	t.drawText(panelX, logsY, width, fmt.Sprintf(" Logs [%s] (-/+ filter) ", t.logLevel), titleStyle)
	t.drawLogs(panelX, logsY+1, width, termHeight-1)

	help := " Z/X=A/B Enter=start Tab=select SPACE=pause F=frame F1=reset F5/F7=save/load F9=snapshot ESC=exit "
	t.drawText(0, termHeight-1, termWidth, help, borderStyle)
}

// drawFrame shows two source rows per cell, sampling every scale pixels.
func (t *Backend) drawFrame(frame *video.FrameBuffer, originX, originY int) {
	trueColor := t.screen.Colors() >= 256
	step := uint(t.scale)

	for y := uint(0); y+step < video.FramebufferHeight; y += 2 * step {
		for x := uint(0); x < video.FramebufferWidth; x += step {
			screenX := originX + int(x/step)
			screenY := originY + int(y/(2*step))

			if !trueColor {
				avg := (int(frame.Luminance(x, y)) + int(frame.Luminance(x, y+step))) / 2
				shade := render.Shade(uint8(avg))
				t.screen.SetContent(screenX, screenY, render.ShadeChar(shade), nil, tcell.StyleDefault)
				continue
			}

			top, bottom := frame.Color(x, y), frame.Color(x, y+step)
			char := render.HalfBlock(frame.GetPixel(x, y), frame.GetPixel(x, y+step))
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			t.screen.SetContent(screenX, screenY, char, nil, style)
		}
	}
}

func (t *Backend) drawLogs(startX, startY, width, endY int) {
	available := endY - startY
	if width <= 0 || available <= 0 {
		return
	}

	styles := map[slog.Level]tcell.Style{
		slog.LevelDebug: tcell.StyleDefault.Foreground(tcell.ColorGray),
		slog.LevelInfo:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
		slog.LevelWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
		slog.LevelError: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	}

	y := startY
	for _, entry := range t.logBuffer.GetRecent(0) {
		if y >= endY {
			break
		}
		if entry.Level < t.logLevel {
			continue
		}
		text := render.FormatLogEntry(entry)
		if len(text) > width && width > 3 {
			text = text[:width-3] + "..."
		}
		t.drawText(startX, y, width, text, styles[entry.Level])
		y++
	}
}

func (t *Backend) drawText(x, y, width int, text string, style tcell.Style) {
	i := 0
	for _, ch := range text {
		if i >= width {
			return
		}
		t.screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}
