//go:build sdl2

package sdl2

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/valerio/go-famicom/famicom/backend"
	"github.com/valerio/go-famicom/famicom/debug"
	"github.com/valerio/go-famicom/famicom/input"
	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
	"github.com/valerio/go-famicom/famicom/video"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	defaultScale  = 3
	bytesPerPixel = 4
)

// Backend renders into an SDL2 window.
// Note: building this requires SDL2 development libraries installed.
// Default builds skip this and use a stub, see build tags (sdl2)
type Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   []byte
	running  bool
	config   backend.BackendConfig

	currentFrame *video.FrameBuffer
}

func New() *Backend {
	return &Backend{
		pixels: make([]byte, video.FramebufferWidth*video.FramebufferHeight*bytesPerPixel),
	}
}

func (s *Backend) Init(config backend.BackendConfig) error {
	s.config = config
	scale := config.Scale
	if scale <= 0 {
		scale = defaultScale
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %w", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(video.FramebufferWidth*scale),
		int32(video.FramebufferHeight*scale),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("failed to create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	s.renderer = renderer
	renderer.SetLogicalSize(video.FramebufferWidth, video.FramebufferHeight)

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGBA8888,
		sdl.TEXTUREACCESS_STREAMING,
		video.FramebufferWidth,
		video.FramebufferHeight,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create texture: %w", err)
	}
	s.texture = texture
	s.running = true

	s.setupCallbacks()
	slog.Info("SDL2 backend initialized", "scale", scale)
	return nil
}

// Update drains the SDL event queue and presents frame. A nil frame only
// polls events.
func (s *Backend) Update(frame *video.FrameBuffer) error {
	if !s.running {
		return nil
	}

	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		s.handleEvent(e)
	}
	if !s.running || frame == nil {
		return nil
	}

	s.currentFrame = frame
	return s.renderFrame(frame)
}

func (s *Backend) Cleanup() error {
	slog.Info("Cleaning up SDL2 backend")
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
	return nil
}

func (s *Backend) setupCallbacks() {
	if s.config.InputManager == nil {
		slog.Warn("No input manager available, callbacks not registered")
		return
	}
	s.config.InputManager.On(action.EmulatorSnapshot, event.Press, func() {
		debug.TakeSnapshot(s.currentFrame)
	})
}

func (s *Backend) handleEvent(e sdl.Event) {
	switch e := e.(type) {
	case *sdl.QuitEvent:
		s.quit()
	case *sdl.KeyboardEvent:
		act, ok := keyMapping[e.Keysym.Sym]
		if !ok {
			return
		}
		switch {
		case e.Type == sdl.KEYDOWN && e.Repeat != 0:
			// key repeat
		case e.Type == sdl.KEYDOWN && act == action.EmulatorQuit:
			s.quit()
		case e.Type == sdl.KEYDOWN:
			s.trigger(act, event.Press)
		case e.Type == sdl.KEYUP && (act.IsPad() || act.IsVS()):
			s.trigger(act, event.Release)
		}
	}
}

func (s *Backend) trigger(act action.Action, evt event.Type) {
	if s.config.InputManager != nil {
		s.config.InputManager.Trigger(act, evt)
	}
}

func (s *Backend) quit() {
	s.running = false
	s.config.Callbacks.Quit()
}

// sdlKeyNameMap converts SDL keys to key names used in default mappings
var sdlKeyNameMap = map[sdl.Keycode]string{
	sdl.K_z:      "z",
	sdl.K_x:      "x",
	sdl.K_RETURN: "Enter",
	sdl.K_RSHIFT: "Shift",
	sdl.K_LSHIFT: "Shift",
	sdl.K_UP:     "Up",
	sdl.K_DOWN:   "Down",
	sdl.K_LEFT:   "Left",
	sdl.K_RIGHT:  "Right",
	sdl.K_w:      "w",
	sdl.K_a:      "a",
	sdl.K_s:      "s",
	sdl.K_d:      "d",
	sdl.K_k:      "k",
	sdl.K_j:      "j",
	sdl.K_i:      "i",
	sdl.K_m:      "m",
	sdl.K_u:      "u",
	sdl.K_o:      "o",
	sdl.K_5:      "5",
	sdl.K_6:      "6",
	sdl.K_7:      "7",
	sdl.K_SPACE:  "Space",
	sdl.K_p:      "p",
	sdl.K_f:      "f",
	sdl.K_F1:     "F1",
	sdl.K_F2:     "F2",
	sdl.K_F5:     "F5",
	sdl.K_F7:     "F7",
	sdl.K_F9:     "F9",
	sdl.K_ESCAPE: "Escape",
}

var keyMapping = buildKeyMapping()

func buildKeyMapping() map[sdl.Keycode]action.Action {
	mapping := make(map[sdl.Keycode]action.Action)
	for key, name := range sdlKeyNameMap {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	return mapping
}

func (s *Backend) renderFrame(frame *video.FrameBuffer) error {
	// framebuffer pixels are 0xRRGGBBAA, RGBA8888 wants them native endian
	for i, px := range frame.ToSlice() {
		*(*uint32)(unsafe.Pointer(&s.pixels[i*bytesPerPixel])) = px
	}
	if err := s.texture.Update(nil, unsafe.Pointer(&s.pixels[0]), video.FramebufferWidth*bytesPerPixel); err != nil {
		return fmt.Errorf("failed to update texture: %w", err)
	}

	s.renderer.SetDrawColor(0, 0, 0, 0xFF)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
	return nil
}
