package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"
	"github.com/valerio/go-famicom/famicom/backend"
	"github.com/valerio/go-famicom/famicom/backend/headless"
	"github.com/valerio/go-famicom/famicom/backend/sdl2"
	"github.com/valerio/go-famicom/famicom/backend/terminal"
	"github.com/valerio/go-famicom/famicom/battery"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/session"
	"golang.org/x/term"
)

func main() {
	app := cli.NewApp()
	app.Name = "famicom"
	app.Description = "A cycle accurate NES/Famicom emulator"
	app.Usage = "famicom [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML settings file, flags override its values",
		},
		cli.StringFlag{
			Name:  "region",
			Usage: "Video region: auto, ntsc, pal or dendy",
			Value: "auto",
		},
		cli.StringFlag{
			Name:  "console",
			Usage: "Console type: nes or famicom",
			Value: "nes",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the emulator without a graphical interface",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run (required for headless)",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save frame snapshots every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save frame snapshots (default: temp directory)",
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "Record audio to a WAV file",
		},
		cli.BoolFlag{
			Name:  "audio",
			Usage: "Play audio through the sound card",
		},
		cli.BoolFlag{
			Name:  "sdl2",
			Usage: "Use the SDL2 window (binary must be built with -tags sdl2)",
		},
		cli.IntFlag{
			Name:  "scale",
			Usage: "Window scale for SDL2, pixel step for the terminal",
		},
		cli.StringFlag{
			Name:  "save-state",
			Usage: "Write a save state to this path on exit",
		},
		cli.StringFlag{
			Name:  "load-state",
			Usage: "Restore a save state before running",
		},
		cli.StringFlag{
			Name:  "state-dir",
			Usage: "Directory for the quick save slot (default: next to battery saves)",
		},
		cli.StringFlag{
			Name:  "battery-dir",
			Usage: "Directory for battery-backed save RAM",
			Value: battery.DefaultDir(),
		},
		cli.StringFlag{
			Name:  "cdl",
			Usage: "Code/data log file, merged on start and written on exit",
		},
		cli.StringSliceFlag{
			Name:  "cheat",
			Usage: "Game Genie, Pro Action Rocky or AAAA:VV[:CC] code, repeatable",
		},
		cli.BoolFlag{
			Name:  "random-alignment",
			Usage: "Pick a random CPU/PPU alignment at each reset",
		},
		cli.StringFlag{
			Name:  "ram-state",
			Usage: "RAM contents at power on: zeros, ones or random",
			Value: "zeros",
		},
		cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for random RAM and alignment",
		},
		cli.BoolFlag{
			Name:  "integer-fps",
			Usage: "Run at exactly 60/50 frames per second",
		},
		cli.IntFlag{
			Name:  "speed",
			Usage: "Emulation speed in percent (0 = unthrottled)",
			Value: 100,
		},
		cli.BoolFlag{
			Name:  "statsview",
			Usage: "Serve runtime statistics at " + statsAddress + statsPath,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = runEmulator

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	data, err := rom.Load(romPath)
	if err != nil {
		return err
	}
	slog.Info("ROM loaded",
		"name", data.Info.Name,
		"mapper", data.Info.MapperID,
		"system", data.Info.System.String(),
		"sha1", data.Info.Hash.SHA1)

	headlessMode := c.Bool("headless") || !term.IsTerminal(int(os.Stdout.Fd()))
	frames := c.Int("frames")
	if headlessMode && frames <= 0 {
		return errors.New("headless mode requires --frames option with a positive value")
	}

	be, err := selectBackend(c, headlessMode, frames, romPath)
	if err != nil {
		return err
	}

	if c.Bool("statsview") {
		launchStatsView()
	}

	stateDir := c.String("state-dir")
	if stateDir == "" {
		stateDir = session.DefaultStateDir()
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	s, err := session.New(session.Options{
		ROM:        data,
		ROMDir:     filepath.Dir(romPath),
		Settings:   settings,
		Backend:    be,
		Title:      "Famicom - " + data.Info.Name,
		Scale:      c.Int("scale"),
		Frames:     frames,
		Audio:      c.Bool("audio"),
		WAVPath:    c.String("wav"),
		BatteryDir: c.String("battery-dir"),
		StateDir:   stateDir,
		LoadState:  c.String("load-state"),
		SaveState:  c.String("save-state"),
		CDLPath:    c.String("cdl"),
		Cheats:     c.StringSlice("cheat"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

func selectBackend(c *cli.Context, headlessMode bool, frames int, romPath string) (backend.Backend, error) {
	switch {
	case headlessMode:
		snapshots, err := headless.CreateSnapshotConfig(c.Int("snapshot-interval"), c.String("snapshot-dir"), romPath)
		if err != nil {
			return nil, err
		}
		return headless.New(frames, snapshots), nil
	case c.Bool("sdl2"):
		return sdl2.New(), nil
	default:
		return terminal.New(), nil
	}
}

// loadSettings reads the optional settings file and applies the flags
// that were given explicitly on top of it.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	settings := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	if c.IsSet("region") {
		model, err := config.ParseModel(c.String("region"))
		if err != nil {
			return nil, err
		}
		settings.Model = model
	}
	if c.IsSet("console") {
		consoleType, err := config.ParseConsoleType(c.String("console"))
		if err != nil {
			return nil, err
		}
		settings.ConsoleType = consoleType
	}
	if c.IsSet("ram-state") {
		ramState, err := config.ParseRAMPowerOnState(c.String("ram-state"))
		if err != nil {
			return nil, err
		}
		settings.RAMPowerOnState = ramState
	}
	if c.IsSet("random-alignment") {
		settings.RandomizeAlignment = true
	}
	if c.IsSet("seed") {
		settings.Seed = c.Uint64("seed")
	}
	if c.IsSet("integer-fps") {
		settings.IntegerFPS = true
	}
	if c.IsSet("speed") {
		settings.EmulationSpeed = max(c.Int("speed"), 0)
	}
	return settings, nil
}
