// Package debug holds the tooling that observes a running console without
// being part of the emulation: frame snapshots and the code/data logger.
package debug

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valerio/go-famicom/famicom/video"
)

// TakeSnapshot saves the frame as a timestamped PNG in the working
// directory, logging instead of failing.
func TakeSnapshot(frame *video.FrameBuffer) {
	if frame == nil {
		slog.Warn("No frame data available for snapshot")
		return
	}
	if _, err := SaveFramePNGToDir(frame, "famicom_snapshot", ""); err != nil {
		slog.Error("Failed to save snapshot", "error", err)
	}
}

// SaveFramePNGToDir writes frame to directory as <baseName>_<timestamp>.png
// and returns the path. An empty directory means the working directory.
func SaveFramePNGToDir(frame *video.FrameBuffer, baseName, directory string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.png", baseName, timestamp)

	outputDir := directory
	if outputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		outputDir = cwd
	}

	path := filepath.Join(outputDir, filename)
	if err := SaveFramePNG(frame, path); err != nil {
		return "", err
	}
	slog.Info("Snapshot saved", "path", path, "size", fmt.Sprintf("%dx%d", frame.Width(), frame.Height()), "format", "PNG")
	return path, nil
}

// SaveFramePNG writes frame to path.
func SaveFramePNG(frame *video.FrameBuffer, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, frame.Image()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
