// Package savestate wraps the console state stream in a header that
// identifies the format version and the ROM it was taken from.
package savestate

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valerio/go-famicom/famicom/rom"
)

const (
	// FormatVersion is written into every new save state.
	FormatVersion uint32 = 1
	// MinimumVersion is the oldest format Load still accepts.
	MinimumVersion uint32 = 1

	magic     = "FCS"
	sha1Len   = 40
	maxName   = 4096
	extension = ".fcs"
)

var (
	ErrInvalidHeader       = errors.New("not a save state")
	ErrIncompatibleVersion = errors.New("incompatible save state version")
	ErrROMMismatch         = errors.New("save state was taken from a different ROM")
)

// Machine is the console a Manager saves and restores.
type Machine interface {
	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
	Initialize(data *rom.Data) error
	ROM() *rom.Data
}

// ROMMatcher looks up the ROM a state was taken from. It returns nil data
// when no such ROM is available.
type ROMMatcher func(name, sha1 string) (*rom.Data, error)

// Header describes a save state without its payload.
type Header struct {
	Version     uint32
	MapperID    uint16
	SubMapperID uint8
	SHA1        string
	Name        string
}

// Manager saves and loads headered states for one machine.
type Manager struct {
	machine Machine
	matcher ROMMatcher
}

func New(m Machine) *Manager {
	return &Manager{machine: m}
}

// SetROMMatcher installs the fallback used when a state belongs to a ROM
// other than the loaded one.
func (m *Manager) SetROMMatcher(fn ROMMatcher) {
	m.matcher = fn
}

// Save writes the header and the machine state to w.
func (m *Manager) Save(w io.Writer) error {
	info := m.machine.ROM().Info
	h := Header{
		Version:     FormatVersion,
		MapperID:    info.MapperID,
		SubMapperID: info.SubMapperID,
		SHA1:        info.Hash.SHA1,
		Name:        info.Name,
	}
	if err := writeHeader(w, h); err != nil {
		return fmt.Errorf("failed to write save state header: %w", err)
	}
	return m.machine.SaveState(w)
}

// Load reads a state written by Save. A state taken from another ROM is
// only accepted when the ROM matcher can provide that ROM, which then
// replaces the loaded one.
func (m *Manager) Load(r io.Reader) error {
	h, err := ReadHeader(r)
	if err != nil {
		return err
	}

	current := m.machine.ROM().Info
	if h.SHA1 != current.Hash.SHA1 {
		if err := m.switchROM(h); err != nil {
			return err
		}
	}

	if err := m.machine.LoadState(r); err != nil {
		return fmt.Errorf("failed to load save state: %w", err)
	}
	slog.Info("State loaded", "rom", h.Name, "version", h.Version)
	return nil
}

func (m *Manager) switchROM(h Header) error {
	if m.matcher == nil {
		return fmt.Errorf("%w: %s", ErrROMMismatch, h.Name)
	}
	data, err := m.matcher(h.Name, h.SHA1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrROMMismatch, err)
	}
	if data == nil || data.Info.Hash.SHA1 != h.SHA1 {
		return fmt.Errorf("%w: %s", ErrROMMismatch, h.Name)
	}
	slog.Info("Switching ROM to match save state", "rom", data.Info.Name)
	if err := m.machine.Initialize(data); err != nil {
		return fmt.Errorf("failed to load matching ROM: %w", err)
	}
	return nil
}

// SaveFile writes a state to path.
func (m *Manager) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create save state: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.Save(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write save state: %w", err)
	}
	return f.Close()
}

// LoadFile restores the state stored at path.
func (m *Manager) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open save state: %w", err)
	}
	defer f.Close()
	return m.Load(bufio.NewReader(f))
}

// SlotPath returns the file name of a numbered save slot for a ROM.
func SlotPath(dir, romName string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", romName, slot, extension))
}

func writeHeader(w io.Writer, h Header) error {
	if len(h.SHA1) != sha1Len {
		return fmt.Errorf("invalid ROM hash %q", h.SHA1)
	}
	var buf []byte
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint16(buf, h.MapperID)
	buf = append(buf, h.SubMapperID)
	buf = append(buf, h.SHA1...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Name)))
	buf = append(buf, h.Name...)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates the header at the start of r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	fixed := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(fixed[:len(magic)]) != magic {
		return h, ErrInvalidHeader
	}
	h.Version = binary.LittleEndian.Uint32(fixed[len(magic):])
	if h.Version < MinimumVersion || h.Version > FormatVersion {
		return h, fmt.Errorf("%w: %d (supported %d-%d)", ErrIncompatibleVersion, h.Version, MinimumVersion, FormatVersion)
	}

	rest := make([]byte, 2+1+sha1Len+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	h.MapperID = binary.LittleEndian.Uint16(rest)
	h.SubMapperID = rest[2]
	h.SHA1 = string(rest[3 : 3+sha1Len])
	nameLen := binary.LittleEndian.Uint32(rest[3+sha1Len:])
	if nameLen > maxName {
		return h, fmt.Errorf("%w: name length %d", ErrInvalidHeader, nameLen)
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	h.Name = string(name)
	return h, nil
}

// DirectoryMatcher finds ROMs by hash among the .nes files in dir, trying
// <name>.nes first.
func DirectoryMatcher(dir string) ROMMatcher {
	return func(name, sha1 string) (*rom.Data, error) {
		candidates := []string{filepath.Join(dir, name+".nes")}
		others, err := filepath.Glob(filepath.Join(dir, "*.nes"))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, others...)

		for _, path := range candidates {
			data, err := rom.Load(path)
			if err != nil {
				continue
			}
			if data.Info.Hash.SHA1 == sha1 {
				return data, nil
			}
		}
		return nil, nil
	}
}
