package savestate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-famicom/famicom/rom"
)

// fakeMachine saves a fixed payload and records what it loads.
type fakeMachine struct {
	data        *rom.Data
	payload     []byte
	loaded      []byte
	initialized *rom.Data
}

func (m *fakeMachine) SaveState(w io.Writer) error {
	_, err := w.Write(m.payload)
	return err
}

func (m *fakeMachine) LoadState(r io.Reader) error {
	var err error
	m.loaded, err = io.ReadAll(r)
	return err
}

func (m *fakeMachine) Initialize(data *rom.Data) error {
	m.data = data
	m.initialized = data
	return nil
}

func (m *fakeMachine) ROM() *rom.Data { return m.data }

func testROM(name string, fill byte) *rom.Data {
	prg := bytes.Repeat([]byte{fill}, 0x8000)
	return rom.New(rom.Info{Name: name, MapperID: 4, SubMapperID: 1}, prg, make([]byte, 0x2000))
}

func TestSaveLoad(t *testing.T) {
	m := &fakeMachine{data: testROM("game", 1), payload: []byte{1, 2, 3}}
	mgr := New(m)

	var buf bytes.Buffer
	require.NoError(t, mgr.Save(&buf))

	h, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.Version)
	assert.Equal(t, uint16(4), h.MapperID)
	assert.Equal(t, uint8(1), h.SubMapperID)
	assert.Equal(t, "game", h.Name)
	assert.Len(t, h.SHA1, 40)

	require.NoError(t, mgr.Load(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, []byte{1, 2, 3}, m.loaded)
	assert.Nil(t, m.initialized)
}

func TestLoadErrors(t *testing.T) {
	m := &fakeMachine{data: testROM("game", 1), payload: []byte{9}}
	mgr := New(m)
	var buf bytes.Buffer
	require.NoError(t, mgr.Save(&buf))
	saved := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("XYZ"), saved[3:]...)
		assert.ErrorIs(t, mgr.Load(bytes.NewReader(bad)), ErrInvalidHeader)
	})

	t.Run("truncated", func(t *testing.T) {
		assert.ErrorIs(t, mgr.Load(bytes.NewReader(saved[:10])), ErrInvalidHeader)
	})

	for _, version := range []uint32{0, FormatVersion + 1} {
		bad := append([]byte(nil), saved...)
		binary.LittleEndian.PutUint32(bad[3:], version)
		assert.ErrorIs(t, mgr.Load(bytes.NewReader(bad)), ErrIncompatibleVersion, "version %d", version)
	}

	t.Run("other rom without matcher", func(t *testing.T) {
		other := &fakeMachine{data: testROM("other", 2)}
		err := New(other).Load(bytes.NewReader(saved))
		assert.ErrorIs(t, err, ErrROMMismatch)
		assert.Nil(t, other.loaded)
	})
}

func TestROMMatcher(t *testing.T) {
	original := testROM("game", 1)
	m := &fakeMachine{data: original, payload: []byte{7}}
	var buf bytes.Buffer
	require.NoError(t, New(m).Save(&buf))

	t.Run("matching rom is loaded first", func(t *testing.T) {
		other := &fakeMachine{data: testROM("other", 2)}
		mgr := New(other)
		mgr.SetROMMatcher(func(name, sha1 string) (*rom.Data, error) {
			assert.Equal(t, "game", name)
			return testROM("game", 1), nil
		})
		require.NoError(t, mgr.Load(bytes.NewReader(buf.Bytes())))
		require.NotNil(t, other.initialized)
		assert.Equal(t, original.Info.Hash.SHA1, other.initialized.Info.Hash.SHA1)
		assert.Equal(t, []byte{7}, other.loaded)
	})

	t.Run("matcher returns the wrong rom", func(t *testing.T) {
		other := &fakeMachine{data: testROM("other", 2)}
		mgr := New(other)
		mgr.SetROMMatcher(func(string, string) (*rom.Data, error) { return testROM("game", 3), nil })
		assert.ErrorIs(t, mgr.Load(bytes.NewReader(buf.Bytes())), ErrROMMismatch)
		assert.Nil(t, other.initialized)
	})

	t.Run("matcher fails", func(t *testing.T) {
		other := &fakeMachine{data: testROM("other", 2)}
		mgr := New(other)
		mgr.SetROMMatcher(func(string, string) (*rom.Data, error) { return nil, errors.New("not found") })
		assert.ErrorIs(t, mgr.Load(bytes.NewReader(buf.Bytes())), ErrROMMismatch)
	})
}

func TestFiles(t *testing.T) {
	m := &fakeMachine{data: testROM("game", 1), payload: []byte{4, 5}}
	mgr := New(m)

	path := SlotPath(t.TempDir(), "game", 1)
	assert.Equal(t, "game_1.fcs", filepath.Base(path))

	require.NoError(t, mgr.SaveFile(path))
	require.NoError(t, mgr.LoadFile(path))
	assert.Equal(t, []byte{4, 5}, m.loaded)

	assert.Error(t, mgr.LoadFile(filepath.Join(t.TempDir(), "missing.fcs")))
}

func writeINES(t *testing.T, path string, fill byte) *rom.Data {
	t.Helper()
	raw := append([]byte("NES\x1a"), 2, 1)
	raw = append(raw, make([]byte, 10)...)
	raw = append(raw, bytes.Repeat([]byte{fill}, 0x8000+0x2000)...)
	require.NoError(t, os.WriteFile(path, raw, 0644))
	data, err := rom.Load(path)
	require.NoError(t, err)
	return data
}

func TestDirectoryMatcher(t *testing.T) {
	dir := t.TempDir()
	game := writeINES(t, filepath.Join(dir, "game.nes"), 1)
	writeINES(t, filepath.Join(dir, "other.nes"), 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.nes"), []byte("junk"), 0644))

	match := DirectoryMatcher(dir)

	data, err := match("game", game.Info.Hash.SHA1)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "game", data.Info.Name)

	// renamed files are still found by hash
	data, err = match("renamed", game.Info.Hash.SHA1)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, game.Info.Hash.SHA1, data.Info.Hash.SHA1)

	data, err = match("game", "0000000000000000000000000000000000000000")
	assert.NoError(t, err)
	assert.Nil(t, data)
}
