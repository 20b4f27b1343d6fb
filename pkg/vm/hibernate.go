package vm

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrSnapshotMismatch is returned when a snapshot was taken from a
// different program or machine size than the one restoring it.
var ErrSnapshotMismatch = errors.New("snapshot does not match this machine")

// machineState is the JSON part of a snapshot. Memory travels separately as
// little-endian float64s.
type machineState struct {
	ProgramLength int        `json:"program_length"`
	MemorySize    int        `json:"memory_size"`
	Regs          [4]float64 `json:"regs"`
	PC            int        `json:"pc"`
	Stack         []float64  `json:"stack"`
	Calls         []int      `json:"calls"`
	Queue         []float64  `json:"queue"`
	Steps         int        `json:"steps"`
	Halted        bool       `json:"halted"`
	Waiting       bool       `json:"waiting"`
}

// Hibernate serialises the machine into a ZIP archive holding state.json
// and memory.bin. The program itself is not stored; restore into a machine
// built from the same program.
func (m *Machine) Hibernate() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := machineState{
		ProgramLength: len(m.Program),
		MemorySize:    len(m.Memory),
		Regs:          m.Regs,
		PC:            m.PC,
		Stack:         m.Stack,
		Calls:         m.Calls,
		Queue:         m.queue,
		Steps:         m.Steps,
		Halted:        m.Halted,
		Waiting:       m.Waiting,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := writeZipEntry(zw, "state.json", data); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", float64sToLE(m.Memory)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore loads a snapshot produced by Hibernate. Input and Output are left
// as they are.
func (m *Machine) Restore(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	raw, err := readZipEntry(files, "state.json")
	if err != nil {
		return err
	}
	var state machineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	if state.ProgramLength != len(m.Program) || state.MemorySize != len(m.Memory) {
		return fmt.Errorf("%w: program %d/%d instructions, memory %d/%d cells", ErrSnapshotMismatch,
			state.ProgramLength, len(m.Program), state.MemorySize, len(m.Memory))
	}

	mem, err := readZipEntry(files, "memory.bin")
	if err != nil {
		return err
	}
	if len(mem) != 8*len(m.Memory) {
		return fmt.Errorf("%w: memory.bin holds %d bytes", ErrSnapshotMismatch, len(mem))
	}
	leToFloat64s(mem, m.Memory)

	m.Regs = state.Regs
	m.PC = state.PC
	m.Stack = state.Stack
	m.Calls = state.Calls
	m.queue = state.Queue
	m.Steps = state.Steps
	m.Halted = state.Halted
	m.Waiting = state.Waiting
	return nil
}

// HibernateToFile writes a snapshot to path.
func (m *Machine) HibernateToFile(path string) error {
	data, err := m.Hibernate()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RestoreFromFile reads a snapshot from path.
func (m *Machine) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.Restore(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func float64sToLE(src []float64) []byte {
	out := make([]byte, len(src)*8)
	for i, v := range src {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

func leToFloat64s(src []byte, dst []float64) {
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
	}
}
