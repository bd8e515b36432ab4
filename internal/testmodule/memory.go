package testmodule

import (
	"encoding/binary"
	"fmt"

	wasmffi "github.com/wippyai/wasm-ffi"
)

// Memory is a growable little-endian linear memory. Grow replaces the
// backing slice, so slices returned by Read before a Grow go stale exactly
// as they do for a real engine.
type Memory struct {
	buf []byte
}

// Grow adds pages of zeroed memory.
func (m *Memory) Grow(pages uint32) {
	next := make([]byte, len(m.buf)+int(pages)*PageSize)
	copy(next, m.buf)
	m.buf = next
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return fmt.Errorf("out of bounds: offset=%d, length=%d, size=%d", offset, length, len(m.buf))
	}
	return nil
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.buf[offset : offset+length : offset+length], nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, binary.LittleEndian.AppendUint16(nil, value))
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	return m.Write(offset, binary.LittleEndian.AppendUint32(nil, value))
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	return m.Write(offset, binary.LittleEndian.AppendUint64(nil, value))
}

var _ wasmffi.Memory = (*Memory)(nil)
var _ wasmffi.MemorySizer = (*Memory)(nil)
