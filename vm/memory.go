package vm

import (
	"fmt"
	"io"
	"math"
)

// Memory is the machine's segmented memory. Segment 0 holds the executing
// program; every other identifier names a fixed-length data segment. The
// identifier space is backed by a growable pool of word slices plus a LIFO
// stack of identifiers freed by unmap, so identifiers are recycled most
// recently freed first. The instruction pointer lives here because only
// segment 0 fetches are relative to it.
type Memory struct {
	// segments is indexed by identifier; a nil entry is unmapped.
	segments [][]uint32

	// freeIDs holds identifiers whose segments were unmapped, top at the end.
	freeIDs []uint32

	// ip is the index in segment 0 of the next instruction.
	ip uint32

	// Access counters for the statistics collector
	ReadCount  uint64
	WriteCount uint64
}

// NewMemory reads a program binary from r and installs it as segment 0 with
// the instruction pointer at 0. The stream is consumed as big-endian 4-byte
// words: first byte into bits 31-24, last into bits 7-0. A stream ending in
// the middle of a word is a truncated program.
func NewMemory(r io.Reader) (*Memory, error) {
	program := make([]uint32, 0, programSizeGuess)

	var buf [4]byte
	for {
		n, err := io.ReadFull(r, buf[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w after %d bytes", ErrTruncatedProgram, len(program)*4+n)
		}
		if err != nil {
			return nil, fmt.Errorf("reading program: %w", err)
		}

		var word uint64
		for i, b := range buf {
			word, err = NewUnsigned(word, 8, uint(24-i*8), uint64(b))
			if err != nil {
				return nil, fmt.Errorf("assembling word %d: %w", len(program), err)
			}
		}
		program = append(program, uint32(word))
	}

	return NewMemoryFromWords(program), nil
}

// NewMemoryFromWords installs words as segment 0 directly, taking ownership
// of the slice. Used by NewMemory and by tests.
func NewMemoryFromWords(words []uint32) *Memory {
	if words == nil {
		// Segment 0 must always be mapped, even for an empty program.
		words = []uint32{}
	}
	m := &Memory{
		segments: make([][]uint32, 1, segmentPoolGuess),
		freeIDs:  make([]uint32, 0, freeStackGuess),
	}
	m.segments[0] = words
	return m
}

// IP returns the index in segment 0 of the next instruction.
func (m *Memory) IP() uint32 {
	return m.ip
}

// ProgramLength returns the current length of segment 0 in words.
func (m *Memory) ProgramLength() int {
	return len(m.segments[0])
}

// Mapped reports whether id currently names a segment.
func (m *Memory) Mapped(id uint32) bool {
	return uint64(id) < uint64(len(m.segments)) && m.segments[id] != nil
}

// FetchNext returns the word at the instruction pointer in segment 0 and
// advances the pointer past it.
func (m *Memory) FetchNext() (uint32, error) {
	seg0 := m.segments[0]
	if uint64(m.ip) >= uint64(len(seg0)) {
		return 0, fmt.Errorf("%w: instruction pointer %d past end of program (%d words)",
			ErrUndefined, m.ip, len(seg0))
	}
	word := seg0[m.ip]
	m.ip++
	return word, nil
}

// Map creates a zero-filled segment of size words and returns its
// identifier. Identifiers freed by Unmap are reused most recently freed
// first; otherwise the next fresh identifier is allocated. Size 0 is legal
// and maps an empty segment.
func (m *Memory) Map(size uint32) (uint32, error) {
	seg := make([]uint32, size)

	if n := len(m.freeIDs); n > 0 {
		id := m.freeIDs[n-1]
		m.freeIDs = m.freeIDs[:n-1]
		m.segments[id] = seg
		return id, nil
	}

	if uint64(len(m.segments)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: identifier space exhausted", ErrOutOfMemory)
	}
	id := uint32(len(m.segments))
	m.segments = append(m.segments, seg)
	return id, nil
}

// Unmap destroys the segment named by id and pushes the identifier onto the
// free stack for reuse. Unmapping segment 0 or an unmapped identifier is a
// program fault.
func (m *Memory) Unmap(id uint32) error {
	if id == 0 {
		return fmt.Errorf("%w: unmap of program segment", ErrUndefined)
	}
	if !m.Mapped(id) {
		return fmt.Errorf("%w: unmap of unmapped segment %d", ErrUndefined, id)
	}
	m.segments[id] = nil
	m.freeIDs = append(m.freeIDs, id)
	return nil
}

// Read returns the word at offset within segment id.
func (m *Memory) Read(id, offset uint32) (uint32, error) {
	if !m.Mapped(id) {
		return 0, fmt.Errorf("%w: read from unmapped segment %d", ErrUndefined, id)
	}
	seg := m.segments[id]
	if uint64(offset) >= uint64(len(seg)) {
		return 0, fmt.Errorf("%w: read at %d past end of segment %d (%d words)",
			ErrUndefined, offset, id, len(seg))
	}
	m.ReadCount++
	return seg[offset], nil
}

// Write stores word at offset within segment id.
func (m *Memory) Write(id, offset, word uint32) error {
	if !m.Mapped(id) {
		return fmt.Errorf("%w: write to unmapped segment %d", ErrUndefined, id)
	}
	seg := m.segments[id]
	if uint64(offset) >= uint64(len(seg)) {
		return fmt.Errorf("%w: write at %d past end of segment %d (%d words)",
			ErrUndefined, offset, id, len(seg))
	}
	m.WriteCount++
	seg[offset] = word
	return nil
}

// LoadProgram replaces segment 0 with a copy of segment id and moves the
// instruction pointer to newIP. Loading from segment 0 itself is the branch
// fast path: the program is already in place, so only the pointer moves.
func (m *Memory) LoadProgram(id, newIP uint32) error {
	if id == 0 {
		m.ip = newIP
		return nil
	}
	if !m.Mapped(id) {
		return fmt.Errorf("%w: load program from unmapped segment %d", ErrUndefined, id)
	}
	src := m.segments[id]
	dup := make([]uint32, len(src))
	copy(dup, src)
	m.segments[0] = dup
	m.ip = newIP
	return nil
}

// Reset clears the access counters.
func (m *Memory) Reset() {
	m.ReadCount = 0
	m.WriteCount = 0
}
