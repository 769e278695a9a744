package hw

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// nvSize is the byte-addressable non-volatile store size (spec §6): only
// offsets 0..15 are semantically meaningful, the rest reserved.
const nvSize = 256

// NVStore is a 256-byte byte-addressable non-volatile store. Reads of
// offsets never previously written return zero, matching unprogrammed NV
// memory.
type NVStore interface {
	ReadByte(offset int) byte
	WriteByte(offset int, v byte)
	Flush() error
}

// MemNVStore is an in-memory NVStore for tests and non-persistent runs.
type MemNVStore struct {
	bytes [nvSize]byte
}

func NewMemNVStore() *MemNVStore { return &MemNVStore{} }

func (m *MemNVStore) ReadByte(offset int) byte   { return m.bytes[offset] }
func (m *MemNVStore) WriteByte(offset int, v byte) { m.bytes[offset] = v }
func (m *MemNVStore) Flush() error               { return nil }

// FileNVStore persists the 256-byte store to a flat file, guarding it with
// an advisory flock (golang.org/x/sys/unix) so a concurrent instance of the
// program, or a host-side provisioning tool, cannot tear a write.
type FileNVStore struct {
	path  string
	bytes [nvSize]byte
}

// OpenFileNVStore loads path into memory (zero-extending if it is short or
// missing) and returns a store whose Flush persists back to the same file
// under an exclusive flock.
func OpenFileNVStore(path string) (*FileNVStore, error) {
	f := &FileNVStore{path: path}

	fd, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("hw: open NV store %s: %w", path, err)
	}
	defer fd.Close()

	if err := unix.Flock(int(fd.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("hw: lock NV store %s: %w", path, err)
	}
	defer unix.Flock(int(fd.Fd()), unix.LOCK_UN)

	n, err := fd.Read(f.bytes[:])
	if err != nil && n == 0 {
		// Short or absent file: leave f.bytes zeroed, which the Settings
		// Store reads as a magic mismatch and treats as first-run (§7).
	}
	return f, nil
}

func (f *FileNVStore) ReadByte(offset int) byte     { return f.bytes[offset] }
func (f *FileNVStore) WriteByte(offset int, v byte) { f.bytes[offset] = v }

// Flush writes the in-memory image back to disk under an exclusive flock.
func (f *FileNVStore) Flush() error {
	fd, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("hw: open NV store %s for write: %w", f.path, err)
	}
	defer fd.Close()

	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("hw: lock NV store %s for write: %w", f.path, err)
	}
	defer unix.Flock(int(fd.Fd()), unix.LOCK_UN)

	if _, err := fd.Write(f.bytes[:]); err != nil {
		return fmt.Errorf("hw: write NV store %s: %w", f.path, err)
	}
	return nil
}
