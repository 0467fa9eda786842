package device

import (
	"github.com/pkg/errors"
)

// ErrOutOfRange is returned for accesses beyond the capacity of a Storage.
var ErrOutOfRange = errors.New("access beyond storage capacity")

const storageUnitSize = 4096

// A Storage holds the content of the memory array. Units that have never been
// accessed are not allocated and read as zero.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage of capacity bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: storageUnitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the size of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// NumAllocatedUnits returns how many units have been touched.
func (s *Storage) NumAllocatedUnits() int {
	return len(s.data)
}

func (s *Storage) checkRange(address, length uint64) error {
	if address >= s.capacity || length > s.capacity-address {
		return errors.Wrapf(ErrOutOfRange, "0x%x+%d, capacity %d",
			address, length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(address uint64) []byte {
	base := address - address%s.unitSize

	u, ok := s.data[base]
	if !ok {
		u = make([]byte, s.unitSize)
		s.data[base] = u
	}

	return u
}

// Read returns length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.checkRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	offset := uint64(0)

	for offset < length {
		curr := address + offset
		inUnit := curr % s.unitSize
		n := min(length-offset, s.unitSize-inUnit)

		copy(res[offset:offset+n], s.unit(curr)[inUnit:inUnit+n])
		offset += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.checkRange(address, length); err != nil {
		return err
	}

	offset := uint64(0)

	for offset < length {
		curr := address + offset
		inUnit := curr % s.unitSize
		n := min(length-offset, s.unitSize-inUnit)

		copy(s.unit(curr)[inUnit:inUnit+n], data[offset:offset+n])
		offset += n
	}

	return nil
}
