package main

import (
	"encoding/binary"
	"fmt"
)

// physmem is the machine's RAM, addressed from physical address zero.
type physmem struct {
	core []byte
}

func newPhysmem(size int) *physmem {
	return &physmem{core: make([]byte, size)}
}

func (m *physmem) size() PhysAddr { return PhysAddr(len(m.core)) }

func (m *physmem) check(pa PhysAddr, n PhysAddr) {
	if pa+n > m.size() || pa+n < pa {
		panic(halt{fmt.Sprintf("machine check: physical access %#x beyond %#x", uint64(pa), uint64(m.size()))})
	}
}

func (m *physmem) read64(pa PhysAddr) uint64 {
	m.check(pa, 8)
	return binary.LittleEndian.Uint64(m.core[pa:])
}

func (m *physmem) write64(pa PhysAddr, v uint64) {
	m.check(pa, 8)
	binary.LittleEndian.PutUint64(m.core[pa:], v)
}

func (m *physmem) zeroFrame(f Frame) {
	m.check(f.Start, pageSize)
	clear(m.core[f.Start : f.Start+pageSize])
}
