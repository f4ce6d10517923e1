// Package checksum computes the ingestion pipeline's record checksum:
// CRC-32 with the reflected IEEE polynomial (0xEDB88320), the same
// variant used by zlib and PNG. A byte-at-a-time table lookup is the
// reference implementation; a slicing-by-8 fast path is selected at
// runtime when the CPU advertises the capability flags this package
// treats as a fast-path signal. Both paths are defined to produce
// bit-identical output for every input.
package checksum

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

const polynomial = 0xEDB88320

var (
	table0   [256]uint32
	slicing  [8][256]uint32
	fastPath = detectFastPath()
)

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ polynomial
			} else {
				crc >>= 1
			}
		}
		table0[i] = crc
	}
	slicing[0] = table0
	for i := 0; i < 256; i++ {
		crc := table0[i]
		for k := 1; k < 8; k++ {
			crc = table0[crc&0xff] ^ (crc >> 8)
			slicing[k][i] = crc
		}
	}
}

// detectFastPath reports whether this CPU advertises a capability this
// package treats as the signal to take the slicing-by-8 path rather than
// the byte-at-a-time reference loop.
func detectFastPath() bool {
	return cpu.X86.HasSSE42 || cpu.ARM64.HasCRC32
}

// Sum computes the CRC-32 (reflected IEEE, 0xEDB88320) of data over the
// validated, whitespace-stripped sequence bytes — never over the packed
// payload.
func Sum(data []byte) uint32 {
	if fastPath {
		return sumSlicingBy8(data)
	}
	return sumReference(data)
}

// sumReference is the byte-at-a-time reference implementation.
func sumReference(data []byte) uint32 {
	crc := ^uint32(0)
	for _, b := range data {
		crc = table0[byte(crc)^b] ^ (crc >> 8)
	}
	return ^crc
}

// sumSlicingBy8 processes 8 bytes per iteration using eight precomputed
// tables, falling back to the byte-at-a-time loop for the remainder.
func sumSlicingBy8(data []byte) uint32 {
	crc := ^uint32(0)
	for len(data) >= 8 {
		crc ^= binary.LittleEndian.Uint32(data[0:4])
		next := binary.LittleEndian.Uint32(data[4:8])
		crc = slicing[7][crc&0xff] ^
			slicing[6][(crc>>8)&0xff] ^
			slicing[5][(crc>>16)&0xff] ^
			slicing[4][(crc>>24)&0xff] ^
			slicing[3][next&0xff] ^
			slicing[2][(next>>8)&0xff] ^
			slicing[1][(next>>16)&0xff] ^
			slicing[0][(next>>24)&0xff]
		data = data[8:]
	}
	for _, b := range data {
		crc = table0[byte(crc)^b] ^ (crc >> 8)
	}
	return ^crc
}
