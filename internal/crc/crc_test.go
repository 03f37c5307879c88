package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleByteSeed1D0F(t *testing.T) {
	crc := StartCCITT1D0F
	crc.Single(0xA5)
	assert.EqualValues(t, 0x62E2, crc)
}

func TestAsciiTestVectorSeed1D0F(t *testing.T) {
	crc := StartCCITT1D0F
	crc.Block([]byte("123456789"))
	assert.EqualValues(t, 0xE5CC, crc)
}

func TestChecksumHelper(t *testing.T) {
	got := Checksum([]byte("123456789"), StartCCITT1D0F)
	assert.EqualValues(t, 0xE5CC, got)
}

func TestZeroSeedMatchesLegacyVector(t *testing.T) {
	// Sanity check against the teacher's CRC16(0) test vector: same
	// polynomial, different seed.
	var crc CRC16
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}
