package rdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetCRC_IsDeterministic(t *testing.T) {
	a := getCRC(0, []byte("123456789"))
	b := getCRC(0, []byte("123456789"))
	require.Equal(t, a, b)
	require.NotZero(t, a)
}

func TestGetCRC_DiffersOnDifferentInput(t *testing.T) {
	a := getCRC(0, []byte("123456789"))
	b := getCRC(0, []byte("123456788"))
	require.NotEqual(t, a, b)
}

func TestGetCRC_IsSeedable(t *testing.T) {
	whole := getCRC(0, []byte("hello world"))
	split := getCRC(getCRC(0, []byte("hello ")), []byte("world"))
	require.Equal(t, whole, split)
}

func TestVerifyValueChecksum_RejectsShortPayload(t *testing.T) {
	err := VerifyValueChecksum([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestVerifyValueChecksum_RejectsBadCRC(t *testing.T) {
	payload := []byte{byte(TypeString), 0x02, 'h', 'i'}
	footer := make([]byte, ValueChecksumSize)
	binary.LittleEndian.PutUint16(footer, Version)
	// leave the CRC bytes zeroed — won't match the real CRC of payload+version
	data := append(payload, footer...)

	err := VerifyValueChecksum(data)
	require.Error(t, err)
}

func TestVerifyValueChecksum_AcceptsMatchingCRC(t *testing.T) {
	payload := []byte{byte(TypeString), 0x02, 'h', 'i'}
	footer := make([]byte, ValueChecksumSize)
	binary.LittleEndian.PutUint16(footer, Version)
	crc := getCRC(0, append(payload, footer[:2]...))
	binary.LittleEndian.PutUint64(footer[2:], crc)

	data := append(payload, footer...)
	require.NoError(t, VerifyValueChecksum(data))
}

func TestVerifyValueChecksum_RejectsNewerVersion(t *testing.T) {
	payload := []byte{byte(TypeString), 0x02, 'h', 'i'}
	footer := make([]byte, ValueChecksumSize)
	binary.LittleEndian.PutUint16(footer, Version+1)

	data := append(payload, footer...)
	err := VerifyValueChecksum(data)
	require.Error(t, err)
}
