package rdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRDBFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.rdb")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestDecodeFile_MinimalSnapshot(t *testing.T) {
	body := []byte{
		byte(typeOpCodeSelectDB), 0x00,

		byte(TypeString), 0x05, 'g', 'r', 'e', 'e', 't',
		0x02, 'h', 'i',

		byte(typeOpCodeEOF),
	}

	data := append(rdbHeader("0011"), body...)
	data = append(data, make([]byte, crcLen)...) // checksums disabled

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.False(t, result.Incomplete)
	require.Nil(t, result.ChecksumOK)
	require.Len(t, result.Keys, 1)
	require.Equal(t, "greet", result.Keys[0].Key)
	require.Equal(t, "hi", result.Keys[0].Value.Str)
}

func TestDecodeFile_ChecksumVerified(t *testing.T) {
	body := []byte{
		byte(typeOpCodeSelectDB), 0x00,
		byte(TypeString), 0x02, 'u', 'p',
		0x06, 's', 't', 'a', 's', 'h', '!',
		byte(typeOpCodeEOF),
	}

	head := rdbHeader("0011")
	crc := getCRC(0, append(append([]byte{}, head...), body...))
	crcBytes := make([]byte, crcLen)
	for i := 0; i < crcLen; i++ {
		crcBytes[i] = byte(crc >> (8 * uint(i)))
	}

	data := append(head, body...)
	data = append(data, crcBytes...)

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.False(t, result.Incomplete)
	require.NotNil(t, result.ChecksumOK)
	require.True(t, *result.ChecksumOK)
	require.Equal(t, "stash!", result.Keys[0].Value.Str)
}

// A value larger than DecodeFile's 1 MiB read-ahead, so the file-backed
// buffer must refill mid-value, exercising the same copy-remaining path of
// fileBackedBuffer.read that TestFileBackedBuffer_chunkedReadAcrossBufCap
// covers.
func TestDecodeFile_ValueLargerThanBufCap(t *testing.T) {
	big := strings.Repeat("x", 3<<20) // 3 MiB, several times the 1 MiB read-ahead cap

	body := []byte{byte(typeOpCodeSelectDB), 0x00, byte(TypeString), 0x03, 'b', 'i', 'g'}
	body = append(body, byte(len32Bit))
	lenBytes := make([]byte, 4)
	lenBytes[0] = byte(len(big) >> 24)
	lenBytes[1] = byte(len(big) >> 16)
	lenBytes[2] = byte(len(big) >> 8)
	lenBytes[3] = byte(len(big))
	body = append(body, lenBytes...)
	body = append(body, []byte(big)...)
	body = append(body, byte(typeOpCodeEOF))

	data := append(rdbHeader("0011"), body...)
	data = append(data, make([]byte, crcLen)...)

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.False(t, result.Incomplete)
	require.Len(t, result.Keys, 1)
	require.Equal(t, big, result.Keys[0].Value.Str)
}

func TestDecodeFile_MissingFile(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "does-not-exist.rdb"), Options{})
	require.Error(t, err)
}

func TestDecodeFile_TruncatedFileMarksIncomplete(t *testing.T) {
	body := []byte{
		byte(typeOpCodeSelectDB), 0x00,
		byte(TypeString), 0x05, 'g', 'r', // truncated: only 2 of 5 key bytes present
	}
	// A real trailing CRC block, all-zero, so fileLen is computed correctly
	// and the truncation is discovered mid-key rather than pre-empting the
	// very first read.
	data := append(rdbHeader("0011"), body...)
	data = append(data, make([]byte, crcLen)...)

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.True(t, result.Incomplete)
	require.NotEmpty(t, result.Warnings)
}

func TestDecodeFile_DuplicateAuxOverwrites(t *testing.T) {
	body := []byte{
		byte(typeOpCodeAux), 0x03, 'v', 'e', 'r', 0x01, '1',
		byte(typeOpCodeAux), 0x03, 'v', 'e', 'r', 0x01, '2',
		byte(typeOpCodeEOF),
	}
	data := append(rdbHeader("0011"), body...)
	data = append(data, make([]byte, crcLen)...)

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.Len(t, result.Aux, 1)
	require.Equal(t, "2", result.Aux[0].Value)
}

func TestDecodeFile_PendingExpiryInterruptedBySelectDB(t *testing.T) {
	body := []byte{
		byte(typeOpCodeExpireTimeMS), 0, 0, 0, 0, 0, 0, 0, 0,
		byte(typeOpCodeSelectDB), 0x00, // interrupts the pending expiry above
		byte(TypeString), 0x01, 'k', 0x01, 'v',
		byte(typeOpCodeEOF),
	}
	data := append(rdbHeader("0011"), body...)
	data = append(data, make([]byte, crcLen)...)

	result, err := DecodeFile(writeRDBFile(t, data), Options{})
	require.NoError(t, err)
	require.Len(t, result.Keys, 1)
	require.Nil(t, result.Keys[0].ExpiryMs)

	found := false
	for _, w := range result.Warnings {
		if w.Kind == ErrBadEncoding && strings.Contains(w.Msg, "SELECTDB") {
			found = true
		}
	}
	require.True(t, found, "expected a pending-metadata-dropped warning")
}
