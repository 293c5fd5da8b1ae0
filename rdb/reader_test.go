package rdb

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newReader(body []byte) *valueReader {
	return &valueReader{buf: newMemoryBackedBuffer(body)}
}

func TestReadString_SixBitLength(t *testing.T) {
	r := newReader([]byte{0x03, 'f', 'o', 'o'})
	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "foo", s)
}

func TestReadString_FourteenBitLength(t *testing.T) {
	body := append([]byte{0x40 | 0x00, 20}, make([]byte, 20)...)
	for i := range body[2:] {
		body[2+i] = byte('a' + i)
	}
	r := newReader(body)
	s, err := r.ReadString()
	require.NoError(t, err)
	require.Len(t, s, 20)
	require.Equal(t, "abcdefghijklmnopqrst", s)
}

func TestReadString_IntEncodings(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		want string
	}{
		{"int8", []byte{0xC0, 0xFB}, "-5"},                            // encoded int8, value -5
		{"int16", []byte{0xC1, 0x2C, 0x01}, "300"},                    // encoded int16 LE, 300
		{"int32", []byte{0xC2, 0xA0, 0x86, 0x01, 0x00}, "100000"},     // encoded int32 LE
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newReader(tc.body)
			s, err := r.ReadString()
			require.NoError(t, err)
			require.Equal(t, tc.want, s)
		})
	}
}

func TestReadString_OversizedIsSkippedWithWarning(t *testing.T) {
	body := append([]byte{10}, []byte("0123456789")...)
	r := newReader(body)
	r.maxStrSize = 4

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "<skipped: oversized string>", s)
	require.Equal(t, r.buf.Pos(), len(body))
	require.Len(t, r.warnings, 1)
	require.Equal(t, ErrSizeCeilingExceeded, r.warnings[0].Kind)
}

func TestReadObject_List(t *testing.T) {
	body := []byte{
		0x02,             // 2 elements
		0x02, 'h', 'i',   // "hi"
		0x03, 'b', 'y', 'e', // "bye"
	}
	r := newReader(body)
	v, err := r.readObject(TypeList)
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind)
	require.Equal(t, []string{"hi", "bye"}, v.List)
}

func TestReadObject_Hash(t *testing.T) {
	body := []byte{
		0x01,             // 1 field
		0x01, 'f',        // field "f"
		0x01, 'v',        // value "v"
	}
	r := newReader(body)
	v, err := r.readObject(TypeHash)
	require.NoError(t, err)
	require.Equal(t, KindHash, v.Kind)
	require.Equal(t, []HashField{{Field: "f", Value: "v"}}, v.Hash)
}

func TestReadObject_Zset2(t *testing.T) {
	body := []byte{0x01, 0x01, 'm'}
	body = append(body, doubleBitsLE(1.5)...)
	r := newReader(body)
	v, err := r.readObject(TypeZset2)
	require.NoError(t, err)
	require.Equal(t, KindSortedSet, v.Kind)
	require.Len(t, v.SortedSet, 1)
	require.Equal(t, "m", v.SortedSet[0].Member)
	require.Equal(t, 1.5, v.SortedSet[0].Score)
}

func TestReadObject_UnknownTypeTagResyncs(t *testing.T) {
	r := newReader(nil)
	_, err := r.readObject(Type(200))
	de, ok := asDecodeError(err)
	require.True(t, ok)
	require.True(t, de.resync)
	require.Equal(t, ErrBadEncoding, de.kind)
}

func TestReadHashMetadata_FieldExpiry(t *testing.T) {
	body := []byte{}
	body = append(body, u64LE(1000)...) // min expiration ts
	body = append(body, 0x01)           // 1 field
	body = append(body, 0x0A)           // expVal delta = 10 -> absolute 1010
	body = append(body, 0x01, 'f')
	body = append(body, 0x01, 'v')

	r := newReader(body)
	v, err := r.readObject(TypeHashMetadata)
	require.NoError(t, err)
	require.Len(t, v.Hash, 1)
	require.NotNil(t, v.Hash[0].Expiry)
	require.EqualValues(t, 1010, *v.Hash[0].Expiry)
}

func doubleBitsLE(f float64) []byte {
	return u64LE(math.Float64bits(f))
}

func u64LE(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
