package rdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Builds a minimal TypeStreamListpacks3 body: no listpack nodes, a
// declared length of 3 live entries, and one empty consumer group — enough
// to exercise every field readStreamSummary walks without needing a real
// per-node listpack.
func TestReadStreamSummary_V3(t *testing.T) {
	body := []byte{
		0x00, // node (rax) count: 0

		0x03,       // s->length: 3 live entries
		0x00, 0x00, // last id {ms, seq}

		0x00, 0x00, // first id {ms, seq}
		0x00, 0x00, // max deleted id {ms, seq}
		0x03, // entries added

		0x01,           // group count: 1
		0x02, 'g', '1', // group name "g1"
		0x00, 0x00, // last id {ms, seq}
		0x00, // entries read
		0x00, // global PEL count
		0x00, // consumer count
	}

	r := newReader(body)
	summary, err := r.readStreamSummary(TypeStreamListpacks3)
	require.NoError(t, err)
	require.EqualValues(t, 3, summary.EntryCount)
	require.EqualValues(t, 1, summary.GroupCount)
	require.Equal(t, len(body), r.buf.Pos())
}

func TestReadStreamSummary_V1_NoExtraFields(t *testing.T) {
	body := []byte{
		0x00,       // node count: 0
		0x02,       // s->length: 2
		0x00, 0x00, // last id {ms, seq}
		0x00, // group count: 0
	}

	r := newReader(body)
	summary, err := r.readStreamSummary(TypeStreamListpacks)
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.EntryCount)
	require.EqualValues(t, 0, summary.GroupCount)
	require.Equal(t, len(body), r.buf.Pos())
}

func (s StreamSummary) string() string { return s.String() }

func TestStreamSummary_String(t *testing.T) {
	s := StreamSummary{EntryCount: 7}
	require.Equal(t, "<stream with 7 elements>", s.string())
}
