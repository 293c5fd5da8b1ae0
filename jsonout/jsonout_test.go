package jsonout

import (
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/require"

	"github.com/kvsnap/snapdump/rdb"
)

func TestMarshal_GroupedByDB(t *testing.T) {
	ok := true
	result := &rdb.SnapshotResult{
		MagicVersion: 11,
		ChecksumOK:   &ok,
		Keys: []rdb.KeyRecord{
			{Key: "a", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: "1"}, DBIndex: 0},
			{Key: "b", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: "2"}, DBIndex: 1},
			{Key: "a", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: "3"}, DBIndex: 1},
		},
	}

	text, err := Marshal(result, Options{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, oj.Unmarshal([]byte(text), &decoded))

	databases, ok2 := decoded["databases"].([]interface{})
	require.True(t, ok2)
	require.Len(t, databases, 2)

	db0 := databases[0].(map[string]interface{})
	require.EqualValues(t, 0, db0["db"])
	keys0 := db0["keys"].([]interface{})
	require.Len(t, keys0, 1)

	db1 := databases[1].(map[string]interface{})
	require.EqualValues(t, 1, db1["db"])
	keys1 := db1["keys"].([]interface{})
	require.Len(t, keys1, 2) // both "a" and "b" from db 1 kept separately
}

func TestMarshal_SimpleFlattensLastKeyWins(t *testing.T) {
	result := &rdb.SnapshotResult{
		MagicVersion: 11,
		Keys: []rdb.KeyRecord{
			{Key: "a", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: "first"}, DBIndex: 0},
			{Key: "a", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: "second"}, DBIndex: 1},
		},
	}

	text, err := Marshal(result, Options{Simple: true})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, oj.Unmarshal([]byte(text), &decoded))

	keys := decoded["keys"].(map[string]interface{})
	require.Equal(t, "second", keys["a"])
}

func TestMarshal_NonUTF8StringBecomesHexObject(t *testing.T) {
	result := &rdb.SnapshotResult{
		MagicVersion: 11,
		Keys: []rdb.KeyRecord{
			{Key: "bin", Value: rdb.LogicalValue{Kind: rdb.KindString, Str: string([]byte{0xff, 0xfe})}, DBIndex: 0},
		},
	}

	text, err := Marshal(result, Options{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, oj.Unmarshal([]byte(text), &decoded))

	databases := decoded["databases"].([]interface{})
	db0 := databases[0].(map[string]interface{})
	keys0 := db0["keys"].([]interface{})
	entry := keys0[0].(map[string]interface{})
	value := entry["value"].(map[string]interface{})
	require.Equal(t, "fffe", value["hex"])
}

func TestMarshal_ChecksumNilWhenNotApplicable(t *testing.T) {
	result := &rdb.SnapshotResult{MagicVersion: 11}
	text, err := Marshal(result, Options{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, oj.Unmarshal([]byte(text), &decoded))
	require.Nil(t, decoded["checksum_ok"])
}
