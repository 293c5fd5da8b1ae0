// Package jsonout is the output adapter boundary named in spec.md §4:
// it turns a decoded rdb.SnapshotResult into JSON text, deciding on the
// policy questions the decoder itself stays agnostic about (non-UTF-8
// string encoding, db grouping vs. flattening).
package jsonout

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"

	"github.com/kvsnap/snapdump/rdb"
)

// Options controls the two CLI-facing knobs spec.md §6 names.
type Options struct {
	// Pretty indents the output for human reading.
	Pretty bool
	// Simple flattens every KeyRecord across all databases down to just
	// its value under its key, last key wins in stream order
	// (SPEC_FULL.md §13 Open Question #1). The default groups by db_index.
	Simple bool
}

// Marshal renders result as JSON text per opts.
func Marshal(result *rdb.SnapshotResult, opts Options) (string, error) {
	var tree interface{}
	if opts.Simple {
		tree = flattenTree(result)
	} else {
		tree = groupedTree(result)
	}
	if opts.Pretty {
		return oj.JSON(tree, 2), nil
	}
	return oj.JSON(tree), nil
}

func groupedTree(result *rdb.SnapshotResult) map[string]interface{} {
	dbOrder := lo.Uniq(lo.Map(result.Keys, func(k rdb.KeyRecord, _ int) int { return k.DBIndex }))
	grouped := lo.GroupBy(result.Keys, func(k rdb.KeyRecord) int { return k.DBIndex })

	databases := make([]interface{}, 0, len(dbOrder))
	for _, db := range dbOrder {
		keys := lo.Map(grouped[db], func(k rdb.KeyRecord, _ int) interface{} { return keyRecordJSON(k) })
		databases = append(databases, map[string]interface{}{
			"db":   db,
			"keys": keys,
		})
	}

	return map[string]interface{}{
		"version":     result.MagicVersion,
		"aux":         auxJSON(result.Aux),
		"checksum_ok": checksumJSON(result.ChecksumOK),
		"incomplete":  result.Incomplete,
		"warnings":    warningsJSON(result.Warnings),
		"databases":   databases,
	}
}

func flattenTree(result *rdb.SnapshotResult) map[string]interface{} {
	flat := lo.Associate(result.Keys, func(k rdb.KeyRecord) (string, interface{}) {
		return k.Key, valueJSON(k.Value)
	})

	return map[string]interface{}{
		"version":     result.MagicVersion,
		"aux":         auxJSON(result.Aux),
		"checksum_ok": checksumJSON(result.ChecksumOK),
		"incomplete":  result.Incomplete,
		"warnings":    warningsJSON(result.Warnings),
		"keys":        flat,
	}
}

// checksumJSON turns the tri-state *bool (computed-true, computed-false,
// not-applicable) into a plain JSON-safe value rather than leaning on ojg
// to dereference a pointer for us.
func checksumJSON(v *bool) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func auxJSON(aux []rdb.AuxField) []interface{} {
	out := make([]interface{}, len(aux))
	for i, a := range aux {
		out[i] = map[string]interface{}{"key": encodeString(a.Key), "value": encodeString(a.Value)}
	}
	return out
}

func warningsJSON(warnings []rdb.Warning) []interface{} {
	out := make([]interface{}, len(warnings))
	for i, w := range warnings {
		entry := map[string]interface{}{"kind": string(w.Kind), "msg": w.Msg}
		if w.Key != "" {
			entry["key"] = w.Key
		}
		out[i] = entry
	}
	return out
}

func keyRecordJSON(k rdb.KeyRecord) map[string]interface{} {
	obj := map[string]interface{}{
		"key":   encodeString(k.Key),
		"kind":  k.Value.Kind.String(),
		"value": valueJSON(k.Value),
	}
	if k.ExpiryMs != nil {
		obj["expiry_ms"] = *k.ExpiryMs
	}
	if k.IdleSeconds != nil {
		obj["idle_seconds"] = *k.IdleSeconds
	}
	if k.Freq != nil {
		obj["freq"] = *k.Freq
	}
	return obj
}

func valueJSON(v rdb.LogicalValue) interface{} {
	switch v.Kind {
	case rdb.KindString:
		return encodeString(v.Str)
	case rdb.KindList:
		return lo.Map(v.List, func(s string, _ int) interface{} { return encodeString(s) })
	case rdb.KindSet:
		return lo.Map(v.Set, func(s string, _ int) interface{} { return encodeString(s) })
	case rdb.KindSortedSet:
		return lo.Map(v.SortedSet, func(m rdb.ScoredMember, _ int) interface{} {
			return map[string]interface{}{"member": encodeString(m.Member), "score": m.Score}
		})
	case rdb.KindHash:
		return lo.Map(v.Hash, func(f rdb.HashField, _ int) interface{} {
			entry := map[string]interface{}{"field": encodeString(f.Field), "value": encodeString(f.Value)}
			if f.Expiry != nil {
				entry["expiry_ms"] = *f.Expiry
			}
			return entry
		})
	case rdb.KindStream:
		return map[string]interface{}{"entries": v.Stream.EntryCount, "groups": v.Stream.GroupCount}
	default:
		return nil
	}
}

// encodeString follows spec.md §6's adapter policy: a valid UTF-8 string
// passes through unchanged, anything else becomes a {hex: "…"} object
// rather than producing invalid JSON text.
func encodeString(s string) interface{} {
	if utf8.ValidString(s) {
		return s
	}
	return map[string]interface{}{"hex": hex.EncodeToString([]byte(s))}
}
