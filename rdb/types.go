package rdb

import "fmt"

// ValueKind discriminates the tagged union LogicalValue represents.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindList
	KindSet
	KindSortedSet
	KindHash
	KindStream
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindSortedSet:
		return "zset"
	case KindHash:
		return "hash"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ScoredMember is one (member, score) pair of a SortedSetV, in stored order.
type ScoredMember struct {
	Member string
	Score  float64
}

// HashField is one (field, value) pair of a HashV, in stored order. Expiry
// is non-nil only for fields read out of a TypeHashMetadata/TypeHashListpackEx
// value (the hash-field-TTL extension, see SPEC_FULL.md §12).
type HashField struct {
	Field  string
	Value  string
	Expiry *int64 // absolute unix millis, nil if the field has no TTL
}

// StreamSummary is the non-goal stand-in for a full stream reconstruction:
// enough to report how many entries and groups a stream value held.
type StreamSummary struct {
	EntryCount uint64
	GroupCount uint64
}

func (s StreamSummary) String() string {
	return fmt.Sprintf("<stream with %d elements>", s.EntryCount)
}

// LogicalValue is the tagged union described by spec.md §3. Exactly one of
// the Kind-matching fields is populated; the others are zero.
type LogicalValue struct {
	Kind      ValueKind
	Str       string
	List      []string
	Set       []string
	SortedSet []ScoredMember
	Hash      []HashField
	Stream    StreamSummary
}

func stringValue(s string) LogicalValue        { return LogicalValue{Kind: KindString, Str: s} }
func listValue(v []string) LogicalValue        { return LogicalValue{Kind: KindList, List: v} }
func setValue(v []string) LogicalValue         { return LogicalValue{Kind: KindSet, Set: v} }
func zsetValue(v []ScoredMember) LogicalValue  { return LogicalValue{Kind: KindSortedSet, SortedSet: v} }
func hashValue(v []HashField) LogicalValue     { return LogicalValue{Kind: KindHash, Hash: v} }
func streamValue(s StreamSummary) LogicalValue { return LogicalValue{Kind: KindStream, Stream: s} }

// placeholderValue stands in for a value that failed to decode; the
// original error text is preserved so the warning list and the placeholder
// agree on what happened (spec.md §4.5's "placeholder emitted with error
// note").
func placeholderValue(note string) LogicalValue {
	return stringValue("<error: " + note + ">")
}

// AuxField is one entry of SnapshotResult.Aux, kept as a slice (not a map)
// so that insertion order is preserved for the JSON adapter. Duplicate AUX
// keys overwrite the earlier value in place (spec.md §4.5); the slice never
// holds two entries with the same Key.
type AuxField struct {
	Key   string
	Value string
}

// KeyRecord is one decoded key, plus whatever metadata opcodes preceded it.
type KeyRecord struct {
	Key          string
	Value        LogicalValue
	ExpiryMs     *int64
	IdleSeconds  *int64
	Freq         *uint8
	DBIndex      int
}

// SnapshotResult is the full output of a single forward pass over a
// snapshot, per spec.md §3.
type SnapshotResult struct {
	MagicVersion int
	Aux          []AuxField
	Keys         []KeyRecord
	ChecksumOK   *bool
	Warnings     []Warning
	// Incomplete is set when the pass stopped early because of a fatal
	// error (spec.md §5): Keys/Aux hold whatever was decoded before the
	// abort, not a full snapshot.
	Incomplete bool
}
