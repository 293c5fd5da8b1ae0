package rdb

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strconv"
)

// valueReader decodes RDB objects from a buffer. All reader methods advance
// the cursor by the amount of data read. A valueReader is single-use and
// single-threaded: it owns its buffer for the duration of one decode pass
// (spec.md §5).
type valueReader struct {
	buf        buffer
	maxStrSize uint64 // safety ceiling, spec.md §4.2; 0 means defaultMaxStringSize
	maxLZFSize uint64 // LZF decompressed-output ceiling; 0 means fall back to ceiling()
	currentKey string // tag applied to warnings recorded while decoding one key's value
	warnings   []Warning
}

const defaultMaxStringSize uint64 = 100 << 20 // 100 MiB, spec.md §4.2

func (r *valueReader) ceiling() uint64 {
	if r.maxStrSize == 0 {
		return defaultMaxStringSize
	}
	return r.maxStrSize
}

// lzfCeiling is the cap applied to an LZF string's decompressed size. It is
// distinct from ceiling() because a small compressed blob can expand into a
// disproportionately large allocation.
func (r *valueReader) lzfCeiling() uint64 {
	if r.maxLZFSize == 0 {
		return r.ceiling()
	}
	return r.maxLZFSize
}

func (r *valueReader) warn(kind ErrorKind, msg string) {
	r.warnings = append(r.warnings, Warning{Kind: kind, Key: r.currentKey, Msg: msg})
}

// wrapIOErr turns a raw I/O failure from the underlying buffer into the
// decodeError taxonomy of spec.md §7: a short read at a byte boundary is
// UnexpectedEof, anything else (disk error, closed file) is Io. Both are
// always-fatal per isAlwaysFatal.
func wrapIOErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := asDecodeError(err); ok {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return newDecodeError(ErrUnexpectedEof, err.Error())
	}
	return newDecodeError(ErrIo, err.Error())
}

// ReadType reads the next opcode or type tag.
func (r *valueReader) ReadType() (Type, error) {
	b, err := r.readUint8()
	if err != nil {
		return 0, err
	}
	return Type(b), nil
}

// readLen reads a length-encoded integer (spec.md §4.2) and reports whether
// it was a special (non-length) encoding, together with which one.
func (r *valueReader) readLen() (uint64, bool, error) {
	b0, err := r.readUint8()
	if err != nil {
		return 0, false, err
	}

	switch b0 & 0xC0 {
	case len6Bit:
		return uint64(b0 & 0x3F), false, nil
	case len14Bit:
		b1, err := r.readUint8()
		if err != nil {
			return 0, false, err
		}
		return uint64(b0&0x3F)<<8 | uint64(b1), false, nil
	case len32Or64Bit:
		switch b0 {
		case len32Bit:
			length, err := r.readUint32BE()
			if err != nil {
				return 0, false, err
			}
			return uint64(length), false, nil
		case len64Bit:
			length, err := r.readUint64BE()
			if err != nil {
				return 0, false, err
			}
			return length, false, nil
		default:
			return 0, false, newDecodeError(ErrBadLengthPrefix, "reserved 10xxxxxx length prefix byte")
		}
	case lenEncodedValue:
		return uint64(b0 & 0x3F), true, nil
	}

	return 0, false, newDecodeError(ErrBadLengthPrefix, "unreachable length encoding")
}

// ReadString reads the next RDB string object (spec.md §4.2). Integer and
// LZF encodings are expanded and rendered as their decimal ASCII /
// decompressed form. A literal longer than the safety ceiling is skipped in
// place: the cursor still advances past it, but a placeholder string is
// returned and a warning recorded against the current key.
func (r *valueReader) ReadString() (string, error) {
	length, encoded, err := r.readLen()
	if err != nil {
		return "", err
	}

	if encoded {
		switch length {
		case lenEncodingInt8:
			value, err := r.readUint8()
			if err != nil {
				return "", err
			}
			return strconv.Itoa(int(int8(value))), nil
		case lenEncodingInt16:
			value, err := r.readUint16()
			if err != nil {
				return "", err
			}
			return strconv.Itoa(int(int16(value))), nil
		case lenEncodingInt32:
			value, err := r.readUint32()
			if err != nil {
				return "", err
			}
			return strconv.Itoa(int(int32(value))), nil
		case lenEncodingLZF:
			return r.readLZFString()
		default:
			return "", newDecodeError(ErrBadEncoding, "unexpected string special encoding "+strconv.FormatUint(length, 10))
		}
	}

	return r.readBoundedBytes(length)
}

// readBoundedBytes reads length bytes as a string, enforcing the safety
// ceiling. Over-ceiling reads still consume their bytes so the cursor stays
// exact even though the content is discarded.
func (r *valueReader) readBoundedBytes(length uint64) (string, error) {
	if length > r.ceiling() {
		if err := r.skipLarge(length); err != nil {
			return "", err
		}
		r.warn(ErrSizeCeilingExceeded, "string of "+strconv.FormatUint(length, 10)+" bytes exceeds safety ceiling, skipped")
		return "<skipped: oversized string>", nil
	}

	data, err := r.read(int(length))
	if err != nil {
		return "", err
	}
	return bytesToString(data), nil
}

func (r *valueReader) readLZFString() (string, error) {
	compressedLen, _, err := r.readLen()
	if err != nil {
		return "", err
	}

	uncompressedLen, _, err := r.readLen()
	if err != nil {
		return "", err
	}

	if uncompressedLen > r.lzfCeiling() {
		if err := r.skipLarge(compressedLen); err != nil {
			return "", err
		}
		r.warn(ErrSizeCeilingExceeded, "LZF string of "+strconv.FormatUint(uncompressedLen, 10)+" uncompressed bytes exceeds safety ceiling, skipped")
		return "<skipped: oversized compressed string>", nil
	}

	compressed, err := r.read(int(compressedLen))
	if err != nil {
		return "", err
	}

	decompressed, err := decompressLZ77(compressed, int(uncompressedLen))
	if err != nil {
		return "", newDecodeError(ErrBadLzf, err.Error())
	}

	return bytesToString(decompressed), nil
}

// skipLarge advances the cursor by length bytes without materialising them
// as one big allocation, for the oversized-string case.
func (r *valueReader) skipLarge(length uint64) error {
	const chunk = 1 << 20
	remaining := length
	for remaining > 0 {
		n := remaining
		if n > chunk {
			n = chunk
		}
		if err := r.skip(int(n)); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func (r *valueReader) readList() ([]string, error) {
	length, _, err := r.readLen()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, length)
	for i := uint64(0); i < length; i++ {
		elem, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}

func (r *valueReader) readSet() ([]string, error) {
	return r.readList()
}

func (r *valueReader) readHash() ([]HashField, error) {
	length, _, err := r.readLen()
	if err != nil {
		return nil, err
	}
	out := make([]HashField, 0, length)
	for i := uint64(0); i < length; i++ {
		field, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, HashField{Field: field, Value: value})
	}
	return out, nil
}

// readZsetTextScore reads the legacy (TypeZset) ASCII-encoded score, per
// spec.md §4.4: 255/254/253 are the infinities and NaN, anything else is a
// length-prefixed ASCII float64.
func (r *valueReader) readZsetTextScore() (float64, error) {
	scoreLen, err := r.readUint8()
	if err != nil {
		return 0, err
	}

	switch scoreLen {
	case 255:
		return math.Inf(-1), nil
	case 254:
		return math.Inf(1), nil
	case 253:
		return math.NaN(), nil
	default:
		data, err := r.read(int(scoreLen))
		if err != nil {
			return 0, err
		}
		score, err := strconv.ParseFloat(bytesToString(data), 64)
		if err != nil {
			return 0, newDecodeError(ErrBadEncoding, "malformed zset score: "+err.Error())
		}
		return score, nil
	}
}

func (r *valueReader) readZset() ([]ScoredMember, error) {
	length, _, err := r.readLen()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, length)
	for i := uint64(0); i < length; i++ {
		member, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		score, err := r.readZsetTextScore()
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	return out, nil
}

func (r *valueReader) readZset2() ([]ScoredMember, error) {
	length, _, err := r.readLen()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, length)
	for i := uint64(0); i < length; i++ {
		member, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		bits, err := r.readUint64()
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredMember{Member: member, Score: math.Float64frombits(bits)})
	}
	return out, nil
}

// readHashMetadata decodes TypeHashMetadata (tag 24, SPEC_FULL.md §12): a
// hash whose fields carry individual absolute-millisecond expirations,
// delta-encoded against a per-value minimum.
func (r *valueReader) readHashMetadata() ([]HashField, error) {
	minExpirationTs, err := r.readUint64()
	if err != nil {
		return nil, err
	}

	length, _, err := r.readLen()
	if err != nil {
		return nil, err
	}

	out := make([]HashField, 0, length)
	for i := uint64(0); i < length; i++ {
		expVal, _, err := r.readLen()
		if err != nil {
			return nil, err
		}

		field, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadString()
		if err != nil {
			return nil, err
		}

		hf := HashField{Field: field, Value: value}
		if expVal > 0 {
			abs := int64(minExpirationTs + expVal)
			hf.Expiry = &abs
		}
		out = append(out, hf)
	}
	return out, nil
}

// sub spins up a fresh valueReader over an in-memory blob that was itself
// already fully consumed from the outer stream (via ReadString). Any error
// while parsing it can never desynchronise the outer reader's cursor, so
// callers absorb it into a placeholder instead of propagating.
func (r *valueReader) sub(blob string) *valueReader {
	return &valueReader{buf: newMemoryBackedBuffer(stringToBytes(blob)), maxStrSize: r.maxStrSize, maxLZFSize: r.maxLZFSize}
}

// readObject decodes the value for the given type tag into a LogicalValue
// (spec.md §4.4). A non-nil error is always fatal to the whole pass, except
// for the single "unknown type tag" case, which is reported as a resync
// decodeError so the driver can drop the key and keep going (spec.md §7).
func (r *valueReader) readObject(t Type) (LogicalValue, error) {
	switch t {
	case TypeString:
		s, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return stringValue(s), nil

	case TypeList:
		l, err := r.readList()
		if err != nil {
			return LogicalValue{}, err
		}
		return listValue(l), nil

	case TypeSet:
		s, err := r.readSet()
		if err != nil {
			return LogicalValue{}, err
		}
		return setValue(s), nil

	case TypeZset:
		z, err := r.readZset()
		if err != nil {
			return LogicalValue{}, err
		}
		return zsetValue(z), nil

	case TypeHash:
		h, err := r.readHash()
		if err != nil {
			return LogicalValue{}, err
		}
		return hashValue(h), nil

	case TypeZset2:
		z, err := r.readZset2()
		if err != nil {
			return LogicalValue{}, err
		}
		return zsetValue(z), nil

	case TypeModule2:
		blob, err := r.readModuleValue()
		if err != nil {
			return LogicalValue{}, err
		}
		return blob, nil

	case TypeHashZipmap:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseZipmap(), nil

	case TypeListZiplist:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		entries := r.sub(blob).parseZiplistEntries()
		return listValue(entries), nil

	case TypeSetIntset:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseIntset(), nil

	case TypeZsetZiplist:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseZiplistAsZset(), nil

	case TypeHashZiplist:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseZiplistAsHash(), nil

	case TypeListQuicklist:
		count, _, err := r.readLen()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.parseQuicklist(count, false)

	case TypeHashListpack:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseListpackAsHash(), nil

	case TypeZsetListpack:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseListpackAsZset(), nil

	case TypeListQuicklist2:
		count, _, err := r.readLen()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.parseQuicklist(count, true)

	case TypeSetListpack:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		entries := r.sub(blob).parseListpackEntries()
		return setValue(entries), nil

	case TypeStreamListpacks, TypeStreamListpacks2, TypeStreamListpacks3:
		summary, err := r.readStreamSummary(t)
		if err != nil {
			return LogicalValue{}, err
		}
		return streamValue(summary), nil

	case TypeHashMetadata:
		h, err := r.readHashMetadata()
		if err != nil {
			return LogicalValue{}, err
		}
		return hashValue(h), nil

	case TypeHashListpackEx:
		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}
		return r.sub(blob).parseListpackAsHashEx(), nil

	default:
		return LogicalValue{}, newResyncError(ErrBadEncoding, "unknown RDB type tag "+strconv.Itoa(int(t)))
	}
}

func (r *valueReader) readUint8() (uint8, error) {
	b, err := r.buf.Get(1)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return b[0], nil
}

func (r *valueReader) readUint16() (uint16, error) {
	b, err := r.buf.Get(2)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *valueReader) readUint32() (uint32, error) {
	b, err := r.buf.Get(4)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *valueReader) readUint32BE() (uint32, error) {
	b, err := r.buf.Get(4)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *valueReader) readUint64() (uint64, error) {
	b, err := r.buf.Get(8)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *valueReader) readUint64BE() (uint64, error) {
	b, err := r.buf.Get(8)
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *valueReader) read(n int) ([]byte, error) {
	b, err := r.buf.Get(n)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	return b, nil
}

func (r *valueReader) skip(n int) error {
	_, err := r.buf.Get(n)
	return wrapIOErr(err)
}
