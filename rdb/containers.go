package rdb

import (
	"encoding/binary"
	"strconv"
)

// This file decodes the three legacy packed-container encodings (ziplist,
// zipmap, intset) plus the modern listpack, per spec.md §4.3. Every parser
// here except parseQuicklist runs against a sub-reader created from a blob
// that the outer reader has already fully consumed (valueReader.sub) — any
// error inside such a blob is absorbed into a placeholder value plus a
// warning, never propagated, because the outer cursor is already past this
// blob no matter what we find inside it. parseQuicklist reads its nodes from
// the outer stream itself and returns errors from those reads to its caller.

func (r *valueReader) absorb(kind ErrorKind, err error) LogicalValue {
	r.warn(kind, err.Error())
	return placeholderValue(err.Error())
}

// --- ziplist ---------------------------------------------------------

func (r *valueReader) parseZiplistEntries() []string {
	entries, err := r.readZiplistEntries()
	if err != nil {
		r.warn(ErrBadEncoding, "malformed ziplist: "+err.Error())
		return []string{"<error: " + err.Error() + ">"}
	}
	return entries
}

func (r *valueReader) parseZiplistAsZset() LogicalValue {
	entries, err := r.readZiplistEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return pairsToZset(entries)
}

func (r *valueReader) parseZiplistAsHash() LogicalValue {
	entries, err := r.readZiplistEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return pairsToHash(entries)
}

// readZiplistEntries walks the classic ziplist layout: a 10-byte header
// (zlbytes, zltail, zllen) followed by entries, terminated by 0xFF. Each
// entry is a variable-length "prevlen" backlink (ignored here, we only
// move forward) followed by an encoding byte that is either a string
// length or one of the fixed-width/immediate integer encodings.
func (r *valueReader) readZiplistEntries() ([]string, error) {
	if _, err := r.read(10); err != nil { // zlbytes(4) + zltail(4) + zllen(2)
		return nil, err
	}

	var out []string
	for {
		b, err := r.readUint8()
		if err != nil {
			return nil, err
		}
		if b == ziplistEnd {
			return out, nil
		}

		if err := r.skipZiplistPrevLen(b); err != nil {
			return nil, err
		}

		entry, err := r.readZiplistEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
}

// skipZiplistPrevLen consumes the rest of the prevlen field, whose lead byte
// the caller has already read as b: a lead byte of 254 is followed by a
// 4-byte length, any other lead byte is the whole field.
func (r *valueReader) skipZiplistPrevLen(firstByteAlreadyConsumedAsEncoding uint8) error {
	// The byte the caller passed in was actually the *prevlen* lead byte,
	// not the encoding byte — ziplist entries are prevlen-then-encoding.
	if firstByteAlreadyConsumedAsEncoding == ziplistPrevLenBig {
		_, err := r.read(4)
		return err
	}
	return nil
}

func (r *valueReader) readZiplistEntry() (string, error) {
	enc, err := r.readUint8()
	if err != nil {
		return "", err
	}

	switch {
	case enc&0xC0 == ziplistEnc6BitStrLen:
		return r.readBoundedBytes(uint64(enc & 0x3F))
	case enc&0xC0 == ziplistEnc14BitStrLen:
		b1, err := r.readUint8()
		if err != nil {
			return "", err
		}
		length := uint64(enc&0x3F)<<8 | uint64(b1)
		return r.readBoundedBytes(length)
	case enc == ziplistEnc32BitStrLen:
		length, err := r.readUint32BE()
		if err != nil {
			return "", err
		}
		return r.readBoundedBytes(uint64(length))
	case enc == ziplistEncInt16:
		v, err := r.readUint16()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int16(v))), nil
	case enc == ziplistEncInt32:
		v, err := r.readUint32()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int32(v))), nil
	case enc == ziplistEncInt64:
		v, err := r.readUint64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(v), 10), nil
	case enc == ziplistEncInt24:
		b, err := r.read(3)
		if err != nil {
			return "", err
		}
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		v = v << 8 >> 8 // sign-extend from 24 bits
		return strconv.Itoa(int(v)), nil
	case enc == ziplistEncInt8:
		v, err := r.readUint8()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int8(v))), nil
	case enc >= 0xF1 && enc <= 0xFD:
		return strconv.Itoa(int(enc&0x0F) - 1), nil
	default:
		return "", newDecodeError(ErrBadEncoding, "unknown ziplist entry encoding byte "+strconv.Itoa(int(enc)))
	}
}

// --- listpack ----------------------------------------------------------

func (r *valueReader) parseListpackEntries() []string {
	entries, err := r.readListpackEntries()
	if err != nil {
		r.warn(ErrBadEncoding, "malformed listpack: "+err.Error())
		return []string{"<error: " + err.Error() + ">"}
	}
	return entries
}

func (r *valueReader) parseListpackAsHash() LogicalValue {
	entries, err := r.readListpackEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return pairsToHash(entries)
}

func (r *valueReader) parseListpackAsZset() LogicalValue {
	entries, err := r.readListpackEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return pairsToZset(entries)
}

// parseListpackAsHashEx decodes the hash-field-TTL listpack variant (type
// 25, SPEC_FULL.md §12): a flat run of (field, value, ttl) triples instead
// of the usual (field, value) pairs, where ttl is the absolute millisecond
// expiry as a decimal string, or "0" for no expiry.
func (r *valueReader) parseListpackAsHashEx() LogicalValue {
	entries, err := r.readListpackEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}

	out := make([]HashField, 0, len(entries)/3)
	for i := 0; i+2 < len(entries); i += 3 {
		hf := HashField{Field: entries[i], Value: entries[i+1]}
		if ttl, err := strconv.ParseInt(entries[i+2], 10, 64); err == nil && ttl != 0 {
			hf.Expiry = &ttl
		}
		out = append(out, hf)
	}
	return hashValue(out)
}

// readListpackEntries walks the listpack layout: a 6-byte header
// (total-bytes, num-elements) followed by entries, terminated by 0xFF.
// Each entry is encoding+data followed by a variable-length "backlen"
// trailer used only for backward iteration, which we skip.
func (r *valueReader) readListpackEntries() ([]string, error) {
	if _, err := r.read(6); err != nil { // total-bytes(4) + num-elements(2)
		return nil, err
	}

	var out []string
	for {
		b, err := r.readUint8()
		if err != nil {
			return nil, err
		}
		if b == listpackEnd {
			return out, nil
		}

		entry, dataLen, err := r.readListpackEntry(b)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)

		if err := r.skipListpackBacklen(dataLen); err != nil {
			return nil, err
		}
	}
}

// readListpackEntry decodes one entry's value given its already-consumed
// lead byte b, and reports the entry's total encoded length (lead byte(s)
// + payload) so the caller can size the trailing backlen field correctly.
func (r *valueReader) readListpackEntry(b uint8) (string, int, error) {
	switch {
	case b&0x80 == listpackEncUint7:
		return strconv.Itoa(int(b)), 1, nil

	case b&0xC0 == listpackEnc6bitStrLen:
		length := int(b & 0x3F)
		s, err := r.readBoundedBytes(uint64(length))
		if err != nil {
			return "", 0, err
		}
		return s, 1 + length, nil

	case b&0xE0 == listpackEncInt13:
		b1, err := r.readUint8()
		if err != nil {
			return "", 0, err
		}
		raw := int32(b&0x1F)<<8 | int32(b1)
		if raw >= 1<<12 {
			raw -= 1 << 13
		}
		return strconv.Itoa(int(raw)), 2, nil

	case b == listpackEncInt16:
		v, err := r.readUint16()
		if err != nil {
			return "", 0, err
		}
		return strconv.Itoa(int(int16(v))), 3, nil

	case b == listpackEncInt24:
		data, err := r.read(3)
		if err != nil {
			return "", 0, err
		}
		v := int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16
		v = v << 8 >> 8
		return strconv.Itoa(int(v)), 4, nil

	case b == listpackEncInt32:
		v, err := r.readUint32()
		if err != nil {
			return "", 0, err
		}
		return strconv.Itoa(int(int32(v))), 5, nil

	case b == listpackEncInt64:
		v, err := r.readUint64()
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatInt(int64(v), 10), 9, nil

	case b&0xF0 == listpackEnc12bitStrLen:
		b1, err := r.readUint8()
		if err != nil {
			return "", 0, err
		}
		length := int(b&0x0F)<<8 | int(b1)
		s, err := r.readBoundedBytes(uint64(length))
		if err != nil {
			return "", 0, err
		}
		return s, 2 + length, nil

	case b == listpackEnc32bitStrLen:
		length, err := r.readUint32()
		if err != nil {
			return "", 0, err
		}
		s, err := r.readBoundedBytes(uint64(length))
		if err != nil {
			return "", 0, err
		}
		return s, 5 + int(length), nil

	default:
		return "", 0, newDecodeError(ErrBadEncoding, "unknown listpack entry encoding byte "+strconv.Itoa(int(b)))
	}
}

// skipListpackBacklen skips the backlen trailer, whose own byte-width is
// determined solely by the magnitude of entryLen (lpEncodeBacklen in
// Redis's listpack.c).
func (r *valueReader) skipListpackBacklen(entryLen int) error {
	switch {
	case entryLen <= 127:
		return r.skip(1)
	case entryLen < 16384:
		return r.skip(2)
	case entryLen < 2097152:
		return r.skip(3)
	case entryLen < 268435456:
		return r.skip(4)
	default:
		return r.skip(5)
	}
}

// --- intset --------------------------------------------------------------

func (r *valueReader) parseIntset() LogicalValue {
	entries, err := r.readIntsetEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return setValue(entries)
}

func (r *valueReader) readIntsetEntries() ([]string, error) {
	header, err := r.read(8) // encoding(4) + length(4), both LE
	if err != nil {
		return nil, err
	}
	encoding := binary.LittleEndian.Uint32(header[:4])
	length := binary.LittleEndian.Uint32(header[4:])

	out := make([]string, 0, length)
	for i := uint32(0); i < length; i++ {
		switch encoding {
		case intsetEncInt16:
			v, err := r.readUint16()
			if err != nil {
				return nil, err
			}
			out = append(out, strconv.Itoa(int(int16(v))))
		case intsetEncInt32:
			v, err := r.readUint32()
			if err != nil {
				return nil, err
			}
			out = append(out, strconv.Itoa(int(int32(v))))
		case intsetEncInt64:
			v, err := r.readUint64()
			if err != nil {
				return nil, err
			}
			out = append(out, strconv.FormatInt(int64(v), 10))
		default:
			return nil, newDecodeError(ErrBadEncoding, "unknown intset encoding width "+strconv.Itoa(int(encoding)))
		}
	}
	return out, nil
}

// --- zipmap (legacy pre-ziplist hash encoding, SPEC_FULL.md §12) --------

func (r *valueReader) parseZipmap() LogicalValue {
	fields, err := r.readZipmapEntries()
	if err != nil {
		return r.absorb(ErrBadEncoding, err)
	}
	return hashValue(fields)
}

func (r *valueReader) readZipmapEntries() ([]HashField, error) {
	if _, err := r.readUint8(); err != nil { // zmlen, unreliable above 253; we count instead
		return nil, err
	}

	var out []HashField
	for {
		keyLen, isEnd, err := r.readZipmapLen()
		if err != nil {
			return nil, err
		}
		if isEnd {
			return out, nil
		}

		key, err := r.readBoundedBytes(uint64(keyLen))
		if err != nil {
			return nil, err
		}

		valLen, _, err := r.readZipmapLen()
		if err != nil {
			return nil, err
		}
		free, err := r.readUint8()
		if err != nil {
			return nil, err
		}
		value, err := r.readBoundedBytes(uint64(valLen))
		if err != nil {
			return nil, err
		}
		if err := r.skip(int(free)); err != nil {
			return nil, err
		}

		out = append(out, HashField{Field: key, Value: value})
	}
}

func (r *valueReader) readZipmapLen() (uint32, bool, error) {
	b, err := r.readUint8()
	if err != nil {
		return 0, false, err
	}
	if b == zipmapEnd {
		return 0, true, nil
	}
	if b == zipmapLenBig {
		v, err := r.readUint32()
		if err != nil {
			return 0, false, err
		}
		return v, false, nil
	}
	return uint32(b), false, nil
}

// --- quicklist (list-of-nodes containers) -------------------------------

// parseQuicklist decodes TypeListQuicklist (v1, ziplist nodes only) and
// TypeListQuicklist2 (v2, plain-or-packed nodes) into a flat element list.
func (r *valueReader) parseQuicklist(nodeCount uint64, v2 bool) (LogicalValue, error) {
	var out []string
	for i := uint64(0); i < nodeCount; i++ {
		if !v2 {
			blob, err := r.ReadString()
			if err != nil {
				return LogicalValue{}, err
			}
			out = append(out, r.sub(blob).parseZiplistEntries()...)
			continue
		}

		container, _, err := r.readLen()
		if err != nil {
			return LogicalValue{}, err
		}

		blob, err := r.ReadString()
		if err != nil {
			return LogicalValue{}, err
		}

		switch container {
		case quicklist2NodePlain:
			out = append(out, blob)
		case quicklist2NodePacked:
			out = append(out, r.sub(blob).parseListpackEntries()...)
		default:
			r.warn(ErrBadEncoding, "unknown quicklist2 node container type "+strconv.FormatUint(container, 10))
			out = append(out, "<error: unknown quicklist2 node container>")
		}
	}
	return listValue(out), nil
}

// --- shared pair helpers -------------------------------------------------

func pairsToHash(entries []string) LogicalValue {
	out := make([]HashField, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		out = append(out, HashField{Field: entries[i], Value: entries[i+1]})
	}
	return hashValue(out)
}

func pairsToZset(entries []string) LogicalValue {
	out := make([]ScoredMember, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		score, err := strconv.ParseFloat(entries[i+1], 64)
		if err != nil {
			score = 0
		}
		out = append(out, ScoredMember{Member: entries[i], Score: score})
	}
	return zsetValue(out)
}
