package rdb

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
)

const magicStr = "REDIS"
const magicLen = 5
const versionLen = 4
const headerLen = magicLen + versionLen
const crcLen = 8

// DecodeFile opens the RDB file at path and decodes it in full, per
// spec.md §6 (external interfaces) and §4.5 (the top-level driver state
// machine). It streams the file rather than loading it whole, using the
// same file-backed, read-ahead, CRC-accumulating buffer the teacher used
// for its own bounded-memory guarantee (spec.md §5).
func DecodeFile(path string, opts Options) (*SnapshotResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header := make([]byte, headerLen)
	n, err := file.Read(header)
	if err != nil {
		return nil, err
	}
	if n != headerLen {
		return nil, newDecodeError(ErrUnexpectedEof, "file shorter than the RDB header")
	}

	if bytesToString(header[:magicLen]) != magicStr {
		return nil, newDecodeError(ErrMagicMismatch, "missing REDIS magic signature")
	}

	magicVersion, err := strconv.Atoi(bytesToString(header[magicLen:]))
	if err != nil {
		return nil, newDecodeError(ErrMagicMismatch, "non-numeric RDB version field")
	}
	if magicVersion < 1 || magicVersion > int(Version) {
		return nil, newDecodeError(ErrUnsupportedVersion, fmt.Sprintf("RDB version %d is not supported (max %d)", magicVersion, Version))
	}

	endsWithCRC := magicVersion >= 5

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	fileLen := info.Size() - headerLen
	if endsWithCRC {
		fileLen -= crcLen
	}

	buf := newFileBackedBuffer(file, int(fileLen), minInt(int(fileLen), 1<<20))
	if endsWithCRC {
		buf.initCRC(header)
	}

	result := decode(buf, magicVersion, opts)

	if endsWithCRC && !result.Incomplete {
		crcBytes := make([]byte, crcLen)
		n, err := file.Read(crcBytes)
		if err != nil || n != crcLen {
			result.Warnings = append(result.Warnings, Warning{Kind: ErrUnexpectedEof, Msg: "could not read trailing CRC block"})
		} else {
			crc := binary.LittleEndian.Uint64(crcBytes)
			ok := verifyTrailingCRC(crc, buf.crc)
			if ok != nil {
				result.ChecksumOK = ok
				if !*ok {
					result.Warnings = append(result.Warnings, Warning{Kind: ErrBadEncoding, Msg: "trailing CRC64 does not match the file contents"})
				}
			}
		}
	}

	return result, nil
}

// setAux records an AUX field, overwriting any prior value for the same
// key rather than appending a duplicate entry (spec.md §4.5: "inserted
// into aux (duplicates overwrite)").
func setAux(result *SnapshotResult, key, value string) {
	for i := range result.Aux {
		if result.Aux[i].Key == key {
			result.Aux[i].Value = value
			return
		}
	}
	result.Aux = append(result.Aux, AuxField{Key: key, Value: value})
}

// verifyTrailingCRC compares the file's trailing CRC against the one
// accumulated while reading. A stored value of 0 means checksums were
// disabled at write time (spec.md §13 Open Question #2 / SPEC_FULL.md
// §12): the result is "not applicable", not a failure, so nil is returned.
func verifyTrailingCRC(stored, computed uint64) *bool {
	if stored == 0 {
		return nil
	}
	ok := stored == computed
	return &ok
}

// decode runs the top-level driver state machine of spec.md §4.5 over buf,
// which is assumed to be positioned right after the RDB header. It never
// returns a Go error: any fatal decodeError instead sets Incomplete on the
// returned SnapshotResult, alongside a Warning describing what stopped the
// pass, so a caller always gets back whatever prefix could be decoded.
func decode(buf buffer, magicVersion int, opts Options) *SnapshotResult {
	reader := &valueReader{buf: buf, maxStrSize: opts.MaxStringSize, maxLZFSize: opts.MaxLZFOutput}
	result := &SnapshotResult{MagicVersion: magicVersion}

	var dbIndex int
	var pendingExpiryMs *int64
	var pendingIdleSeconds *int64
	var pendingFreq *uint8

	resetPending := func() {
		pendingExpiryMs = nil
		pendingIdleSeconds = nil
		pendingFreq = nil
	}

	// interruptPending drops any expiry/idle/freq metadata left over from a
	// prior opcode when the opcode that follows it isn't a type tag, per
	// spec.md §4.5: "the very next opcode must be a type tag; otherwise the
	// pending metadata is dropped with a warning."
	interruptPending := func(opcode string) {
		if pendingExpiryMs == nil && pendingIdleSeconds == nil && pendingFreq == nil {
			return
		}
		result.Warnings = append(result.Warnings, Warning{
			Kind: ErrBadEncoding,
			Msg:  "pending metadata dropped: opcode " + opcode + " interrupted it",
		})
		resetPending()
	}

	abort := func(err error) {
		de, _ := asDecodeError(err)
		kind := ErrIo
		msg := err.Error()
		if de != nil {
			kind = de.kind
			msg = de.msg
		}
		result.Incomplete = true
		result.Warnings = append(result.Warnings, Warning{Kind: kind, Msg: "pass aborted: " + msg})
	}

	for {
		t, err := reader.ReadType()
		if err != nil {
			abort(err)
			return result
		}

		switch t {
		case typeOpCodeEOF:
			interruptPending("EOF")
			return result

		case typeOpCodeSelectDB:
			interruptPending("SELECTDB")
			dbnum, _, err := reader.readLen()
			if err != nil {
				abort(err)
				return result
			}
			dbIndex = int(dbnum)

		case typeOpCodeResizeDB:
			interruptPending("RESIZEDB")
			if _, _, err := reader.readLen(); err != nil { // db size hint
				abort(err)
				return result
			}
			if _, _, err := reader.readLen(); err != nil { // expires size hint
				abort(err)
				return result
			}

		case typeOpCodeAux:
			interruptPending("AUX")
			key, err := reader.ReadString()
			if err != nil {
				abort(err)
				return result
			}
			value, err := reader.ReadString()
			if err != nil {
				abort(err)
				return result
			}
			setAux(result, key, value)

		case typeOpCodeFreq:
			f, err := reader.readUint8()
			if err != nil {
				abort(err)
				return result
			}
			pendingFreq = &f

		case typeOpCodeIdle:
			idle, _, err := reader.readLen()
			if err != nil {
				abort(err)
				return result
			}
			idleI := int64(idle)
			pendingIdleSeconds = &idleI

		case typeOpCodeExpireTime:
			secs, err := reader.readUint32()
			if err != nil {
				abort(err)
				return result
			}
			ms := int64(secs) * 1000
			pendingExpiryMs = &ms

		case typeOpCodeExpireTimeMS:
			ms, err := reader.readUint64()
			if err != nil {
				abort(err)
				return result
			}
			msI := int64(ms)
			pendingExpiryMs = &msI

		case typeOpCodeModuleAux:
			interruptPending("MODULE_AUX")
			if _, _, err := reader.readLen(); err != nil { // module id
				abort(err)
				return result
			}
			mr := moduleReader{reader: reader}
			if err := mr.Skip(); err != nil {
				abort(err)
				return result
			}

		case typeOpCodeFunctionPreGA:
			interruptPending("FUNCTION_PRE_GA")
			abort(newDecodeError(ErrUnsupportedVersion, "pre-release function payload format is not supported"))
			return result

		case typeOpCodeFunction2:
			interruptPending("FUNCTION2")
			if _, err := reader.ReadString(); err != nil { // function payload, not part of the key space
				abort(err)
				return result
			}

		default:
			key, err := reader.ReadString()
			if err != nil {
				abort(err)
				return result
			}

			reader.currentKey = key
			value, err := reader.readObject(t)
			reader.currentKey = ""

			if err != nil {
				de, resyncable := asDecodeError(err)
				if resyncable && de.resync && !isAlwaysFatal(de.kind) {
					result.Warnings = append(result.Warnings, Warning{Kind: de.kind, Key: key, Msg: de.msg})
					resetPending()
					continue
				}
				abort(err)
				return result
			}

			result.Keys = append(result.Keys, KeyRecord{
				Key:         key,
				Value:       value,
				ExpiryMs:    pendingExpiryMs,
				IdleSeconds: pendingIdleSeconds,
				Freq:        pendingFreq,
				DBIndex:     dbIndex,
			})
			result.Warnings = append(result.Warnings, reader.warnings...)
			reader.warnings = nil
			resetPending()
		}
	}
}
