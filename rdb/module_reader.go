package rdb

import "strconv"

// Module values are a non-goal for reconstruction (spec.md §1): this file
// recognises a module's numeric ID well enough to name it and skip its
// payload, using the same opcode-tagged skip loop the wire format defines
// for its own forward-compatibility. RedisJSON is recognised by ID so its
// summary says "json" instead of a decoded type-name string, but its tree
// is never rebuilt — it is skipped exactly like any other module.

const moduleTypeNameCharSet string = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// constructModuleName reverses Redis's REDISMODULE_TYPE_ENCODE_VERSION
// packing: a module ID's top 54 bits hold a 9-character name, 6 bits each.
func constructModuleName(id uint64) string {
	id >>= 10
	name := make([]byte, 9)
	for i := len(name) - 1; i >= 0; i-- {
		name[i] = moduleTypeNameCharSet[id&0x3F]
		id >>= 6
	}
	return bytesToString(name)
}

type moduleReader struct {
	reader *valueReader
}

// Skip consumes a module's self-describing payload without interpreting
// it: the wire format tags every field with an opcode (int, float, double,
// string) terminated by moduleOpCodeEOF, so any module — known or not —
// can be skipped byte-exactly.
func (r *moduleReader) Skip() error {
	for {
		opcode, _, err := r.reader.readLen()
		if err != nil {
			return err
		}

		switch opcode {
		case moduleOpCodeEOF:
			return nil
		case moduleOpCodeSInt, moduleOpCodeUInt:
			_, _, err = r.reader.readLen()
		case moduleOpCodeFloat:
			err = r.reader.skip(4)
		case moduleOpCodeDouble:
			err = r.reader.skip(8)
		case moduleOpCodeString:
			_, err = r.reader.ReadString()
		default:
			err = newDecodeError(ErrBadEncoding, "unknown module opcode "+strconv.FormatUint(opcode, 10))
		}
		if err != nil {
			return err
		}
	}
}

// readModuleValue decodes a TypeModule2 value: a module ID followed by its
// self-describing, skippable payload. The result is always a placeholder
// string value naming the module, per SPEC_FULL.md §12.
func (r *valueReader) readModuleValue() (LogicalValue, error) {
	id, _, err := r.readLen()
	if err != nil {
		return LogicalValue{}, err
	}

	mr := moduleReader{reader: r}
	if err := mr.Skip(); err != nil {
		return LogicalValue{}, newDecodeError(ErrModuleSkipped, err.Error())
	}

	marker := EmptyModuleMarker
	name := constructModuleName(id)
	if id == jsonModuleID {
		marker = JSONModuleMarker
		name = string(marker)
	}

	return stringValue("<module " + name + ">"), nil
}

// ModuleSummary reports the recognised name and marker for a module ID,
// exported for callers that want to tell a recognised module apart from an
// opaque one without re-parsing the value.
func ModuleSummary(id uint64) (name string, marker ModuleMarker) {
	if id == jsonModuleID {
		return string(JSONModuleMarker), JSONModuleMarker
	}
	return constructModuleName(id), EmptyModuleMarker
}
