package rdb

// Streams and consumer groups are a non-goal for reconstruction (spec.md
// §1: "recognised enough to be safely skipped or summarised, not
// reconstructed"). Rather than rebuild entries out of the per-node
// listpacks, this reader walks the same field order the wire format uses
// and reads the counts the format already carries explicitly (the
// post-rax "length" field, and the group count), skipping everything
// else byte-exactly so the cursor lands correctly on the next opcode.

// readStreamSummary decodes a TypeStreamListpacks(/2/3) value into a
// StreamSummary without materialising individual entries.
func (r *valueReader) readStreamSummary(t Type) (StreamSummary, error) {
	nodeCount, _, err := r.readLen()
	if err != nil {
		return StreamSummary{}, err
	}
	for i := uint64(0); i < nodeCount; i++ {
		if _, err := r.ReadString(); err != nil { // rax key: 16 raw bytes (ms+seq), RDB-string-wrapped
			return StreamSummary{}, err
		}
		if _, err := r.ReadString(); err != nil { // listpack blob holding this node's entries
			return StreamSummary{}, err
		}
	}

	length, _, err := r.readLen() // s->length: total live entries in the stream
	if err != nil {
		return StreamSummary{}, err
	}

	if _, _, err := r.readLen(); err != nil { // last id millis
		return StreamSummary{}, err
	}
	if _, _, err := r.readLen(); err != nil { // last id seq
		return StreamSummary{}, err
	}

	if t >= TypeStreamListpacks2 {
		for i := 0; i < 5; i++ { // first-id{ms,seq}, max-deleted-id{ms,seq}, entries-added
			if _, _, err := r.readLen(); err != nil {
				return StreamSummary{}, err
			}
		}
	}

	groupCount, _, err := r.readLen()
	if err != nil {
		return StreamSummary{}, err
	}

	for i := uint64(0); i < groupCount; i++ {
		if err := r.skipStreamGroup(t); err != nil {
			return StreamSummary{}, err
		}
	}

	return StreamSummary{EntryCount: length, GroupCount: groupCount}, nil
}

func (r *valueReader) skipStreamGroup(t Type) error {
	if _, err := r.ReadString(); err != nil { // group name
		return err
	}
	if _, _, err := r.readLen(); err != nil { // last id millis
		return err
	}
	if _, _, err := r.readLen(); err != nil { // last id seq
		return err
	}
	if t >= TypeStreamListpacks2 {
		if _, _, err := r.readLen(); err != nil { // entries-read
			return err
		}
	}

	pelCount, _, err := r.readLen()
	if err != nil {
		return err
	}
	for i := uint64(0); i < pelCount; i++ {
		if err := r.skip(16); err != nil { // stream ID
			return err
		}
		if err := r.skip(8); err != nil { // delivery time
			return err
		}
		if _, _, err := r.readLen(); err != nil { // delivery count
			return err
		}
	}

	consumerCount, _, err := r.readLen()
	if err != nil {
		return err
	}
	for i := uint64(0); i < consumerCount; i++ {
		if _, err := r.ReadString(); err != nil { // consumer name
			return err
		}
		if err := r.skip(8); err != nil { // seen time
			return err
		}
		if t >= TypeStreamListpacks3 {
			if err := r.skip(8); err != nil { // active time
				return err
			}
		}
		pendingCount, _, err := r.readLen()
		if err != nil {
			return err
		}
		for j := uint64(0); j < pendingCount; j++ {
			if err := r.skip(16); err != nil { // stream ID, already in the global PEL
				return err
			}
		}
	}

	return nil
}
