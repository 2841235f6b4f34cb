package footer

// SharedDictionaryEntry points at one file-global dictionary's encoded
// bytes, the same shape as a column chunk so dict.Cache can decode it
// through the identical decoder dispatch path.
type SharedDictionaryEntry struct {
	DictionaryID uint32
	Pointer      ColumnMetaPointer
	DecoderID    uint32
}

func encodeSharedDictTable(w *tlvWriter, entries []SharedDictionaryEntry) {
	w.putUvarint(uint64(len(entries)))
	for _, e := range entries {
		w.putUvarint(uint64(e.DictionaryID))
		w.putUvarint(e.Pointer.Offset)
		w.putUvarint(e.Pointer.Size)
		w.putUvarint(uint64(e.DecoderID))
	}
}

func decodeSharedDictTable(r *tlvReader) ([]SharedDictionaryEntry, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	entries := make([]SharedDictionaryEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		dictID, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		offset, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		size, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		decoderID, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		entries = append(entries, SharedDictionaryEntry{
			DictionaryID: uint32(dictID),
			Pointer:      ColumnMetaPointer{Offset: offset, Size: size},
			DecoderID:    uint32(decoderID),
		})
	}
	return entries, nil
}

// EncodingVersion is a semantic version used to gate ABI compatibility
// between the footer's recorded encoding-type versions and the decoder
// runtime actually loaded.
type EncodingVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// Compatible reports whether a decoder advertising version other can serve
// data encoded at v: same major version, decoder minor/patch at least v's.
func (v EncodingVersion) Compatible(other EncodingVersion) bool {
	if v.Major != other.Major {
		return false
	}
	if other.Minor != v.Minor {
		return other.Minor > v.Minor
	}
	return other.Patch >= v.Patch
}

func encodeEncodingVersions(w *tlvWriter, versions map[uint32]EncodingVersion) {
	w.putUvarint(uint64(len(versions)))
	ids := sortedDecoderIDs(versions)
	for _, id := range ids {
		v := versions[id]
		w.putUvarint(uint64(id))
		w.putUvarint(uint64(v.Major))
		w.putUvarint(uint64(v.Minor))
		w.putUvarint(uint64(v.Patch))
	}
}

func decodeEncodingVersions(r *tlvReader) (map[uint32]EncodingVersion, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	versions := make(map[uint32]EncodingVersion, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		major, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		minor, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		patch, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		versions[uint32(id)] = EncodingVersion{Major: uint32(major), Minor: uint32(minor), Patch: uint32(patch)}
	}
	return versions, nil
}

// sortedDecoderIDs returns map keys ascending, matching the footer's
// serialized decoder list convention: encoding_versions is always written
// sorted ascending by decoder id.
func sortedDecoderIDs(versions map[uint32]EncodingVersion) []uint32 {
	ids := make([]uint32, 0, len(versions))
	for id := range versions {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}
