package footer

import (
	"fmt"

	"github.com/f3-format/f3/f3err"
)

// CurrentFooterFormatVersion is the footer encoding version this package
// writes and the maximum it will parse. It is independent of
// CurrentFormatVersion (postscript.go): the postscript's format_version gates the
// whole file layout, this one gates only the footer's own internal TLV
// shape, so the two can evolve separately.
const CurrentFooterFormatVersion uint32 = 1

// Footer is the parsed result of the footer codec, bundled into one struct.
// SharedDict and OptionalSections are both optional: a file with neither
// leaves those fields nil.
type Footer struct {
	Schema            Schema
	LogicalToPhysical []PhysicalNode
	RowGroups         RowGroupsPointer
	SharedDict        []SharedDictionaryEntry // nil if the file has no shared-dictionary table
	OptionalSections  []OptionalSection        // nil if the file has no optional sections
	EncodingVersions  map[uint32]EncodingVersion
}

// EncodeFooter serializes f to the bytes that live between the end of the
// last row group's column chunks and the postscript. Every sub-section is
// length-prefixed so a future reader that only understands a subset of
// fields can skip the rest.
func EncodeFooter(f Footer) []byte {
	w := newTLVWriter()
	w.putUvarint(uint64(CurrentFooterFormatVersion))
	w.putBytesLenPrefixed(EncodeSchema(f.Schema))
	w.putBytesLenPrefixed(EncodePhysicalTree(f.LogicalToPhysical))
	w.putBytesLenPrefixed(EncodeRowGroupsPointer(f.RowGroups))

	hasSharedDict := f.SharedDict != nil
	w.putBool(hasSharedDict)
	if hasSharedDict {
		sub := newTLVWriter()
		encodeSharedDictTable(sub, f.SharedDict)
		w.putBytesLenPrefixed(sub.Bytes())
	}

	hasOptional := f.OptionalSections != nil
	w.putBool(hasOptional)
	if hasOptional {
		w.putBytesLenPrefixed(EncodeOptionalSections(f.OptionalSections))
	}

	sub := newTLVWriter()
	encodeEncodingVersions(sub, f.EncodingVersions)
	w.putBytesLenPrefixed(sub.Bytes())

	return w.Bytes()
}

// DecodeFooter parses bytes produced by EncodeFooter. Every missing
// required sub-sequence (row_group_metadatas, col_metadatas, row_counts,
// offsets, sizes, all enforced transitively by RowGroupsPointer.Validate)
// yields a field-specific ParseError.
func DecodeFooter(buf []byte) (Footer, error) {
	r := newTLVReader(buf)

	version, err := r.uvarint()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "footer_format_version")
	}
	if version > uint64(CurrentFooterFormatVersion) {
		return Footer{}, f3err.New(f3err.ParseError, fmt.Sprintf("unsupported footer_format_version %d", version))
	}

	schemaBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "schema")
	}
	schema, err := DecodeSchema(schemaBytes)
	if err != nil {
		return Footer{}, err
	}

	physicalBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "logical_to_physical tree")
	}
	physical, err := DecodePhysicalTree(physicalBytes)
	if err != nil {
		return Footer{}, err
	}
	if err := ValidatePhysicalTreeShape(schema.Fields, physical); err != nil {
		return Footer{}, err
	}

	rowGroupsBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "row_groups_pointer")
	}
	rowGroups, err := DecodeRowGroupsPointer(rowGroupsBytes)
	if err != nil {
		return Footer{}, err
	}
	wantLeaves := len(LeafFields(schema.Fields))
	for i, rg := range rowGroups.RowGroupMetadatas {
		if len(rg.ColMetadatas) != wantLeaves {
			return Footer{}, f3err.New(f3err.ParseError, fmt.Sprintf("row group %d has %d column pointers, schema has %d leaf columns", i, len(rg.ColMetadatas), wantLeaves))
		}
	}

	hasSharedDict, err := r.bool()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "shared_dict_table presence flag")
	}
	var sharedDict []SharedDictionaryEntry
	if hasSharedDict {
		subBytes, err := r.bytesLenPrefixed()
		if err != nil {
			return Footer{}, f3err.Wrap(f3err.ParseError, err, "shared_dict_table")
		}
		sub := newTLVReader(subBytes)
		sharedDict, err = decodeSharedDictTable(sub)
		if err != nil {
			return Footer{}, err
		}
	}

	hasOptional, err := r.bool()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "optional_sections presence flag")
	}
	var optionalSections []OptionalSection
	if hasOptional {
		optBytes, err := r.bytesLenPrefixed()
		if err != nil {
			return Footer{}, f3err.Wrap(f3err.ParseError, err, "optional_sections")
		}
		optionalSections, err = DecodeOptionalSections(optBytes)
		if err != nil {
			return Footer{}, err
		}
	}

	versionsBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return Footer{}, f3err.Wrap(f3err.ParseError, err, "encoding_versions")
	}
	versionsSub := newTLVReader(versionsBytes)
	encodingVersions, err := decodeEncodingVersions(versionsSub)
	if err != nil {
		return Footer{}, err
	}

	return Footer{
		Schema:            schema,
		LogicalToPhysical: physical,
		RowGroups:         rowGroups,
		SharedDict:        sharedDict,
		OptionalSections:  optionalSections,
		EncodingVersions:  encodingVersions,
	}, nil
}
