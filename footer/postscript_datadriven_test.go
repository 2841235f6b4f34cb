package footer

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/f3-format/f3/checksum"
)

// TestPostscriptDataDriven exercises Encode/DecodePostscript round trips and
// rejected layouts against table-shaped fixtures, the footer package's
// analogue of checksum's own datadriven coverage.
func TestPostscriptDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/postscript_round_trip", func(t *testing.T, d *datadriven.TestData) string {
		fields := map[string]uint64{}
		for _, line := range strings.Fields(d.Input) {
			kv := strings.SplitN(line, "=", 2)
			if len(kv) != 2 {
				t.Fatalf("malformed field %q", line)
			}
			v, err := strconv.ParseUint(kv[1], 10, 64)
			if err != nil {
				t.Fatalf("malformed value in %q: %v", line, err)
			}
			fields[kv[0]] = v
		}
		ps := Postscript{
			FormatVersion: uint32(fields["format_version"]),
			FooterSize:    uint32(fields["footer_size"]),
			MetadataSize:  uint32(fields["metadata_size"]),
			DataChecksum:  fields["data_checksum"],
			ChecksumType:  checksum.Type(fields["checksum_type"]),
		}
		switch d.Cmd {
		case "round-trip":
			decoded, err := DecodePostscript(ps.Encode())
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return fmt.Sprintf("footer_size=%d metadata_size=%d checksum_type=%d",
				decoded.FooterSize, decoded.MetadataSize, decoded.ChecksumType)
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
