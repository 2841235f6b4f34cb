package checksum

import (
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// TestDataDriven exercises the streaming hasher's chunking-invariance and
// order-sensitivity contract against table-shaped fixtures, the same
// input/expected-output style frostdb's own logictest package uses for its
// datadriven scenarios.
func TestDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/round_trip", func(t *testing.T, d *datadriven.TestData) string {
		chunks := strings.Split(strings.TrimSpace(d.Input), "|")
		switch d.Cmd {
		case "chunked-equal":
			whole := New(XxHash64)
			whole.Update([]byte(strings.Join(chunks, "")))

			split := New(XxHash64)
			for _, chunk := range chunks {
				split.Update([]byte(chunk))
			}
			return boolString(whole.Finalize() == split.Finalize())
		case "order-sensitive":
			forward := New(XxHash64)
			for _, chunk := range chunks {
				forward.Update([]byte(chunk))
			}
			backward := New(XxHash64)
			for i := len(chunks) - 1; i >= 0; i-- {
				backward.Update([]byte(chunks[i]))
			}
			return boolString(forward.Finalize() == backward.Finalize())
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
