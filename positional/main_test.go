package positional

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards against goroutines leaked by ObjectStoreReader's
// singleflight-backed size cache, mirroring frostdb's own use of goleak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
