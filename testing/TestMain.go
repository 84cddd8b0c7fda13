// Package testing flips the runtime into test mode so binaries imported by tests skip
// network startup.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("INVOICEDESK_TEST_MODE", "1")
		if os.Getenv("SOURCE_DRIVER") == "" {
			_ = os.Setenv("SOURCE_DRIVER", "api")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
