package log

import (
	"os"
	"testing"
)

// TestingLogger returns a logger which writes to STDOUT if the tests are being
// run with the verbose (-v) flag, and a NopLogger otherwise.
//
// The call to TestingLogger() must be made inside a test (not in an init func)
// because the verbose flag is only set at testing time.
func TestingLogger() Logger {
	if testing.Verbose() {
		return NewLogger(os.Stdout)
	}
	return NewNopLogger()
}
