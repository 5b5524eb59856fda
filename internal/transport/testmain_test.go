package transport_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks for goroutine leaks across this package's tests; the UDP
// listener tests exercise real sockets and must not leave readers behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
