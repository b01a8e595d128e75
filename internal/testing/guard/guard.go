// Package guard flips the runtime into test mode when imported from a
// test binary, so entry points refuse to start real servers under `go test`.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKLINE_TEST_MODE") == "" {
			_ = os.Setenv("STOCKLINE_TEST_MODE", "1")
		}
	})
}
