// Package guard sets COUNTERPOS_TEST_MODE on import unless the caller chose a
// value already.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("COUNTERPOS_TEST_MODE") == "" {
			_ = os.Setenv("COUNTERPOS_TEST_MODE", "1")
		}
	})
}
