package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BAZAAR_TEST_MODE") == "" {
			_ = os.Setenv("BAZAAR_TEST_MODE", "1")
		}
	})
}
