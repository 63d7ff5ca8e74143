//go:build !unix

package compile

import "os"

// lockFile only creates the lock file; Durable's per-key mutex serialises
// access within the process.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return func() { _ = f.Close() }, nil
}
