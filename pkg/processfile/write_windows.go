//go:build windows

package processfile

import (
	"os"
)

// renameio does not support Windows; a plain write is the best available
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}
