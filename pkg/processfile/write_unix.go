//go:build !windows

package processfile

import (
	"os"

	"github.com/google/renameio/v2"
)

// writeFileAtomic replaces path in one rename so readers never see a torn PID
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
