//go:build !windows

package filesystem

import (
	"io/fs"
	"strings"
)

func isHidden(name string, _ fs.FileInfo) bool {
	return strings.HasPrefix(name, ".")
}
