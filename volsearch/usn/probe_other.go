//go:build !windows

package usn

import (
	"context"
	"runtime"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
)

func probe(_ context.Context, volume string) Capability {
	return Fallback("change journal not available on %s (volume %q)", runtime.GOOS, volume)
}

func openDevice(_ context.Context, volume string) (Device, error) {
	return nil, common.NewVolumeError(volume, "open", common.ErrUnsupportedVolume)
}

func fixedVolumes(context.Context) ([]string, error) {
	return nil, nil
}
