package usn

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
)

// CapabilityKind is the acquisition strategy chosen for a volume.
type CapabilityKind int

const (
	// BulkCapable volumes are enumerated through the change journal.
	BulkCapable CapabilityKind = iota
	// FallbackOnly volumes can only be indexed by directory traversal.
	FallbackOnly
	// Excluded volumes are removable or remote and are not indexed.
	Excluded
)

func (k CapabilityKind) String() string {
	switch k {
	case BulkCapable:
		return "bulk"
	case FallbackOnly:
		return "fallback"
	case Excluded:
		return "excluded"
	default:
		return fmt.Sprintf("CapabilityKind(%d)", int(k))
	}
}

// Capability is decided once per volume. Reason explains a FallbackOnly
// decision, wrapping common.ErrUnsupportedVolume, or an Excluded one, wrapping
// common.ErrExcludedVolume.
type Capability struct {
	Kind   CapabilityKind
	Reason error
}

// Bulk returns a BulkCapable capability.
func Bulk() Capability { return Capability{Kind: BulkCapable} }

// Fallback returns a FallbackOnly capability with a reason.
func Fallback(format string, args ...any) Capability {
	return Capability{
		Kind:   FallbackOnly,
		Reason: fmt.Errorf("%w: %s", common.ErrUnsupportedVolume, fmt.Sprintf(format, args...)),
	}
}

// Exclude returns an Excluded capability with a reason.
func Exclude(format string, args ...any) Capability {
	return Capability{
		Kind:   Excluded,
		Reason: fmt.Errorf("%w: %s", common.ErrExcludedVolume, fmt.Sprintf(format, args...)),
	}
}

// System is the Provider backed by the running operating system.
type System struct{}

// Probe decides how volume can be indexed.
func (System) Probe(ctx context.Context, volume string) Capability {
	return probe(ctx, volume)
}

// Open opens the enumeration device of volume.
func (System) Open(ctx context.Context, volume string) (Device, error) {
	return openDevice(ctx, volume)
}

// FixedVolumes lists local fixed volumes.
func (System) FixedVolumes(ctx context.Context) ([]string, error) {
	return fixedVolumes(ctx)
}
