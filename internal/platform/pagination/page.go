// Package pagination normalizes client-supplied page sizes.
package pagination

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies the default for non-positive sizes and caps the
// result at Max. The result is at least 1.
func ClampPageSize(requested int, cfg PageSizeConfig) int {
	size := requested
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size <= 0 {
		size = 1
	}
	return size
}
