package domain

// LimitProfile bounds how many rows one call-site may request. The gate
// carries two: a small one for table previews and a larger one for ad-hoc
// queries. The ceilings are per call-site, not global.
type LimitProfile struct {
	Default int
	Max     int
}

// Clamp maps a caller-supplied row limit into [1, Max]. Zero or a negative
// number means "use the default". The caller's value is never trusted
// verbatim.
func (p LimitProfile) Clamp(requested int) int {
	if requested <= 0 {
		return p.Default
	}
	if requested > p.Max {
		return p.Max
	}
	return requested
}

// Default call-site profiles; both are overridable via configuration.
var (
	DefaultPreviewLimits = LimitProfile{Default: 10, Max: 100}
	DefaultAdHocLimits   = LimitProfile{Default: 1000, Max: 5000}
)
