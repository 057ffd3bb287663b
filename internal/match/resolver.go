package match

import "strings"

// Resolver turns a service-relative image reference into the absolute form
// stored in Report.ImageRefs. A reference that cannot be resolved must map to
// a value no stored reference can equal; the empty string serves.
type Resolver func(reference string) string

// PrefixResolver joins base and the reference with exactly one slash.
// No other normalisation happens: comparison stays exact.
func PrefixResolver(base string) Resolver {
	base = strings.TrimRight(base, "/")
	return func(reference string) string {
		reference = strings.TrimLeft(reference, "/")
		if reference == "" {
			return ""
		}
		return base + "/" + reference
	}
}
