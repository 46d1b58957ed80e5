package api

// availableSlots returns the enumeration minus the reserved set, keeping
// the enumeration order.
func availableSlots(enumeration, reserved []string) []string {
	taken := make(map[string]struct{}, len(reserved))
	for _, s := range reserved {
		taken[s] = struct{}{}
	}

	out := make([]string, 0, len(enumeration))
	for _, s := range enumeration {
		if _, ok := taken[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
