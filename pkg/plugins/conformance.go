package plugins

// Implements reports whether t directly declares c. Contracts match by
// identity, and interfaces reached only through Extends do not count.
func Implements(t *Type, c *Contract) bool {
	if t == nil || c == nil {
		return false
	}
	for _, iface := range t.Interfaces {
		if iface == c {
			return true
		}
	}
	return false
}
