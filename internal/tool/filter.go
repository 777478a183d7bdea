package tool

// Filter restricts available to the names in allow.
//
// A nil allow returns a copy of available. A non-nil empty allow returns an
// empty set. Otherwise any shell alias in allow enables the whole shell
// family, and the expanded names are matched exactly against available.
// Names that match nothing are dropped. Filter never modifies its inputs.
func Filter(available Set, allow []string) Set {
	if allow == nil {
		return available.Clone()
	}

	requested := make(map[string]bool, len(allow))
	shell := false
	for _, name := range allow {
		requested[name] = true
		if Parse(name).IsShellFamily() {
			shell = true
		}
	}
	if shell {
		for _, c := range ShellFamily() {
			requested[c.Name()] = true
		}
	}

	out := make(Set)
	for name, c := range available {
		if requested[name] {
			out[name] = c
		}
	}
	return out
}
