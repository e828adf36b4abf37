package conf

// MergeDefaults merges maps into a single map, prefixing every key with
// the namespace ns. Later maps take precedence. An empty ns merges the
// keys unchanged.
func MergeDefaults[M ~map[string]V, V any](ns string, maps ...M) M {
	fullCap := 0
	for _, m := range maps {
		fullCap += len(m)
	}

	prefix := ""
	if ns != "" {
		prefix = ns + "."
	}

	merged := make(M, fullCap)
	for _, m := range maps {
		for key, val := range m {
			merged[prefix+key] = val
		}
	}

	return merged
}
