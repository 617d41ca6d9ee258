package txlog

// collapseEntries keeps only the newest entry per object, preserving the
// ascending id order of the survivors.
func collapseEntries(entries []*Entry) []*Entry {
	if len(entries) < 2 {
		return entries
	}
	latest := make(map[objectKey]int64, len(entries))
	for _, entry := range entries {
		latest[entry.key()] = entry.ID
	}
	out := make([]*Entry, 0, len(latest))
	for _, entry := range entries {
		if latest[entry.key()] == entry.ID {
			out = append(out, entry)
		}
	}
	return out
}
