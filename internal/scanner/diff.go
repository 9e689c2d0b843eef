package scanner

// Diff classifies a fresh Collect() result against a prior snapshot of
// path -> ModTime, so the incremental updater (C6) only reparses what
// actually changed. Grounded on the teacher's mtime-skip map used by
// the pipeline scanner to avoid rescanning untouched files.
type Diff struct {
	Added    []Entry
	Modified []Entry
	Removed  []string
}

// DiffAgainst compares entries against a previous path->ModTime snapshot.
func DiffAgainst(entries []Entry, previous map[string]int64) Diff {
	var d Diff
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		seen[e.Path] = true
		prevMod, ok := previous[e.Path]
		switch {
		case !ok:
			d.Added = append(d.Added, e)
		case prevMod != e.ModTime:
			d.Modified = append(d.Modified, e)
		}
	}

	for path := range previous {
		if !seen[path] {
			d.Removed = append(d.Removed, path)
		}
	}
	return d
}

// Snapshot reduces a Collect() result to the path->ModTime map DiffAgainst
// expects on the next incremental pass.
func Snapshot(entries []Entry) map[string]int64 {
	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		m[e.Path] = e.ModTime
	}
	return m
}
