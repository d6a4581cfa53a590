package codectx

import "sort"

// DefaultMergeGap is the largest row gap between two edit snippets that
// still merges them.
const DefaultMergeGap = 2

// mergeOverlappingSnippets groups signals whose edit snippets are in the same
// file and overlap or sit within gap rows of each other, chaining
// transitively. Each group gets one snippet over the union of its rows.
// Signals without a snippet, or whose file was unreadable, stay standalone.
func mergeOverlappingSnippets(items []SignalContext, cache fileCache, gap int) ([]MergedSnippetGroup, []int) {
	type span struct {
		idx        int
		start, end int
	}
	byFile := make(map[string][]span)
	var files []string
	for i, it := range items {
		if it.EditSnippet == nil || it.FileReadError != "" {
			continue
		}
		path := it.EditSnippet.FilePath
		if _, ok := byFile[path]; !ok {
			files = append(files, path)
		}
		byFile[path] = append(byFile[path], span{idx: i, start: it.EditSnippet.StartRow, end: it.EditSnippet.EndRow})
	}

	inGroup := make(map[int]bool)
	var merged []MergedSnippetGroup
	for _, path := range files {
		spans := byFile[path]
		sort.SliceStable(spans, func(a, b int) bool { return spans[a].start < spans[b].start })

		lines, ok := cache.lines(path)
		flush := func(cluster []span, lo, hi int) {
			if len(cluster) < 2 || !ok || hi > len(lines) {
				return
			}
			indices := make([]int, 0, len(cluster))
			for _, s := range cluster {
				indices = append(indices, s.idx)
			}
			sort.Ints(indices)
			errorRow := items[indices[0]].EditSnippet.ErrorLine
			merged = append(merged, MergedSnippetGroup{
				SignalIndices: indices,
				EditSnippet:   newEditSnippet(path, lines, Range{Start: lo, End: hi}, errorRow),
			})
			for _, i := range indices {
				inGroup[i] = true
			}
		}

		cluster := []span{spans[0]}
		lo, hi := spans[0].start, spans[0].end
		for _, s := range spans[1:] {
			if s.start-hi <= gap {
				cluster = append(cluster, s)
				hi = max(hi, s.end)
				continue
			}
			flush(cluster, lo, hi)
			cluster = []span{s}
			lo, hi = s.start, s.end
		}
		flush(cluster, lo, hi)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].SignalIndices[0] < merged[b].SignalIndices[0]
	})

	standalone := make([]int, 0, len(items))
	for i := range items {
		if !inGroup[i] {
			standalone = append(standalone, i)
		}
	}
	return merged, standalone
}
