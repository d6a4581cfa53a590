package agent

import (
	"fmt"
	"sort"

	"sigfix/internal/codectx"
)

// RequestUnit is one editable region sent to the model: a standalone signal
// or a merged group. The Nth response block answers the Nth unit.
type RequestUnit struct {
	SignalIndices []int                `json:"signal_indices"`
	Snippet       *codectx.EditSnippet `json:"edit_snippet"`
	Merged        bool                 `json:"merged"`
}

// RequestUnits orders units by their lowest signal index. Signals with no
// edit snippet cannot be fixed and are reported as warnings instead.
func RequestUnits(gc *codectx.GroupContext) ([]RequestUnit, []string) {
	var units []RequestUnit
	var warnings []string

	for _, g := range gc.MergedGroups {
		units = append(units, RequestUnit{
			SignalIndices: append([]int(nil), g.SignalIndices...),
			Snippet:       g.EditSnippet,
			Merged:        true,
		})
	}
	for _, i := range gc.StandaloneIndices {
		sc := gc.Signals[i]
		if sc.EditSnippet == nil {
			reason := "no editable region"
			if sc.FileReadError != "" {
				reason = sc.FileReadError
			}
			warnings = append(warnings, fmt.Sprintf("Signal %d (%s %s) not sent for fixing: %s",
				i+1, sc.Signal.RuleCode, sc.Signal.Location(), reason))
			continue
		}
		units = append(units, RequestUnit{SignalIndices: []int{i}, Snippet: sc.EditSnippet})
	}

	sort.SliceStable(units, func(a, b int) bool {
		return units[a].SignalIndices[0] < units[b].SignalIndices[0]
	})
	return units, warnings
}
