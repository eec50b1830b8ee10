package remediators

import (
	"fmt"
	"strings"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// PlatformHandler is the ordered remediation sequence for one platform.
// Its fields must not be modified after registration.
type PlatformHandler struct {
	Platform string
	Actions  []types.RemedialAction

	// Fallback marks the empty handler returned for unregistered platforms.
	Fallback bool
}

// NewPlatformHandler validates the actions and returns a handler owning a
// copy of them.
func NewPlatformHandler(platform string, actions ...types.RemedialAction) (*PlatformHandler, error) {
	if strings.TrimSpace(platform) == "" {
		return nil, fmt.Errorf("platform identifier cannot be empty")
	}

	seen := make(map[string]bool, len(actions))
	copied := make([]types.RemedialAction, 0, len(actions))
	for i, action := range actions {
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("platform %q action %d: %w", platform, i, err)
		}
		if seen[action.Label] {
			return nil, fmt.Errorf("platform %q has duplicate action label %q", platform, action.Label)
		}
		seen[action.Label] = true

		action.Command = append([]string(nil), action.Command...)
		action.OutputChecks = append([]types.OutputCheck(nil), action.OutputChecks...)
		copied = append(copied, action)
	}

	return &PlatformHandler{Platform: platform, Actions: copied}, nil
}

// fallbackHandler returns the empty handler used for unknown platforms.
func fallbackHandler(platform string) *PlatformHandler {
	return &PlatformHandler{Platform: platform, Fallback: true}
}

// Selected returns the actions whose category is included in sel, in order.
func (h *PlatformHandler) Selected(sel types.ActionSelection) []types.RemedialAction {
	out := make([]types.RemedialAction, 0, len(h.Actions))
	for _, a := range h.Actions {
		if sel.Includes(a.Category) {
			out = append(out, a)
		}
	}
	return out
}

// CategoryGroup is the actions of one category, in handler order.
type CategoryGroup struct {
	Category types.ActionCategory
	Actions  []types.RemedialAction
}

// Taxonomy groups the handler's actions by category, ordered as
// types.AllCategories. Categories without actions are omitted.
func (h *PlatformHandler) Taxonomy() []CategoryGroup {
	groups := make([]CategoryGroup, 0, len(types.AllCategories()))
	for _, category := range types.AllCategories() {
		var actions []types.RemedialAction
		for _, a := range h.Actions {
			if a.Category == category {
				actions = append(actions, a)
			}
		}
		if len(actions) > 0 {
			groups = append(groups, CategoryGroup{Category: category, Actions: actions})
		}
	}
	return groups
}
