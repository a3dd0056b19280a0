// internal/supervisor/routing/router.go
package routing

import (
	"fmt"
	"strings"

	"supervisor-core/internal/supervisor/types"
	"supervisor-core/pkg/registry"
)

// Router decides which specialists should handle a query. It is built once
// from the specialist catalog and holds no mutable state; routing is a pure
// function of its inputs.
//
// Keyword matching is substring-based and case-insensitive. Short keywords
// will over-match; the accepted tradeoff favors recall, since an unnecessary
// specialist costs one extra call while a missed one loses the answer.
type Router struct {
	specialists []registry.Specialist // catalog registration order
	fallbackID  types.SpecialistID
	affinity    map[string]types.SpecialistID // intent domain -> specialist
}

func NewRouter(reg *registry.SpecialistRegistry) *Router {
	r := &Router{
		specialists: reg.Specialists,
		fallbackID:  types.SpecialistID(reg.FallbackID()),
		affinity:    make(map[string]types.SpecialistID),
	}
	for _, s := range reg.Specialists {
		for _, domain := range s.IntentAffinities {
			r.affinity[strings.ToLower(domain)] = types.SpecialistID(s.ID)
		}
	}
	return r
}

// RouteToSpecialists maps a query (plus prior intent classification) to one
// or more specialists. The result's Specialists list is never empty.
func (r *Router) RouteToSpecialists(intent *types.Intent, queryText string) *types.RoutingResult {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	if normalized == "" {
		return &types.RoutingResult{
			Specialists:     []types.SpecialistID{r.fallbackID},
			IsParallel:      false,
			Rationale:       "Empty query text. Falling back to general agent.",
			MatchedKeywords: []string{},
		}
	}

	matchedIDs, matchedNames, matchedKeywords := r.keywordPass(normalized)

	if len(matchedIDs) > 0 {
		rationale := fmt.Sprintf("Routing to %s based on matched keywords: %s",
			matchedNames[0], strings.Join(matchedKeywords, ", "))
		if len(matchedIDs) > 1 {
			rationale = fmt.Sprintf("Multi-specialist routing to %s based on matched keywords: %s",
				strings.Join(matchedNames, ", "), strings.Join(matchedKeywords, ", "))
		}
		return &types.RoutingResult{
			Specialists:     matchedIDs,
			IsParallel:      len(matchedIDs) > 1,
			Rationale:       rationale,
			MatchedKeywords: matchedKeywords,
		}
	}

	// Intent-affinity fallback: no keyword matched, but a prior intent
	// classification points at a specialist known to handle that category.
	if intent != nil {
		if id, ok := r.affinity[strings.ToLower(intent.Domain)]; ok {
			return &types.RoutingResult{
				Specialists: []types.SpecialistID{id},
				IsParallel:  false,
				Rationale: fmt.Sprintf("No keyword match; intent %q suggests %s.",
					intent.Domain, r.displayName(id)),
				MatchedKeywords: []string{},
			}
		}
	}

	return &types.RoutingResult{
		Specialists:     []types.SpecialistID{r.fallbackID},
		IsParallel:      false,
		Rationale:       "No keyword or intent signal. Falling back to general agent.",
		MatchedKeywords: []string{},
	}
}

// keywordPass tests every non-fallback specialist's keyword table against
// the normalized query. Returned keywords are globally deduplicated but a
// keyword shared by two specialists still routes to both.
func (r *Router) keywordPass(normalized string) ([]types.SpecialistID, []string, []string) {
	var ids []types.SpecialistID
	var names []string
	var keywords []string
	seen := make(map[string]bool)

	for _, s := range r.specialists {
		if s.Fallback {
			continue
		}
		matched := false
		for _, kw := range s.Keywords {
			if strings.Contains(normalized, kw) {
				matched = true
				if !seen[kw] {
					seen[kw] = true
					keywords = append(keywords, kw)
				}
			}
		}
		if matched {
			ids = append(ids, types.SpecialistID(s.ID))
			names = append(names, s.DisplayName)
		}
	}
	return ids, names, keywords
}

// ShouldRouteToSpecialist reports whether the query matches the given
// specialist's keyword table. Ad-hoc check outside the main routing path.
func (r *Router) ShouldRouteToSpecialist(id types.SpecialistID, queryText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	for _, kw := range r.GetSpecialistKeywords(id) {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// GetSpecialistKeywords returns a copy of the specialist's keyword table.
// The fallback specialist has no table and yields an empty slice.
func (r *Router) GetSpecialistKeywords(id types.SpecialistID) []string {
	for _, s := range r.specialists {
		if types.SpecialistID(s.ID) == id {
			out := make([]string, len(s.Keywords))
			copy(out, s.Keywords)
			return out
		}
	}
	return []string{}
}

// GetRoutingRationale renders a routing result into a user-facing string.
func (r *Router) GetRoutingRationale(result *types.RoutingResult) string {
	names := make([]string, 0, len(result.Specialists))
	for _, id := range result.Specialists {
		names = append(names, r.displayName(id))
	}

	switch {
	case len(result.Specialists) == 1 && result.Specialists[0] == r.fallbackID:
		return fmt.Sprintf("Using %s (no specialist matched this query).", names[0])
	case result.IsParallel:
		return fmt.Sprintf("Consulting %d specialists in parallel: %s.", len(names), strings.Join(names, ", "))
	default:
		return fmt.Sprintf("Consulting %s.", names[0])
	}
}

func (r *Router) displayName(id types.SpecialistID) string {
	for _, s := range r.specialists {
		if types.SpecialistID(s.ID) == id {
			return s.DisplayName
		}
	}
	return string(id)
}
