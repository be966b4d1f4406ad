package domain

import (
	"sort"
	"strings"
)

// monthTokens marks where the date portion of an hourly round slug
// begins. Polymarket up-or-down slugs embed the full month name:
// "bitcoin-up-or-down-august-22-3pm-et".
var monthTokens = map[string]struct{}{
	"january": {}, "february": {}, "march": {}, "april": {},
	"may": {}, "june": {}, "july": {}, "august": {},
	"september": {}, "october": {}, "november": {}, "december": {},
}

// SeriesKey strips the embedded date/time token from a round id so
// every hour of the same recurring market shares one key. Ids without
// a recognizable date token are their own series.
func SeriesKey(market string) string {
	parts := strings.Split(market, "-")
	for i, p := range parts {
		if i == 0 {
			continue
		}
		if _, ok := monthTokens[strings.ToLower(p)]; ok {
			return strings.Join(parts[:i], "-")
		}
	}
	return market
}

// GroupRounds buckets rounds by series, most recent activity first,
// both across groups and within each group.
func GroupRounds(rounds []RoundInfo) []RoundGroup {
	byKey := make(map[string]*RoundGroup)
	order := make([]*RoundGroup, 0)
	for _, r := range rounds {
		key := SeriesKey(r.Market)
		g, ok := byKey[key]
		if !ok {
			g = &RoundGroup{Series: key}
			byKey[key] = g
			order = append(order, g)
		}
		g.Rounds = append(g.Rounds, r)
	}

	for _, g := range order {
		sort.Slice(g.Rounds, func(i, j int) bool {
			return g.Rounds[i].LastSeen.After(g.Rounds[j].LastSeen)
		})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].Rounds[0].LastSeen.After(order[j].Rounds[0].LastSeen)
	})

	out := make([]RoundGroup, len(order))
	for i, g := range order {
		out[i] = *g
	}
	return out
}
