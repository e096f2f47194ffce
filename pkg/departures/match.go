package departures

import (
	"strings"
)

// MatchStop finds the served stop a user typed. An exact name wins, then a
// case insensitive match, then the shortest name containing the query.
func MatchStop(query string, served []string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}

	for _, stop := range served {
		if stop == query {
			return stop, true
		}
	}

	for _, stop := range served {
		if strings.EqualFold(stop, query) {
			return stop, true
		}
	}

	lowered := strings.ToLower(query)
	best := ""
	for _, stop := range served {
		if !strings.Contains(strings.ToLower(stop), lowered) {
			continue
		}
		if best == "" || len(stop) < len(best) {
			best = stop
		}
	}

	return best, best != ""
}
