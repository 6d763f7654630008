package reconciliation

import "github.com/fortuna/jadwal/internal/schedule"

// MergeServers appends incoming servers whose URL is not already present.
// Existing order is preserved and labels play no part in identity.
func MergeServers(existing, incoming []schedule.Server) []schedule.Server {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]schedule.Server, 0, len(existing)+len(incoming))
	for _, s := range existing {
		if _, dup := seen[s.URL]; dup {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	for _, s := range incoming {
		if _, dup := seen[s.URL]; dup {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}

// DedupeServers drops repeated URLs from a single list, first occurrence wins
func DedupeServers(servers []schedule.Server) []schedule.Server {
	return MergeServers(nil, servers)
}
