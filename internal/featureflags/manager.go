// Package featureflags evaluates runtime feature toggles.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Manager holds the parsed flag table. Flags come in as a comma-separated
// key=value list, e.g. "typing=on,presence=on,reactions=25%"; values are
// on/true/1, off/false/0, or N% for a deterministic per-user rollout.
// A nil Manager answers false for everything.
type Manager struct {
	flags map[string]string
}

// NewManager parses the flag list. Malformed entries are skipped, not
// fatal: a typo in one flag must not take the others down.
func NewManager(raw string) *Manager {
	flags := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := parseEntry(entry)
		if ok {
			flags[name] = value
		}
	}
	return &Manager{flags: flags}
}

func parseEntry(entry string) (name, value string, ok bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", "", false
	}
	parts := strings.SplitN(entry, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	name = normalize(parts[0])
	value = normalize(parts[1])
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

// Enabled reports whether the named flag is on for this user. Percentage
// values bucket by a stable hash of (flag, user), so a user stays in or
// out of a rollout across requests; userID 0 never enters a rollout.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := parsePercent(value)
	switch {
	case !ok, pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

func parsePercent(value string) (int, bool) {
	if !strings.HasSuffix(value, "%") {
		return 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return 0, false
	}
	return pct, true
}

// Raw returns a copy of the parsed flag table.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every flag for one user, for the flags endpoint.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
