// Package featureflags evaluates runtime toggles read from FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// MediaThumbnails writes a WebP thumbnail next to every stored avatar or post image.
	MediaThumbnails = "media_thumbnails"
)

// Set holds flags parsed from a comma-separated list of name=value pairs,
// e.g. "media_thumbnails=on,new_feed=25%".
type Set struct {
	values map[string]string
}

// Parse builds a Set. Malformed pairs are skipped.
func Parse(raw string) *Set {
	values := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return &Set{values: values}
}

// On reports whether name is switched on for everyone.
func (s *Set) On(name string) bool {
	return s.For(name, 0)
}

// For evaluates name for one account. Values are on/true/1, off/false/0, or
// N% for a deterministic per-account rollout. A percentage never enables a
// flag for account 0.
func (s *Set) For(name string, accountID uint) bool {
	if s == nil {
		return false
	}
	value, ok := s.values[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || !strings.HasSuffix(value, "%") {
		return false
	}
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	case accountID == 0:
		return false
	}
	return bucket(name, accountID) < pct
}

// Names returns the configured flag names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot evaluates every configured flag for one account.
func (s *Set) Snapshot(accountID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range s.Names() {
		out[name] = s.For(name, accountID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, accountID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), accountID)
	return int(h.Sum32() % 100)
}
