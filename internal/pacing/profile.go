// internal/pacing/profile.go
package pacing

import (
	"fmt"
	"sort"
	"time"
)

// Profile holds the break and reading-pause ranges of a pacing mode.
type Profile struct {
	Name       string
	BreakMin   time.Duration
	BreakMax   time.Duration
	ReadingMin time.Duration
	ReadingMax time.Duration
}

const (
	ProfileFast = "fast"
	ProfileSlow = "slow"
)

var profiles = map[string]Profile{
	ProfileFast: {
		Name:       ProfileFast,
		BreakMin:   5 * time.Minute,
		BreakMax:   15 * time.Minute,
		ReadingMin: 30 * time.Second,
		ReadingMax: 150 * time.Second,
	},
	ProfileSlow: {
		Name:       ProfileSlow,
		BreakMin:   10 * time.Minute,
		BreakMax:   30 * time.Minute,
		ReadingMin: 60 * time.Second,
		ReadingMax: 300 * time.Second,
	},
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = ProfileFast
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown pacing profile %q (valid: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the known profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
