package dashboard

import (
	"strings"
	"sync"
)

// Theme is the page color scheme, shared by every element and the chart.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme accepts "dark" or "light", case-insensitively and with the
// surrounding quotes client hints use.
func ParseTheme(s string) (Theme, bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"`)) {
	case string(ThemeDark):
		return ThemeDark, true
	case string(ThemeLight):
		return ThemeLight, true
	default:
		return "", false
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeState owns the dashboard theme. The initial value is taken once from
// the host's color-scheme preference; afterwards only Toggle/Set change it.
// Until a preference arrives the fallback is shown but not fixed.
type ThemeState struct {
	mu       sync.Mutex
	theme    Theme
	resolved bool
}

// NewThemeState returns a state that falls back to fallback when no
// preference is ever seen.
func NewThemeState(fallback Theme) *ThemeState {
	if fallback != ThemeLight {
		fallback = ThemeDark
	}
	return &ThemeState{theme: fallback}
}

// Resolve fixes the theme from the first valid preference hint. A missing or
// unknown hint leaves it unresolved. Once resolved, or after Toggle/Set, hints
// are ignored.
func (s *ThemeState) Resolve(hint string) Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved {
		if t, ok := ParseTheme(hint); ok {
			s.theme = t
			s.resolved = true
		}
	}
	return s.theme
}

// Resolved reports whether a preference or a user choice has fixed the theme.
func (s *ThemeState) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Current returns the theme without resolving it.
func (s *ThemeState) Current() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Toggle flips the theme and returns the new one.
func (s *ThemeState) Toggle() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = s.theme.Toggle()
	s.resolved = true
	return s.theme
}

// Set picks a theme explicitly.
func (s *ThemeState) Set(t Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = t
	s.resolved = true
}
