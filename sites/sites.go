// Package sites provides the registry of supported forum engines.
// Each profile describes one site's URL shapes and styling so that
// site-specific knowledge stays out of the core pipeline.
package sites

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile describes one supported forum site.
type Profile struct {
	// Name is a short key for the site, e.g. "era".
	Name string

	// BaseURL is the prefix used to resolve relative links, e.g.
	// "https://www.resetera.com/". Its host is the substring that
	// identifies the site in message text.
	BaseURL string

	// AccentColor is the embed color used for previews of this site.
	// Zero means the neutral default.
	AccentColor int

	// PostPatterns are regular expressions matching URLs that point at a
	// single post, tried in order.
	PostPatterns []string

	// ThreadPatterns are regular expressions matching URLs that point at a
	// whole thread, tried in order after the post patterns.
	ThreadPatterns []string

	postRes   []*regexp.Regexp
	threadRes []*regexp.Regexp
}

// compile turns the pattern strings into matchers. Called by NewRegistry
// so a bad pattern fails at startup instead of silently never matching.
func (p *Profile) compile() error {
	p.postRes = make([]*regexp.Regexp, 0, len(p.PostPatterns))
	for _, pat := range p.PostPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("site %q: post pattern %q: %w", p.Name, pat, err)
		}
		p.postRes = append(p.postRes, re)
	}
	p.threadRes = make([]*regexp.Regexp, 0, len(p.ThreadPatterns))
	for _, pat := range p.ThreadPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("site %q: thread pattern %q: %w", p.Name, pat, err)
		}
		p.threadRes = append(p.threadRes, re)
	}
	return nil
}

// PostMatchers returns the compiled post patterns in configured order.
func (p *Profile) PostMatchers() []*regexp.Regexp { return p.postRes }

// ThreadMatchers returns the compiled thread patterns in configured order.
func (p *Profile) ThreadMatchers() []*regexp.Regexp { return p.threadRes }

// Host returns the bare host portion of BaseURL, the substring checked
// against incoming message text.
func (p *Profile) Host() string {
	h := p.BaseURL
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	h = strings.TrimPrefix(h, "www.")
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	return h
}

// Registry holds site profiles in configured order.
// Profiles are loaded once at startup and never mutated.
type Registry struct {
	profiles []*Profile
	byName   map[string]*Profile
}

// NewRegistry builds a registry, validating that the base URLs are
// mutually exclusive. Overlapping bases would make match order
// significant, which the classifier deliberately does not define.
func NewRegistry(profiles []*Profile) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Profile)}
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("site profile with empty name")
		}
		if p.Host() == "" {
			return nil, fmt.Errorf("site %q: empty base url", p.Name)
		}
		if _, ok := r.byName[p.Name]; ok {
			return nil, fmt.Errorf("duplicate site profile %q", p.Name)
		}
		if err := p.compile(); err != nil {
			return nil, err
		}
		for _, other := range r.profiles {
			if strings.Contains(p.Host(), other.Host()) || strings.Contains(other.Host(), p.Host()) {
				return nil, fmt.Errorf("site %q base url overlaps site %q", p.Name, other.Name)
			}
		}
		r.profiles = append(r.profiles, p)
		r.byName[p.Name] = p
	}
	return r, nil
}

// Profiles returns the profiles in configured order.
func (r *Registry) Profiles() []*Profile {
	return r.profiles
}

// ByName looks a profile up by its short key. Returns nil if unknown.
func (r *Registry) ByName(name string) *Profile {
	return r.byName[name]
}

// Names returns the profile names in configured order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		names[i] = p.Name
	}
	return names
}
