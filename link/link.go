// Package link classifies message text against the configured site
// profiles, deciding whether it references a forum post or thread and
// extracting the canonical post identifier.
package link

import (
	"regexp"
	"strings"

	"forumbot/sites"
)

// Kind identifies what a matched URL points at.
type Kind int

const (
	// Unmatched means no supported forum link was found. Callers treat
	// this as "no preview applicable", never as an error.
	Unmatched Kind = iota
	Post
	Thread
)

func (k Kind) String() string {
	switch k {
	case Post:
		return "post"
	case Thread:
		return "thread"
	default:
		return "unmatched"
	}
}

// Parsed is the classification result. It is built once per message and
// never mutated. PostID is set iff Kind == Post and URL is set.
type Parsed struct {
	Site   *sites.Profile // nil when Unmatched
	Kind   Kind
	URL    string
	PostID string
}

var (
	fragmentRe = regexp.MustCompile(`#post-(\d+)`)
	segmentRe  = regexp.MustCompile(`/(\d+)/`)
)

// Classify scans text for a link to a supported forum post or thread.
// Site selection is by base-URL substring, first configured site wins;
// the registry guarantees bases are mutually exclusive so order cannot
// matter in practice. Within the selected site, post patterns are tried
// in configured order before thread patterns.
func Classify(text string, reg *sites.Registry) Parsed {
	var site *sites.Profile
	for _, p := range reg.Profiles() {
		if strings.Contains(text, p.Host()) {
			site = p
			break
		}
	}
	if site == nil {
		return Parsed{Kind: Unmatched}
	}

	for _, re := range site.PostMatchers() {
		if m := re.FindString(text); m != "" {
			return Parsed{Site: site, Kind: Post, URL: m, PostID: postID(text)}
		}
	}
	for _, re := range site.ThreadMatchers() {
		if m := re.FindString(text); m != "" {
			return Parsed{Site: site, Kind: Thread, URL: m}
		}
	}
	return Parsed{Kind: Unmatched}
}

// postID extracts the canonical post identifier from text. The
// "#post-<n>" fragment form wins; otherwise the first "/<n>/" path
// segment supplies the numeric id.
func postID(text string) string {
	if m := fragmentRe.FindStringSubmatch(text); m != nil {
		return "post-" + m[1]
	}
	if m := segmentRe.FindStringSubmatch(text); m != nil {
		return "post-" + m[1]
	}
	return ""
}
