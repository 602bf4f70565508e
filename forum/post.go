// Package forum fetches forum pages and extracts a single post from
// them, normalizing its HTML into compact preview text plus side lists
// of image, video and spoiler content.
package forum

import (
	"errors"
	"time"

	"forumbot/link"
	"forumbot/sites"
)

// Post is the extracted, normalized content of one forum post. It is
// built once per fetch and not mutated afterwards. A post whose node was
// not present in the fetched page has Found == false and no other fields
// set.
type Post struct {
	Found bool

	Title    string
	SiteName string
	IconURL  string

	AuthorName       string
	AuthorAvatarURL  string
	AuthorProfileURL string

	// Timestamp is zero when the page carried no machine-readable time.
	Timestamp time.Time

	BodyText string
	Images   []string
	Videos   []string
	Spoilers []string

	SourceURL string
	Site      *sites.Profile
	Kind      link.Kind
}

// ErrUnavailable reports a non-200 response or transport failure. The
// pipeline drops the message; there is no retry.
var ErrUnavailable = errors.New("page unavailable")

// ErrPageMalformed reports a fetched page missing the required metadata
// tags (title, site name).
var ErrPageMalformed = errors.New("page missing required meta tags")
