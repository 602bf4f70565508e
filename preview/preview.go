// Package preview assembles the display artifact for an extracted forum
// post: paginated body text at two size tiers plus the embed fields the
// chat platform renders.
package preview

import (
	"strings"

	"forumbot/forum"
	"forumbot/platform"
)

// Tier selects how many display lines the artifact shows.
type Tier int

const (
	TierStandard Tier = iota
	TierMaximized
)

// DefaultColor is the neutral embed color used when a site has no
// accent configured.
const DefaultColor = 0x2f3136

// Limits are the display tunables, supplied by configuration.
type Limits struct {
	MaxChars   int
	StdLines   int
	MaxLines   int
	LineLength int
}

// Artifact is the finished preview content. Everything is derived from
// the source post; only the size tier changes after construction, and
// Text is recomputed from Lines whenever it does.
type Artifact struct {
	Title      string
	Lines      []string // pagination units
	AuthorName string
	AuthorIcon string
	AuthorURL  string
	LeadImage  string
	Color      int
	FooterText string
	FooterIcon string
	SourceURL  string

	tier   Tier
	limits Limits
}

// Build derives an artifact from an extracted post at the given tier.
func Build(post *forum.Post, tier Tier, limits Limits) *Artifact {
	a := &Artifact{
		Title:      post.Title,
		Lines:      Paginate(post.BodyText, limits.LineLength),
		AuthorName: post.AuthorName,
		AuthorIcon: post.AuthorAvatarURL,
		AuthorURL:  post.AuthorProfileURL,
		Color:      DefaultColor,
		FooterText: post.SiteName,
		FooterIcon: post.IconURL,
		SourceURL:  post.SourceURL,
		tier:       tier,
		limits:     limits,
	}
	if len(post.Images) > 0 {
		a.LeadImage = post.Images[0]
	}
	if post.Site != nil && post.Site.AccentColor != 0 {
		a.Color = post.Site.AccentColor
	}
	return a
}

// Note builds a minimal artifact for auxiliary messages such as help
// panels and spoiler reveals. It starts maximized so the whole text
// shows within the configured bounds.
func Note(title, text string, limits Limits) *Artifact {
	return &Artifact{
		Title:  title,
		Lines:  Paginate(text, limits.LineLength),
		Color:  DefaultColor,
		tier:   TierMaximized,
		limits: limits,
	}
}

// Tier returns the current size tier.
func (a *Artifact) Tier() Tier { return a.tier }

// Resize switches the size tier and reports whether the rendered text
// changed. Callers skip the message edit when it did not.
func (a *Artifact) Resize(tier Tier) bool {
	if a.tier == tier {
		return false
	}
	before := a.Text()
	a.tier = tier
	return a.Text() != before
}

// Text renders the artifact body at the current tier: the windowed
// lines, bounded by MaxChars, with balanced code fences and a
// continuation marker when lines were cut off.
func (a *Artifact) Text() string {
	n := a.window()
	windowed := SelectWindow(a.Lines, a.tier, a.limits.StdLines, a.limits.MaxLines)
	return FinalizeText(windowed, a.limits.MaxChars, len(a.Lines) > n)
}

func (a *Artifact) window() int {
	n := a.limits.StdLines
	if a.tier == TierMaximized {
		n = a.limits.MaxLines
	}
	if n > len(a.Lines) {
		n = len(a.Lines)
	}
	return n
}

// Embed converts the artifact into the platform's embed shape.
func (a *Artifact) Embed() platform.Embed {
	return platform.Embed{
		Title:       a.Title,
		Description: a.Text(),
		URL:         a.SourceURL,
		Color:       a.Color,
		Author: platform.EmbedAuthor{
			Name:    a.AuthorName,
			IconURL: a.AuthorIcon,
			URL:     a.AuthorURL,
		},
		ImageURL: a.LeadImage,
		Footer: platform.EmbedFooter{
			Text:    a.FooterText,
			IconURL: a.FooterIcon,
		},
	}
}

// Paginate splits text into display lines. Each unit is a natural
// newline-delimited line when it fits (length counted including the
// trailing newline), otherwise a hard break at lineLength-1 characters.
// Every returned line is at most lineLength characters, and joining the
// lines reconstructs the input.
func Paginate(text string, lineLength int) []string {
	if lineLength < 2 {
		lineLength = 2
	}
	var lines []string
	rest := []rune(text)
	for len(rest) > 0 {
		line := rest
		for i, r := range rest {
			if r == '\n' {
				line = rest[:i+1]
				break
			}
		}
		if len(line) > lineLength {
			line = rest[:lineLength-1]
		}
		lines = append(lines, string(line))
		rest = rest[len(line):]
	}
	return lines
}

// SelectWindow joins the first stdLines or maxLines display lines,
// clamped to what is available.
func SelectWindow(lines []string, tier Tier, stdLines, maxLines int) string {
	n := stdLines
	if tier == TierMaximized {
		n = maxLines
	}
	if n > len(lines) {
		n = len(lines)
	}
	var sb strings.Builder
	for _, line := range lines[:n] {
		sb.WriteString(line)
	}
	return sb.String()
}

// FinalizeText bounds the windowed text to maxChars and keeps
// triple-backtick fences balanced. Closing a fence may push the result
// up to 3 characters past maxChars; that is the documented tradeoff.
// hasMore appends the continuation marker.
func FinalizeText(windowed string, maxChars int, hasMore bool) string {
	runes := []rune(windowed)
	if len(runes) > maxChars {
		windowed = string(runes[:maxChars])
	}
	if strings.Count(windowed, "```")%2 != 0 {
		windowed += "```"
	}
	if hasMore {
		windowed += "\n*Continued...*"
	}
	return windowed
}
