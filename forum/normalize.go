package forum

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SpoilerMask replaces spoiler blocks in preview text. The original
// spoiler text is kept aside so a reaction control can reveal it.
const SpoilerMask = "[Spoiler removed - react to reveal]"

// saidMarker splits a quote attribution into author name and the rest.
const saidMarker = "said:"

var newlineRuns = regexp.MustCompile(`\n+`)

// normalizer applies the ordered content pipeline to a post's subtree.
// Each stage mutates the tree in place and/or records side-channel
// output; zero matches at any stage is a no-op. Order matters: images
// must be recorded before destructive removal, quotes and spoilers must
// consume their links before the global link pass, and text
// materialization runs last.
type normalizer struct {
	conv *convention
	base string

	Images   []string
	Videos   []string
	Spoilers []string
}

func newNormalizer(conv *convention, base string) *normalizer {
	return &normalizer{conv: conv, base: base}
}

// Run executes the pipeline over the post node and returns the final
// body text.
func (n *normalizer) Run(post *goquery.Selection) string {
	n.socialEmbeds(post)
	n.formatImages(post)
	n.videoEmbeds(post)
	n.formatQuotes(post)
	n.maskSpoilers(post)

	content := post.Find(n.conv.content).First()
	if content.Length() == 0 {
		content = post
	}
	n.markdownLinks(content)
	return materialize(content)
}

// socialEmbeds rewrites tweet-embed iframes as plain permalink URLs
// reconstructed from the id embedded in the iframe source.
func (n *normalizer) socialEmbeds(post *goquery.Selection) {
	post.Find(`iframe[data-s9e-mediaembed='twitter']`).Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		parts := strings.SplitN(src, ".html#", 2)
		if len(parts) != 2 || parts[1] == "" {
			return
		}
		replaceWithText(s, "https://twitter.com/user/status/"+parts[1])
	})
}

// formatImages records every content image's URL. The older engine keeps
// the URL inline where the image stood; the newer one removes the node.
// A second pass rewrites inline smilie images as the nth recorded
// content-image URL, in encounter order, for the engine that reuses
// gallery images as emoji.
func (n *normalizer) formatImages(post *goquery.Selection) {
	post.Find(`img[class*='bb']`).Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			s.Remove()
			return
		}
		n.Images = append(n.Images, src)
		if n.conv.inlineImageURLs {
			replaceWithText(s, src)
		} else {
			s.Remove()
		}
	})
	if !n.conv.smilieReuse {
		return
	}
	count := 0
	post.Find("img.smilie").Each(func(i int, s *goquery.Selection) {
		if count < len(n.Images) {
			replaceWithText(s, n.Images[count]+"\n")
			count++
		} else {
			s.Remove()
		}
	})
}

// videoEmbeds replaces embedded video players with their player URL and
// records it.
func (n *normalizer) videoEmbeds(post *goquery.Selection) {
	post.Find(n.conv.video).Each(func(i int, s *goquery.Selection) {
		src, ok := s.Find("iframe").First().Attr("src")
		if !ok {
			return
		}
		n.Videos = append(n.Videos, src)
		replaceWithText(s, src)
	})
}

// formatQuotes rewrites quote attributions as markdown links where the
// original post is linked, and wraps quoted content in code fences.
// Markdown links are unreadable inside code fences, which is why
// attribution runs before the quote body is fenced and the global link
// pass runs after.
func (n *normalizer) formatQuotes(post *goquery.Selection) {
	conv := n.conv
	if conv.quoteBlock == "" {
		post.Find(conv.quoteAttribution).Each(func(i int, s *goquery.Selection) {
			n.attributeQuote(s)
		})
		post.Find(conv.quoteContent).Each(func(i int, s *goquery.Selection) {
			replaceWithText(s, fence(s.Text()))
		})
		post.Find(conv.quoteExpand).Remove()
		return
	}
	post.Find(conv.quoteBlock).Each(func(i int, block *goquery.Selection) {
		if attribution := block.Find(conv.quoteAttribution).First(); attribution.Length() > 0 {
			n.attributeQuote(attribution)
		}
		if quote := block.Find(conv.quoteContent).First(); quote.Length() > 0 {
			replaceWithText(quote, fence(quote.Text()))
		}
		block.Find(conv.quoteExpand).Remove()
	})
}

// attributeQuote rewrites one attribution node. The author name is the
// text before the "said:" marker; a link to the quoted post, when
// present, becomes a markdown link.
func (n *normalizer) attributeQuote(s *goquery.Selection) {
	name := strings.TrimSpace(strings.SplitN(s.Text(), saidMarker, 2)[0])
	var href string
	if n.conv.attributionHrefSelf {
		href, _ = s.Attr("href")
	} else {
		href, _ = s.Find("a[href]").First().Attr("href")
	}
	if href != "" {
		replaceWithText(s, fmt.Sprintf("[%s %s](%s)", name, saidMarker, resolveURL(n.base, href)))
	} else {
		replaceWithText(s, fmt.Sprintf("%s %s", name, saidMarker))
	}
}

// maskSpoilers records each spoiler's text (links already
// markdownified) and replaces the node with the mask string. Both node
// shapes the engines produce are handled in one pass so the recorded
// spoilers keep document order regardless of shape.
func (n *normalizer) maskSpoilers(post *goquery.Selection) {
	post.Find("div.bbCodeSpoiler, span.bbCodeInlineSpoiler").Each(func(i int, s *goquery.Selection) {
		content := s
		if s.Is("div.bbCodeSpoiler") {
			s.Find("button.bbCodeSpoiler-button").Remove()
			if c := s.Find("div.bbCodeSpoiler-content").First(); c.Length() > 0 {
				content = c
			}
		}
		n.markdownLinks(content)
		if text := strings.TrimSpace(content.Text()); text != "" {
			n.Spoilers = append(n.Spoilers, text)
		}
		replaceWithText(s, SpoilerMask)
	})
}

// markdownLinks replaces every hyperlink with visible text by its
// markdown form. It runs as the global pass over the post body and is
// reused for spoiler sub-content before masking.
func (n *normalizer) markdownLinks(sel *goquery.Selection) {
	sel.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		href, _ := s.Attr("href")
		replaceWithText(s, fmt.Sprintf("[%s](%s)", text, href))
	})
}

// materialize collapses the subtree to plain text: scripts removed,
// runs of newlines collapsed, one leading newline trimmed.
func materialize(content *goquery.Selection) string {
	content.Find("script").Remove()
	text := content.Text()
	text = newlineRuns.ReplaceAllString(text, "\n")
	text = strings.TrimPrefix(text, "\n")
	return text
}

func fence(text string) string {
	return "```" + strings.TrimSpace(text) + "```"
}

// replaceWithText swaps a node for a bare text node so markdown and URLs
// survive the final text materialization untouched.
func replaceWithText(s *goquery.Selection, text string) {
	s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: text})
}
