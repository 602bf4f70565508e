package forum

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// convention carries the node-selection rules for one forum engine.
// The two supported engines differ only in selectors, never in the
// shape of the extraction algorithm.
type convention struct {
	// postByID returns the uniquely-identified post node.
	postByID func(doc *goquery.Document, id string) *goquery.Selection

	// threadStarter returns the first post marked as thread-opening.
	threadStarter func(doc *goquery.Document) *goquery.Selection

	// content selects the post body within the post node.
	content string

	// inlineImageURLs keeps a content image's URL in the text where the
	// image stood; otherwise the node is removed after its URL is
	// recorded.
	inlineImageURLs bool

	// smilieReuse rewrites small inline smilie images as the nth
	// previously recorded content-image URL.
	smilieReuse bool

	// video selects embedded video player wrappers.
	video string

	// quoteBlock selects a combined quote block holding both
	// attribution and content. Empty means attribution and content are
	// separate top-level nodes (older engine).
	quoteBlock string

	// quoteAttribution selects the quote attribution node, either
	// within a quoteBlock or across the whole post.
	quoteAttribution string

	// quoteContent selects the quoted text node.
	quoteContent string

	// quoteExpand selects the "expand quote" affordance to strip.
	quoteExpand string

	// attributionHrefSelf means the attribution node itself carries the
	// link to the original post; otherwise the first a[href] inside it
	// does.
	attributionHrefSelf bool
}

// conventions maps site profile names to their engine rules.
var conventions = map[string]*convention{
	"era": {
		postByID: func(doc *goquery.Document, id string) *goquery.Selection {
			return firstOrNil(doc.Find(fmt.Sprintf("li#%s", id)))
		},
		threadStarter: func(doc *goquery.Document) *goquery.Selection {
			var starter *goquery.Selection
			doc.Find("li.message").EachWithBreak(func(i int, s *goquery.Selection) bool {
				if s.Find(`acronym[title='Original Poster']`).Length() > 0 {
					starter = s
					return false
				}
				return true
			})
			return starter
		},
		content:          "div.messageContent",
		inlineImageURLs:  true,
		video:            `span[data-s9e-mediaembed='youtube']`,
		quoteAttribution: "div.attribution.type",
		quoteContent:     "div.quote",
		quoteExpand:      "div.quoteExpand",
	},
	"gaf": {
		postByID: func(doc *goquery.Document, id string) *goquery.Selection {
			return firstOrNil(doc.Find(fmt.Sprintf("article[data-content='%s']", id)))
		},
		threadStarter: func(doc *goquery.Document) *goquery.Selection {
			op := doc.Find("span.thread-op").First()
			if op.Length() == 0 {
				return nil
			}
			return op.Parent().Parent()
		},
		content:             "div.bbWrapper",
		smilieReuse:         true,
		video:               "div.bbMediaWrapper",
		quoteBlock:          `div[class*='bbCodeBlock'][class*='quote']`,
		quoteAttribution:    "a.bbCodeBlock-sourceJump",
		quoteContent:        "div.bbCodeBlock-expandContent",
		quoteExpand:         "div.bbCodeBlock-expandLink",
		attributionHrefSelf: true,
	},
}

func firstOrNil(s *goquery.Selection) *goquery.Selection {
	if s.Length() == 0 {
		return nil
	}
	return s.First()
}
