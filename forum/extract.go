package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"forumbot/fetcher"
	"forumbot/link"
)

// Getter is the page-retrieval collaborator. *fetcher.Fetcher satisfies it.
type Getter interface {
	Smart(ctx context.Context, url string) (*fetcher.Result, error)
}

// Extractor turns a classified link into an extracted, normalized Post.
type Extractor struct {
	get Getter
}

// NewExtractor creates an Extractor using the given page getter.
func NewExtractor(get Getter) *Extractor {
	return &Extractor{get: get}
}

// Extract fetches the linked page, locates the post node and runs the
// normalization pipeline over it. Returns ErrUnavailable on fetch
// failure and ErrPageMalformed when required meta tags are absent. A
// page where the post node cannot be located yields Found == false with
// a nil error; callers log and drop it.
func (e *Extractor) Extract(ctx context.Context, ln link.Parsed) (*Post, error) {
	if ln.Kind == link.Unmatched {
		return nil, fmt.Errorf("cannot extract from an unmatched link")
	}

	res, err := e.get.Smart(ctx, ln.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	post := &Post{
		SourceURL: ln.URL,
		Site:      ln.Site,
		Kind:      ln.Kind,
	}
	if err := e.pageMeta(doc, post); err != nil {
		return nil, err
	}

	node := locatePost(doc, ln)
	if node == nil {
		return post, nil // Found stays false
	}
	post.Found = true

	locateAuthor(node, ln.Site.BaseURL, post)
	post.Timestamp = locateTimestamp(node)

	n := newNormalizer(conventions[ln.Site.Name], ln.Site.BaseURL)
	post.BodyText = n.Run(node)
	post.Images = n.Images
	post.Videos = n.Videos
	post.Spoilers = n.Spoilers

	return post, nil
}

// pageMeta reads the open-graph tags shared by all supported engines.
// Title and site name are required; the icon falls back to the page's
// icon link tag.
func (e *Extractor) pageMeta(doc *goquery.Document, post *Post) error {
	post.Title = metaContent(doc, "og:title")
	post.SiteName = metaContent(doc, "og:site_name")
	if post.Title == "" || post.SiteName == "" {
		return ErrPageMalformed
	}
	post.IconURL = metaContent(doc, "og:image")
	if post.IconURL == "" {
		if href, ok := doc.Find(`link[rel*='icon']`).First().Attr("href"); ok {
			post.IconURL = resolveURL(post.Site.BaseURL, href)
		}
	}
	return nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf("meta[property='%s']", property)).First().Attr("content")
	return content
}

// locatePost finds the post node using the site's engine rules: the
// uniquely-identified node for post links, the thread-starting post for
// thread links.
func locatePost(doc *goquery.Document, ln link.Parsed) *goquery.Selection {
	conv := conventions[ln.Site.Name]
	if conv == nil {
		return nil
	}
	if ln.Kind == link.Post {
		return conv.postByID(doc, ln.PostID)
	}
	return conv.threadStarter(doc)
}

// locateAuthor fills the author fields from the post node. The avatar
// image is removed from the subtree so later content extraction does not
// pick it up.
func locateAuthor(node *goquery.Selection, base string, post *Post) {
	name := node.Find(`a[itemprop='name']`).First()
	if name.Length() > 0 {
		post.AuthorName = strings.TrimSpace(name.Text())
		if href, ok := name.Attr("href"); ok {
			post.AuthorProfileURL = resolveURL(base, href)
		}
	}
	avatar := node.Find("a.avatar img").First()
	if avatar.Length() > 0 {
		if src, ok := avatar.Attr("src"); ok {
			post.AuthorAvatarURL = resolveURL(base, src)
		}
		avatar.Remove()
	}
}

// locateTimestamp reads the machine-readable post time: a unix epoch in
// a data-time attribute, or an RFC 3339 datetime attribute. Absence is
// non-fatal and yields the zero time.
func locateTimestamp(node *goquery.Selection) time.Time {
	if raw, ok := node.Find("[data-time]").First().Attr("data-time"); ok {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	if raw, ok := node.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.Local()
		}
	}
	return time.Time{}
}

// resolveURL resolves href against base, leaving absolute URLs alone.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
