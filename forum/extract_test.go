package forum

import (
	"context"
	"errors"
	"strings"
	"testing"

	"forumbot/fetcher"
	"forumbot/link"
	"forumbot/sites"
)

// stubGetter serves canned pages to the extractor.
type stubGetter struct {
	status int
	html   string
	err    error
}

func (g *stubGetter) Smart(ctx context.Context, url string) (*fetcher.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &fetcher.Result{Status: g.status, HTML: g.html, FinalURL: url}, nil
}

func eraProfile() *sites.Profile {
	return &sites.Profile{Name: "era", BaseURL: "https://www.resetera.com/", AccentColor: 8343994}
}

func gafProfile() *sites.Profile {
	return &sites.Profile{Name: "gaf", BaseURL: "https://www.neogaf.com/"}
}

const eraPostPage = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Splatoon 2 on sale"/>
<meta property="og:image" content="https://www.resetera.com/logo.png"/>
<meta property="og:site_name" content="ResetEra"/>
</head><body>
<ol>
<li id="post-456" class="message">
  <a class="avatar" href="/members/inkling.77/"><img src="data/avatars/m/0/77.jpg"/></a>
  <a itemprop="name" href="/members/inkling.77/">Inkling</a>
  <abbr class="DateTime" data-time="1514764800">Jan 1, 2018</abbr>
  <div class="messageContent">
    Fresh deal right here.
    <a href="https://example.com/deal">the deal</a>
  </div>
</li>
</ol>
</body></html>`

func TestExtractEraPost(t *testing.T) {
	e := NewExtractor(&stubGetter{status: 200, html: eraPostPage})
	ln := link.Parsed{
		Site:   eraProfile(),
		Kind:   link.Post,
		URL:    "https://www.resetera.com/threads/splatoon.1/#post-456",
		PostID: "post-456",
	}
	post, err := e.Extract(context.Background(), ln)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !post.Found {
		t.Fatal("expected post to be found")
	}
	if post.Title != "Splatoon 2 on sale" {
		t.Errorf("Title = %q", post.Title)
	}
	if post.SiteName != "ResetEra" {
		t.Errorf("SiteName = %q", post.SiteName)
	}
	if post.IconURL != "https://www.resetera.com/logo.png" {
		t.Errorf("IconURL = %q", post.IconURL)
	}
	if post.AuthorName != "Inkling" {
		t.Errorf("AuthorName = %q", post.AuthorName)
	}
	if post.AuthorProfileURL != "https://www.resetera.com/members/inkling.77/" {
		t.Errorf("AuthorProfileURL = %q", post.AuthorProfileURL)
	}
	if post.AuthorAvatarURL != "https://www.resetera.com/data/avatars/m/0/77.jpg" {
		t.Errorf("AuthorAvatarURL = %q", post.AuthorAvatarURL)
	}
	if post.Timestamp.IsZero() || post.Timestamp.Unix() != 1514764800 {
		t.Errorf("Timestamp = %v", post.Timestamp)
	}
	if !strings.Contains(post.BodyText, "Fresh deal right here.") {
		t.Errorf("BodyText = %q", post.BodyText)
	}
	if !strings.Contains(post.BodyText, "[the deal](https://example.com/deal)") {
		t.Errorf("expected markdown link in body, got %q", post.BodyText)
	}
	// The avatar was removed before content extraction.
	if strings.Contains(post.BodyText, "avatars") {
		t.Errorf("avatar leaked into body: %q", post.BodyText)
	}
}

const gafThreadPage = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Introduce yourself"/>
<meta property="og:site_name" content="NeoGAF"/>
<link rel="shortcut icon" href="/favicon.ico"/>
</head><body>
<article class="message" data-content="post-1">
  <div><span class="thread-op">OP</span></div>
  <a itemprop="name" href="/members/someone.1/">Someone</a>
  <time datetime="2020-05-01T10:00:00Z">May 1, 2020</time>
  <div class="bbWrapper">Welcome thread text.</div>
</article>
</body></html>`

func TestExtractGafThreadStarter(t *testing.T) {
	e := NewExtractor(&stubGetter{status: 200, html: gafThreadPage})
	ln := link.Parsed{
		Site: gafProfile(),
		Kind: link.Thread,
		URL:  "https://www.neogaf.com/threads/introduce-yourself.1460728/",
	}
	post, err := e.Extract(context.Background(), ln)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !post.Found {
		t.Fatal("expected thread-starting post to be found")
	}
	if post.AuthorName != "Someone" {
		t.Errorf("AuthorName = %q", post.AuthorName)
	}
	if !strings.Contains(post.BodyText, "Welcome thread text.") {
		t.Errorf("BodyText = %q", post.BodyText)
	}
	if post.Timestamp.IsZero() {
		t.Error("expected datetime attribute to be parsed")
	}
	// og:image absent, icon link fallback resolved against the base.
	if post.IconURL != "https://www.neogaf.com/favicon.ico" {
		t.Errorf("IconURL = %q", post.IconURL)
	}
}

func TestExtractPostNotFound(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="T"/>
<meta property="og:site_name" content="S"/>
</head><body><p>post was deleted</p></body></html>`
	e := NewExtractor(&stubGetter{status: 200, html: page})
	ln := link.Parsed{Site: eraProfile(), Kind: link.Post, URL: "https://www.resetera.com/x", PostID: "post-1"}
	post, err := e.Extract(context.Background(), ln)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if post.Found {
		t.Error("expected Found == false for a missing post node")
	}
}

func TestExtractMalformedPage(t *testing.T) {
	e := NewExtractor(&stubGetter{status: 200, html: "<html><body>no meta</body></html>"})
	ln := link.Parsed{Site: eraProfile(), Kind: link.Thread, URL: "https://www.resetera.com/x"}
	_, err := e.Extract(context.Background(), ln)
	if !errors.Is(err, ErrPageMalformed) {
		t.Fatalf("expected ErrPageMalformed, got %v", err)
	}
}

func TestExtractUnavailable(t *testing.T) {
	e := NewExtractor(&stubGetter{status: 503, html: ""})
	ln := link.Parsed{Site: eraProfile(), Kind: link.Thread, URL: "https://www.resetera.com/x"}
	if _, err := e.Extract(context.Background(), ln); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for non-200, got %v", err)
	}

	e = NewExtractor(&stubGetter{err: errors.New("connection refused")})
	if _, err := e.Extract(context.Background(), ln); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for transport error, got %v", err)
	}
}

func TestExtractRejectsUnmatched(t *testing.T) {
	e := NewExtractor(&stubGetter{status: 200, html: ""})
	if _, err := e.Extract(context.Background(), link.Parsed{Kind: link.Unmatched}); err == nil {
		t.Fatal("expected error for unmatched link")
	}
}
