package forum

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func postNode(t *testing.T, fragment string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	sel := doc.Find("#fixture")
	if sel.Length() == 0 {
		t.Fatal("fixture node missing")
	}
	return sel
}

func TestQuoteAttributionWithLink(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="attribution type">Chummer said: <a href="goto/post?id=99">&uarr;</a></div>
<div class="quote">
  best game of the year
</div>
<div class="quoteExpand">Click to expand...</div>
<div class="messageContent">my reply</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if !strings.Contains(text, "[Chummer said:](https://www.resetera.com/goto/post?id=99)") {
		t.Errorf("attribution link missing: %q", text)
	}
	if !strings.Contains(text, "```best game of the year```") {
		t.Errorf("fenced quote missing: %q", text)
	}
	if strings.Contains(text, "Click to expand") {
		t.Errorf("expand affordance survived: %q", text)
	}
}

func TestQuoteAttributionWithoutLink(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="attribution type">Chummer said:</div>
<div class="quote">ok</div>
<div class="messageContent">x</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if !strings.Contains(text, "Chummer said:") {
		t.Errorf("plain attribution missing: %q", text)
	}
	if strings.Contains(text, "](") {
		t.Errorf("unexpected markdown link: %q", text)
	}
}

func TestGafQuoteBlock(t *testing.T) {
	node := postNode(t, `<article id="fixture">
<div class="bbWrapper">
<div class="bbCodeBlock bbCodeBlock--expandable bbCodeBlock--quote">
  <a class="bbCodeBlock-sourceJump" href="/goto/post?id=5">LeBron said:</a>
  <div class="bbCodeBlock-expandContent">chasing the ring</div>
  <div class="bbCodeBlock-expandLink">Click to expand...</div>
</div>
my take
</div>
</article>`)

	n := newNormalizer(conventions["gaf"], "https://www.neogaf.com/")
	text := n.Run(node)

	if !strings.Contains(text, "[LeBron said:](https://www.neogaf.com/goto/post?id=5)") {
		t.Errorf("attribution = %q", text)
	}
	if !strings.Contains(text, "```chasing the ring```") {
		t.Errorf("fenced quote missing: %q", text)
	}
	if strings.Contains(text, "Click to expand") {
		t.Errorf("expand affordance survived: %q", text)
	}
}

func TestSpoilerMasking(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
before
<div class="bbCodeSpoiler">
  <button class="bbCodeSpoiler-button">Spoiler</button>
  <div class="bbCodeSpoiler-content">the butler <a href="https://example.com/proof">did it</a></div>
</div>
middle
<span class="bbCodeInlineSpoiler">snape kills dumbledore</span>
after
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if len(n.Spoilers) != 2 {
		t.Fatalf("Spoilers = %v, want 2 entries", n.Spoilers)
	}
	if n.Spoilers[0] != "the butler [did it](https://example.com/proof)" {
		t.Errorf("Spoilers[0] = %q", n.Spoilers[0])
	}
	if n.Spoilers[1] != "snape kills dumbledore" {
		t.Errorf("Spoilers[1] = %q", n.Spoilers[1])
	}
	if strings.Count(text, SpoilerMask) != 2 {
		t.Errorf("mask count in %q", text)
	}
	if strings.Contains(text, "butler") || strings.Contains(text, "dumbledore") {
		t.Errorf("spoiler text leaked: %q", text)
	}
}

func TestSpoilerOrderAcrossShapes(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
<span class="bbCodeInlineSpoiler">first spoiler</span>
<div class="bbCodeSpoiler">
  <button class="bbCodeSpoiler-button">Spoiler</button>
  <div class="bbCodeSpoiler-content">second spoiler</div>
</div>
<span class="bbCodeInlineSpoiler">third spoiler</span>
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	n.Run(node)

	want := []string{"first spoiler", "second spoiler", "third spoiler"}
	if len(n.Spoilers) != len(want) {
		t.Fatalf("Spoilers = %v, want %d entries", n.Spoilers, len(want))
	}
	for i := range want {
		if n.Spoilers[i] != want[i] {
			t.Errorf("Spoilers[%d] = %q, want %q", i, n.Spoilers[i], want[i])
		}
	}
}

func TestImageFormatting(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
look
<img class="bbImage" src="https://cdn.example.com/a.png"/>
<img class="bbImage" src="https://cdn.example.com/b.png"/>
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if len(n.Images) != 2 {
		t.Fatalf("Images = %v", n.Images)
	}
	// The primary engine keeps the URL inline where the image stood.
	if !strings.Contains(text, "https://cdn.example.com/a.png") {
		t.Errorf("inline image URL missing: %q", text)
	}
}

func TestSmilieReuse(t *testing.T) {
	node := postNode(t, `<article id="fixture">
<div class="bbWrapper">
<img class="bbImage" src="https://cdn.example.com/one.png"/>
<img class="bbImage" src="https://cdn.example.com/two.png"/>
text <img class="smilie" src="/s/laugh.gif"/> more <img class="smilie" src="/s/wink.gif"/>
</div>
</article>`)

	n := newNormalizer(conventions["gaf"], "https://www.neogaf.com/")
	text := n.Run(node)

	if len(n.Images) != 2 {
		t.Fatalf("Images = %v", n.Images)
	}
	oneIdx := strings.Index(text, "https://cdn.example.com/one.png")
	twoIdx := strings.Index(text, "https://cdn.example.com/two.png")
	if oneIdx < 0 || twoIdx < 0 || oneIdx > twoIdx {
		t.Errorf("smilie rewrite order wrong: %q", text)
	}
	if strings.Contains(text, "laugh.gif") {
		t.Errorf("smilie source leaked: %q", text)
	}
}

func TestSocialEmbedRewrite(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
<iframe data-s9e-mediaembed="twitter" src="https://s9e.github.io/iframe/twitter.min.html#1234567890"></iframe>
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if !strings.Contains(text, "https://twitter.com/user/status/1234567890") {
		t.Errorf("tweet permalink missing: %q", text)
	}
}

func TestVideoEmbedRewrite(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
<span data-s9e-mediaembed="youtube"><iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe></span>
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if len(n.Videos) != 1 || n.Videos[0] != "https://www.youtube.com/embed/dQw4w9WgXcQ" {
		t.Fatalf("Videos = %v", n.Videos)
	}
	if !strings.Contains(text, "https://www.youtube.com/embed/dQw4w9WgXcQ") {
		t.Errorf("video URL missing from text: %q", text)
	}
}

func TestMaterializeCollapsesNewlines(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent">
<script>evil()</script>
<p>one</p>


<p>two</p>
</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if strings.Contains(text, "evil") {
		t.Errorf("script survived: %q", text)
	}
	if strings.Contains(text, "\n\n") {
		t.Errorf("newline run survived: %q", text)
	}
	if strings.HasPrefix(text, "\n") {
		t.Errorf("leading newline survived: %q", text)
	}
}

func TestEmptyLinkTextLeftAlone(t *testing.T) {
	node := postNode(t, `<li id="fixture">
<div class="messageContent"><a href="https://example.com"></a>words</div>
</li>`)

	n := newNormalizer(conventions["era"], "https://www.resetera.com/")
	text := n.Run(node)

	if strings.Contains(text, "](") {
		t.Errorf("empty link was markdownified: %q", text)
	}
	if !strings.Contains(text, "words") {
		t.Errorf("content lost: %q", text)
	}
}
