package sentiment

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// maxArticleChars bounds how much body text is scored per article.
const maxArticleChars = 20000

// TextSource returns the text to score for a news item.
type TextSource interface {
	ArticleText(ctx context.Context, item NewsItem) (string, error)
}

// ArticleExtractor downloads an article page and keeps its paragraph text.
type ArticleExtractor struct {
	client *resty.Client
}

// NewArticleExtractor creates an extractor with a short per-page timeout.
func NewArticleExtractor(timeout time.Duration) *ArticleExtractor {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; stocksim/1.0)")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &ArticleExtractor{client: client}
}

// ArticleText fetches item.URL and returns its readable body text.
func (e *ArticleExtractor) ArticleText(ctx context.Context, item NewsItem) (string, error) {
	if item.URL == "" {
		return "", fmt.Errorf("article has no url")
	}
	resp, err := e.client.R().SetContext(ctx).Get(item.URL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", item.URL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", item.URL, resp.StatusCode())
	}
	return ExtractText(resp.Body())
}

// ExtractText pulls paragraph text out of an HTML document, preferring
// paragraphs inside <article>.
func ExtractText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	paragraphs := doc.Find("article p")
	if paragraphs.Length() == 0 {
		paragraphs = doc.Find("p")
	}

	var b strings.Builder
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if len(text) < 20 {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	})

	return truncateRunes(b.String(), maxArticleChars), nil
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SummaryText scores the headline and summary the provider already sent.
type SummaryText struct{}

func (SummaryText) ArticleText(_ context.Context, item NewsItem) (string, error) {
	parts := make([]string, 0, 2)
	for _, s := range []string{item.Headline, item.Summary} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". "), nil
}
