package issuer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxSummaryBytes = 512
	maxHTMLBodySize = 1 << 20 // 1 MiB
)

// SummarizeBody condenses a response body for log lines. HTML error pages
// (gateways, proxies) are reduced to their title and first heading; anything
// else is trimmed to a short snippet.
func SummarizeBody(contentType, body string) string {
	if looksLikeHTML(contentType, body) {
		if s := summarizeHTML(body); s != "" {
			return s
		}
	}
	return snippet(body)
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func summarizeHTML(body string) string {
	if len(body) > maxHTMLBodySize {
		body = body[:maxHTMLBodySize]
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	title := collapseSpace(doc.Find("title").First().Text())
	heading := collapseSpace(doc.Find("h1").First().Text())
	switch {
	case title != "" && heading != "" && heading != title:
		return snippet(title + ": " + heading)
	case title != "":
		return snippet(title)
	default:
		return snippet(heading)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxSummaryBytes {
		s = s[:maxSummaryBytes]
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
