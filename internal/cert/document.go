package cert

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var pdfMagic = []byte("%PDF")

// IsPDF reports whether a portal response is an acceptable certificate
// document: either the transport declared a PDF content type or the body
// starts with the PDF magic header.
func IsPDF(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return bytes.HasPrefix(body, pdfMagic)
}

// ExtractDocumentLink finds the embedded PDF link in an HTML result page.
// Secondary sources answer the form POST with a page linking to the actual
// document instead of streaming it; a single extra hop fetches it.
func ExtractDocumentLink(markup []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	var link string
	doc.Find("a[href], iframe[src], embed[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			href, ok = s.Attr("src")
		}
		if ok && strings.Contains(strings.ToLower(href), ".pdf") {
			link = href
			return false
		}
		return true
	})
	return link
}
