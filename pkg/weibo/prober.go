package weibo

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wbscraper/pkg/logger"
)

var pageParamPattern = regexp.MustCompile(`page=(\d+)`)

// ParseDocument parses a fetched page into a queryable document.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// TotalPages reads the pagination control of a result page and returns
// how many pages the current query spans. Page indices in the control
// may be sparse, so the answer is the maximum index seen, not the link
// count. A page without a recognizable control is a single-page
// result; malformed markup degrades to 1 and is logged, never raised.
func TotalPages(doc *goquery.Document, log logger.Logger) int {
	if log == nil {
		log = logger.Nop()
	}
	if doc == nil {
		log.Warn("no document to probe, assuming a single page")
		return 1
	}

	nav := findPaginationControl(doc)
	if nav == nil {
		log.Debug("no pagination control found, assuming a single page")
		return 1
	}

	maxPage := 1
	found := false
	nav.Find(`a[href*="page="]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		m := pageParamPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		found = true
		if n > maxPage {
			maxPage = n
		}
	})

	if !found {
		log.Debug("no page links in pagination control, assuming a single page")
		return 1
	}
	return maxPage
}

// findPaginationControl tries the known shapes of the pagination
// region in order.
func findPaginationControl(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"ul.s-scroll", "div.m-page", "div.s-scroll"} {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return sel
		}
	}
	return nil
}
