package weibo

import (
	"fmt"
	"net/url"
	"strings"

	"wbscraper/pkg/models"
)

const (
	// SearchBaseURL is the keyword search endpoint.
	SearchBaseURL = "https://s.weibo.com/weibo"

	// DetailBaseURL prefixes the canonical post URL derived from a
	// card identifier.
	DetailBaseURL = "https://m.weibo.cn/detail/"

	// PictureHostMarker identifies picture links on the asset host.
	PictureHostMarker = "sinaimg"

	// PageCap is the endpoint's hard limit on visible result pages.
	// Queries reporting more pages must be narrowed.
	PageCap = 49
)

// SearchURL builds the search URL for one segment of a query. A page
// of zero or less omits the page parameter, which is the URL form used
// both for probing and for single-page leaves.
func SearchURL(q models.Query, seg models.Segment, page int) string {
	var b strings.Builder
	b.WriteString(SearchBaseURL)
	b.WriteString("?q=")
	b.WriteString(url.QueryEscape(q.Keyword()))

	if q.Scope != "" && q.Scope != "all" {
		b.WriteString("&scope=")
		b.WriteString(url.QueryEscape(q.Scope))
	}
	if seg.Defined() {
		fmt.Fprintf(&b, "&timescope=custom:%s:%s",
			seg.Start.Format(models.DateLayout), seg.End.Format(models.DateLayout))
	}
	if q.HasPic {
		b.WriteString("&haspic=1")
	}
	if page > 0 {
		fmt.Fprintf(&b, "&page=%d", page)
	}
	return b.String()
}

// DetailURL derives the canonical post URL from a card identifier.
// This URL is the dedup key of the record log.
func DetailURL(mid string) string {
	return DetailBaseURL + mid
}

// NormalizePictureURL makes a card's picture link absolute. It returns
// false when the link does not use an accepted scheme.
func NormalizePictureURL(raw string) (string, bool) {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, true
	}
	if strings.HasPrefix(raw, "http") {
		return raw, true
	}
	return "", false
}
