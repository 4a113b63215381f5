package weibo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
)

var (
	// topicHrefPattern matches anchors that point at a topic page.
	topicHrefPattern = regexp.MustCompile(`weibo\.com/[a-zA-Z]+/[a-zA-Z0-9]+`)

	// createdAtPattern is the only timestamp shape the search page
	// renders with a full date. Everything else (relative times,
	// "today HH:MM") degrades to the sentinel.
	createdAtPattern = regexp.MustCompile(`^\d{4}年\d{2}月\d{2}日 \d{2}:\d{2}$`)
)

// cardIDAttrs are the attribute names that may carry the card
// identifier, in preference order.
var cardIDAttrs = []string{"mid", "data-mid", "id"}

// Extractor turns result-page cards into Records. It performs no
// persistence and no downloads; the driver owns those per Record.
type Extractor struct {
	pictureDir string
	logger     logger.Logger
}

// NewExtractor creates an extractor that plans picture paths under
// pictureDir.
func NewExtractor(pictureDir string, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{pictureDir: pictureDir, logger: log}
}

// Extract yields the Records of one result page. seen filters cards
// whose canonical URL is already persisted, short-circuiting before
// any media work happens for them.
func (e *Extractor) Extract(doc *goquery.Document, q models.Query, seen func(string) bool) []models.Record {
	cards := doc.Find("div.card-wrap")
	e.logger.WithField("cards", cards.Length()).Debug("scanning result page")

	if cards.Length() == 0 {
		e.logger.Warn("no cards found on result page")
		return nil
	}

	var records []models.Record
	cards.Each(func(_ int, card *goquery.Selection) {
		records = append(records, e.extractCard(card, q, seen)...)
	})
	return records
}

// extractCard handles a single card. Any structural miss is a soft
// failure: the card is skipped or a field degrades to its sentinel.
func (e *Extractor) extractCard(card *goquery.Selection, q models.Query, seen func(string) bool) []models.Record {
	mid := cardID(card)
	if mid == "" {
		e.logger.Debug("card has no identifier attribute, skipping")
		return nil
	}

	canonicalURL := DetailURL(mid)
	if seen(canonicalURL) {
		e.logger.WithField("mid", mid).Debug("skipping already recorded post")
		return nil
	}

	author := firstText(card, "a.name", "div.info a")
	summary, bodySel := e.bodyText(card)
	tags := extractTags(bodySel)
	createdAt := e.createdAt(card, mid)

	pictureURLs := e.pictureLinks(card, mid)
	if len(pictureURLs) == 0 {
		if q.HasPic {
			e.logger.WithField("mid", mid).Debug("post has no pictures, skipping")
			return nil
		}
		return []models.Record{{
			Kind:         models.KindText,
			Source:       q.SourceLabel(),
			Keyword:      q.Keyword(),
			Author:       author,
			Title:        models.Sentinel,
			Summary:      summary,
			Tags:         tags,
			Caption:      models.Sentinel,
			CanonicalURL: canonicalURL,
			PictureURL:   models.Sentinel,
			LocalPath:    models.Sentinel,
			CreatedAt:    createdAt,
		}}
	}

	records := make([]models.Record, 0, len(pictureURLs))
	for _, pictureURL := range pictureURLs {
		records = append(records, models.Record{
			Kind:         models.KindPicture,
			Source:       q.SourceLabel(),
			Keyword:      q.Keyword(),
			Author:       author,
			Title:        models.Sentinel,
			Summary:      summary,
			Tags:         tags,
			Caption:      models.Sentinel,
			CanonicalURL: canonicalURL,
			PictureURL:   pictureURL,
			LocalPath:    e.planPicturePath(q.Keyword(), mid, len(tags)),
			CreatedAt:    createdAt,
		})
	}
	return records
}

// cardID returns the first identifier attribute present on the card.
func cardID(card *goquery.Selection) string {
	for _, attr := range cardIDAttrs {
		if v, ok := card.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// bodyText extracts the plain-text body, preferring the full-text
// attribute over the visibly truncated node text. It also returns the
// body selection so tags can be read from its markup.
func (e *Extractor) bodyText(card *goquery.Selection) (string, *goquery.Selection) {
	body := card.Find("p.txt").First()
	if body.Length() == 0 {
		body = card.Find("div.weibo-text").First()
	}
	if body.Length() == 0 {
		return models.Sentinel, nil
	}

	if full, ok := body.Attr("data-original-title"); ok && full != "" {
		return stripMarkup(full), body
	}
	return strings.TrimSpace(body.Text()), body
}

// stripMarkup reduces an HTML fragment to its text content.
func stripMarkup(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

// extractTags collects hashtags from the body markup: anchors whose
// target matches a topic URL and whose text is wrapped in '#' at both
// ends. The delimiters are stripped, order is preserved and duplicates
// are kept.
func extractTags(body *goquery.Selection) []string {
	if body == nil {
		return nil
	}
	var tags []string
	body.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !topicHrefPattern.MatchString(href) {
			return
		}
		text := strings.TrimSpace(a.Text())
		if len(text) > 2 && strings.HasPrefix(text, "#") && strings.HasSuffix(text, "#") {
			tags = append(tags, strings.TrimSuffix(strings.TrimPrefix(text, "#"), "#"))
		}
	})
	return tags
}

// createdAt normalizes the card's timestamp. Only the full
// "YYYY年MM月DD日 HH:MM" shape is accepted; anything else is a known
// degraded case, logged at info level and recorded as the sentinel.
func (e *Extractor) createdAt(card *goquery.Selection, mid string) string {
	raw := firstText(card, "div.from > a", "span.time")
	if raw == models.Sentinel {
		return models.Sentinel
	}
	if !createdAtPattern.MatchString(raw) {
		e.logger.WithFields(map[string]interface{}{
			"mid":  mid,
			"text": raw,
		}).Info("unrecognized timestamp shape")
		return models.Sentinel
	}

	normalized := strings.NewReplacer("年", "-", "月", "-", "日", "").Replace(raw)
	return normalized + ":00"
}

// pictureLinks collects the card's asset-host picture URLs, made
// absolute. Links without an accepted scheme are skipped with a
// warning.
func (e *Extractor) pictureLinks(card *goquery.Selection, mid string) []string {
	var urls []string
	card.Find(`img[src*="` + PictureHostMarker + `"]`).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			e.logger.WithField("mid", mid).Debug("picture element has no src, skipping")
			return
		}
		absolute, ok := NormalizePictureURL(src)
		if !ok {
			e.logger.WithFields(map[string]interface{}{
				"mid": mid,
				"src": src,
			}).Warn("picture link has unsupported scheme, skipping")
			return
		}
		urls = append(urls, absolute)
	})
	return urls
}

// planPicturePath computes where a picture will be stored. The random
// suffix is a non-cryptographic disambiguator against filename
// collisions across runs, not a dedup key.
func (e *Extractor) planPicturePath(keyword, mid string, tagCount int) string {
	name := fmt.Sprintf("%s_%s_%d_%s.jpg", keyword, mid, tagCount, randomHex(4))
	return filepath.Join(e.pictureDir, name)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// firstText returns the trimmed text of the first selector that
// matches, or the sentinel.
func firstText(card *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		sel := card.Find(selector).First()
		if sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text
			}
		}
	}
	return models.Sentinel
}
