package weibo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
)

const pictureCardHTML = `<html><body>
<div class="card-wrap" mid="4912345">
	<div class="info"><a class="name">张三</a></div>
	<p class="txt">
		去了 <a href="https://weibo.com/tags/hangzhou123">#杭州#</a> 玩
		<a href="https://weibo.com/u/999">@someone</a>
	</p>
	<div class="media">
		<img src="//wx1.sinaimg.cn/large/first.jpg">
		<img src="//wx2.sinaimg.cn/large/second.jpg">
		<img src="/static/icon.png">
	</div>
	<div class="from"><a>2024年06月01日 12:30</a></div>
</div>
</body></html>`

func neverSeen(string) bool { return false }

func TestExtractPictureCard(t *testing.T) {
	doc, err := ParseDocument(pictureCardHTML)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	q := models.Query{Keywords: []string{"杭州"}, Scope: "ori", HasPic: true}

	records := e.Extract(doc, q, neverSeen)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, models.KindPicture, first.Kind)
	assert.Equal(t, "weibo-original", first.Source)
	assert.Equal(t, "杭州", first.Keyword)
	assert.Equal(t, "张三", first.Author)
	assert.Equal(t, models.Sentinel, first.Title)
	assert.Contains(t, first.Summary, "杭州")
	assert.Equal(t, []string{"杭州"}, first.Tags)
	assert.Equal(t, "https://m.weibo.cn/detail/4912345", first.CanonicalURL)
	assert.Equal(t, "https://wx1.sinaimg.cn/large/first.jpg", first.PictureURL)
	assert.Equal(t, "2024-06-01 12:30:00", first.CreatedAt)
	assert.True(t, strings.HasPrefix(first.LocalPath, "pics/杭州_4912345_1_"))
	assert.True(t, strings.HasSuffix(first.LocalPath, ".jpg"))

	// Both records share the dedup key but carry distinct picture URLs.
	assert.Equal(t, first.CanonicalURL, records[1].CanonicalURL)
	assert.Equal(t, "https://wx2.sinaimg.cn/large/second.jpg", records[1].PictureURL)
	assert.NotEqual(t, first.LocalPath, records[1].LocalPath)
}

func TestExtractSkipsSeenCards(t *testing.T) {
	doc, err := ParseDocument(pictureCardHTML)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	q := models.Query{Keywords: []string{"杭州"}, HasPic: true}

	records := e.Extract(doc, q, func(key string) bool {
		return key == "https://m.weibo.cn/detail/4912345"
	})
	assert.Empty(t, records)
}

func TestExtractSkipsCardsWithoutID(t *testing.T) {
	html := `<html><body><div class="card-wrap"><p class="txt">no id</p></div></body></html>`
	doc, err := ParseDocument(html)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	records := e.Extract(doc, models.Query{Keywords: []string{"x"}}, neverSeen)
	assert.Empty(t, records)
}

func TestExtractTextOnlyCard(t *testing.T) {
	html := `<html><body>
	<div class="card-wrap" mid="777">
		<div class="info"><a class="name">李四</a></div>
		<p class="txt">纯文字内容</p>
	</div>
	</body></html>`
	doc, err := ParseDocument(html)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())

	// With the picture filter on, a bare-text card yields nothing.
	records := e.Extract(doc, models.Query{Keywords: []string{"x"}, HasPic: true}, neverSeen)
	assert.Empty(t, records)

	// Without it, the card becomes a text record with sentinels.
	records = e.Extract(doc, models.Query{Keywords: []string{"x"}}, neverSeen)
	require.Len(t, records, 1)
	assert.Equal(t, models.KindText, records[0].Kind)
	assert.Equal(t, "纯文字内容", records[0].Summary)
	assert.Equal(t, models.Sentinel, records[0].PictureURL)
	assert.Equal(t, models.Sentinel, records[0].LocalPath)
}

func TestExtractPrefersFullBodyAttribute(t *testing.T) {
	html := `<html><body>
	<div class="card-wrap" mid="888">
		<p class="txt" data-original-title="完整的正文 <a>#杭州#</a>">截断的正文...</p>
		<img src="//wx1.sinaimg.cn/large/a.jpg">
	</div>
	</body></html>`
	doc, err := ParseDocument(html)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	records := e.Extract(doc, models.Query{Keywords: []string{"x"}, HasPic: true}, neverSeen)
	require.Len(t, records, 1)
	assert.Equal(t, "完整的正文 #杭州#", records[0].Summary)
}

func TestExtractDegradesUnrecognizedTimestamp(t *testing.T) {
	html := `<html><body>
	<div class="card-wrap" mid="999">
		<p class="txt">text</p>
		<img src="//wx1.sinaimg.cn/large/a.jpg">
		<div class="from"><a>3分钟前</a></div>
	</div>
	</body></html>`
	doc, err := ParseDocument(html)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	records := e.Extract(doc, models.Query{Keywords: []string{"x"}, HasPic: true}, neverSeen)
	require.Len(t, records, 1)
	assert.Equal(t, models.Sentinel, records[0].CreatedAt)
}

func TestExtractMissingAuthorUsesSentinel(t *testing.T) {
	html := `<html><body>
	<div class="card-wrap" mid="1001">
		<p class="txt">text</p>
		<img src="//wx1.sinaimg.cn/large/a.jpg">
	</div>
	</body></html>`
	doc, err := ParseDocument(html)
	require.NoError(t, err)

	e := NewExtractor("./pics", logger.Nop())
	records := e.Extract(doc, models.Query{Keywords: []string{"x"}, HasPic: true}, neverSeen)
	require.Len(t, records, 1)
	assert.Equal(t, models.Sentinel, records[0].Author)
}
