package models

import (
	"strings"
	"time"
)

// Sentinel marks a field whose value could not be extracted.
const Sentinel = "-"

// Record kinds.
const (
	KindPicture = "picture"
	KindText    = "text"
)

// DateLayout is the calendar-day format used for search windows.
const DateLayout = "2006-01-02"

// Query holds the immutable parameters of one crawl run.
type Query struct {
	Keywords []string
	Start    time.Time // zero when no window is set
	End      time.Time // zero when no window is set
	Scope    string    // "ori" for original posts only, "all" for everything
	HasPic   bool      // only keep posts that carry pictures
}

// Keyword returns the joined search term sent to the endpoint.
func (q Query) Keyword() string {
	return strings.Join(q.Keywords, "+")
}

// HasWindow reports whether the query carries a date window.
func (q Query) HasWindow() bool {
	return !q.Start.IsZero() && !q.End.IsZero()
}

// SourceLabel describes where records of this query came from.
func (q Query) SourceLabel() string {
	if q.Scope == "" || q.Scope == "ori" {
		return "weibo-original"
	}
	return "weibo-" + q.Scope
}

// Window returns the query's full date range as a Segment.
func (q Query) Window() Segment {
	return Segment{Start: q.Start, End: q.End}
}

// Segment is a date sub-range pending evaluation against the search
// endpoint. Both bounds are inclusive calendar days. A zero Segment
// stands for an open-ended query with no window.
type Segment struct {
	Start time.Time
	End   time.Time
}

// Defined reports whether the segment carries actual bounds.
func (s Segment) Defined() bool {
	return !s.Start.IsZero() && !s.End.IsZero()
}

// SingleDay reports whether the segment cannot be bisected further.
func (s Segment) SingleDay() bool {
	return s.Defined() && s.Start.Equal(s.End)
}

// Split bisects the segment at its midpoint day. The halves cover the
// original range with no gap and no overlap: (start, mid) and
// (mid+1d, end).
func (s Segment) Split() (Segment, Segment) {
	days := int(s.End.Sub(s.Start).Hours() / 24)
	mid := s.Start.AddDate(0, 0, days/2)
	return Segment{Start: s.Start, End: mid},
		Segment{Start: mid.AddDate(0, 0, 1), End: s.End}
}

func (s Segment) String() string {
	if !s.Defined() {
		return "open"
	}
	return s.Start.Format(DateLayout) + ".." + s.End.Format(DateLayout)
}

// Record is one extracted content item. A card with several pictures
// yields one Record per picture, all sharing the canonical URL.
type Record struct {
	Kind         string   // KindPicture or KindText
	Source       string   // e.g. "weibo-original"
	Keyword      string   // the query's joined search term
	Author       string   // display name, Sentinel when missing
	Title        string   // Sentinel when absent
	Summary      string   // plain-text body
	Tags         []string // hashtags, order preserved, duplicates allowed
	Caption      string   // Sentinel when absent
	CanonicalURL string   // dedup key
	PictureURL   string   // Sentinel for text-only records
	LocalPath    string   // planned storage path, Sentinel for text-only
	CreatedAt    string   // "2006-01-02 15:04:05" or Sentinel
}

// Row renders the record as the CSV row of the persistent log. The
// canonical URL sits at column index 8; readers rely on that.
func (r Record) Row() []string {
	return []string{
		r.Kind,
		r.Source,
		r.Keyword,
		r.Author,
		r.Title,
		r.Summary,
		strings.Join(r.Tags, ","),
		r.Caption,
		r.CanonicalURL,
		r.PictureURL,
		r.LocalPath,
		r.CreatedAt,
	}
}
