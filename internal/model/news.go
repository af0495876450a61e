package model

import "time"

// NewsItem は市場ニュースフィードの記事1件を表す。
// TitleとSummaryはHTMLタグ除去済みのプレーンテキスト。
type NewsItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Source      string     `json:"source,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
