// Package news は市場ニュースフィードの取得とキャッシュを提供する。
//
// 設定されたRSS/AtomフィードをTTL付きでキャッシュし、
// ダッシュボードに最新の記事を提供する。フィード取得には
// SSRF防止付きHTTPクライアントを使用する。
package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/agropulse/agropulse/internal/model"
)

// FeedGuardService はSSRF検証のインターフェース。
// security.FeedGuardを抽象化してテスタビリティを向上させる。
type FeedGuardService interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// maxFeedBodySize はフィードボディの最大読み取りサイズ。
const maxFeedBodySize = 5 * 1024 * 1024

// maxItems は返却する記事の最大件数。
const maxItems = 10

// maxSummaryLength は記事要約の最大文字数（rune単位）。
const maxSummaryLength = 280

// Service は市場ニュースフィードの取得サービス。
// 取得結果はTTLの間キャッシュされ、期限内の呼び出しは
// ネットワークアクセスなしでキャッシュを返す。
type Service struct {
	httpClient *http.Client
	logger     *slog.Logger
	feedURL    string
	ttl        time.Duration
	guard      FeedGuardService
	policy     *bluemonday.Policy

	mu        sync.Mutex
	cached    []model.NewsItem
	fetchedAt time.Time

	now func() time.Time // テスト用に差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
// feedURLが空の場合、サービスは未設定状態になりFetchは常に空を返す。
// HTTPクライアントはguardが生成するSSRF防止付きクライアントを使用する。
func NewService(feedURL string, ttl time.Duration, timeout time.Duration, guard FeedGuardService, logger *slog.Logger) *Service {
	return &Service{
		httpClient: guard.NewSafeClient(timeout),
		logger:     logger,
		feedURL:    feedURL,
		ttl:        ttl,
		guard:      guard,
		policy:     bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// Configured はニュースフィードURLが設定されているかを返す。
func (s *Service) Configured() bool {
	return s.feedURL != ""
}

// Fetch は最新のニュース記事を返す。未設定の場合はnilを返す。
// キャッシュが有効な間はネットワークアクセスを行わない。
// 取得・パース失敗時はエラーを返すが、期限切れキャッシュが残っていれば
// それを返してエラーを吸収する。
// ロックは外部取得中には保持しない。TTL切れ直後の並行呼び出しは
// 重複取得になりうるが、後着の結果で上書きされるだけで無害。
func (s *Service) Fetch(ctx context.Context) ([]model.NewsItem, error) {
	if !s.Configured() {
		return nil, nil
	}

	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		items := copyItems(s.cached)
		s.mu.Unlock()
		return items, nil
	}
	s.mu.Unlock()

	items, err := s.fetchRemote(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("news feed fetch failed",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		// 期限切れキャッシュでも、何もないよりは provide する
		if s.cached != nil {
			return copyItems(s.cached), nil
		}
		return nil, err
	}

	s.cached = items
	s.fetchedAt = s.now()
	return copyItems(items), nil
}

// fetchRemote はフィードを取得してパースする。
func (s *Service) fetchRemote(ctx context.Context) ([]model.NewsItem, error) {
	if err := s.guard.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("unsafe feed URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "AgroPulse/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return s.convertItems(parsed), nil
}

// convertItems はgofeedの記事をNewsItemに変換する。
// タグ除去と要約の切り詰めを行い、最大maxItems件を返す。
func (s *Service) convertItems(parsed *gofeed.Feed) []model.NewsItem {
	source := strings.TrimSpace(s.policy.Sanitize(parsed.Title))

	items := make([]model.NewsItem, 0, maxItems)
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if len(items) == maxItems {
			break
		}

		news := model.NewsItem{
			Title:   strings.TrimSpace(s.policy.Sanitize(item.Title)),
			Link:    item.Link,
			Source:  source,
			Summary: truncate(strings.TrimSpace(s.policy.Sanitize(item.Description)), maxSummaryLength),
		}
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			news.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			news.PublishedAt = &t
		}

		items = append(items, news)
	}
	return items
}

// truncate は文字列をrune単位でmax文字に切り詰める。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func copyItems(items []model.NewsItem) []model.NewsItem {
	out := make([]model.NewsItem, len(items))
	copy(out, items)
	return out
}
