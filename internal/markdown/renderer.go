// Package markdown はMarkdownからサニタイズ済みHTMLへの変換を提供する。
//
// 変換はgoldmark（テーブル・フェンスコードブロック拡張付き）で行い、
// 出力はbluemondayの許可リストベースのポリシーでサニタイズする。
// AI応答は信頼できない入力として扱い、scriptタグやon*イベント属性は
// ここで必ず除去される。
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/agropulse/agropulse/internal/model"
)

// Renderer はMarkdown→サニタイズ済みHTMLの変換器。
// goldmarkとbluemondayのインスタンスを保持し、スレッドセーフに変換を行う。
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer はRendererを生成する。
// ポリシーの内容:
//   - 許可タグ: 見出し(h1〜h4)、p, br, ul, ol, li, blockquote, pre, code,
//     strong, em, table, thead, tbody, tr, th, td, a
//   - aタグ: href属性のみ許可、target="_blank"とrel="noopener noreferrer"を強制付与
//   - script, iframe, styleおよびon*イベント属性は許可リスト外のため除去される
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
		),
	)

	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "h3", "h4",
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &Renderer{
		md:     md,
		policy: p,
	}
}

// Render はMarkdownテキストをサニタイズ済みHTMLに変換する。
// 空文字列には空文字列を返す。同一入力に対して常に同一出力を返す。
func (r *Renderer) Render(src string) (string, error) {
	if src == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	return r.policy.Sanitize(buf.String()), nil
}

// RenderSections は各セクションのMarkdownを個別にHTMLへ変換する。
// 空のセクションは出力に含めない。
func (r *Renderer) RenderSections(sections map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(sections))
	for key, content := range sections {
		if content == "" {
			continue
		}
		html, err := r.Render(content)
		if err != nil {
			return nil, fmt.Errorf("failed to render section %s: %w", key, err)
		}
		result[key] = html
	}
	return result, nil
}

// RenderPlan は計画全体の結合Markdownと各セクションをHTML化して返す。
func (r *Renderer) RenderPlan(plan model.CropPlan) (insightsHTML string, sectionsHTML map[string]string, err error) {
	insightsHTML, err = r.Render(plan.Markdown)
	if err != nil {
		return "", nil, err
	}
	sectionsHTML, err = r.RenderSections(plan.Sections)
	if err != nil {
		return "", nil, err
	}
	return insightsHTML, sectionsHTML, nil
}
