// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は外部サービスから受け取った文字列をプレーンテキスト化し、
// 画面にそのまま表示しても安全な形にする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は文字列をプレーンテキストに変換するインターフェース。
type TextSanitizer interface {
	// PlainText はHTMLタグを全て取り除き、エンティティを復元して前後の空白を除いた文字列を返す。
	PlainText(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyは&や'をエスケープするため、テンプレート側での二重エスケープを避けて復元する。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
