package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayNameLength は表示名として保存する最大文字数。
const maxDisplayNameLength = 255

// ProfileSanitizer は外部IdPから受け取ったプロフィール情報を保存前に無害化する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
	guard  SSRFGuardService
}

// NewProfileSanitizer はProfileSanitizerを生成する。
// 表示名はすべてのHTMLタグを除去するStrictPolicyで処理する。
func NewProfileSanitizer(guard SSRFGuardService) *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
		guard:  guard,
	}
}

// DisplayName はHTMLを除去し前後の空白を取り除いた表示名を返す。
// 結果が空の場合は fallback を返す。
func (s *ProfileSanitizer) DisplayName(name, fallback string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		cleaned = fallback
	}
	if utf8.RuneCountInString(cleaned) > maxDisplayNameLength {
		cleaned = string([]rune(cleaned)[:maxDisplayNameLength])
	}
	return cleaned
}

// PictureURL は安全な公開URLであればそのまま返し、そうでなければ空文字列を返す。
func (s *ProfileSanitizer) PictureURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return ""
	}
	return rawURL
}
