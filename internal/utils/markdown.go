package utils

import (
	"bytes"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.NewPolicy()

	mentionRe = regexp.MustCompile(`(^|[^\w/@])@([a-z0-9_.]{3,30})\b`)
	hashtagRe = regexp.MustCompile(`(^|[^\w/&#])#([\p{L}\p{N}_]{1,50})`)
)

func init() {
	// 帖子正文不允许内联图片，图片走上传
	policy.AllowElements("p", "br", "em", "strong", "del", "code", "pre", "ul", "ol", "li", "blockquote")
	policy.AllowStandardURLs()
	policy.AllowAttrs("href").OnElements("a")
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnFullyQualifiedLinks(true)
}

// RenderMarkdown 渲染帖子/评论正文：@用户 与 #话题 转为站内链接，输出经过清洗的 HTML
func RenderMarkdown(source string) template.HTML {
	if source == "" {
		return ""
	}
	source = linkMentions(source)

	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(source)) // Fallback
	}

	sanitized := policy.SanitizeBytes(buf.Bytes())
	return EnhanceHTMLContent(string(sanitized))
}

func linkMentions(s string) string {
	s = mentionRe.ReplaceAllString(s, `$1[@$2](/u/$2)`)
	return hashtagRe.ReplaceAllString(s, `$1[#$2](/explore?tag=$2)`)
}
