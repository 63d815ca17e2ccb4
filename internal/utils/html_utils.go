package utils

import (
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 给站内 @用户 / #话题 链接打上样式类，站内链接去掉 target
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch {
		case strings.HasPrefix(href, "/u/"):
			s.SetAttr("class", "mention")
			s.RemoveAttr("target")
		case strings.HasPrefix(href, "/explore?tag="):
			s.SetAttr("class", "hashtag")
			s.RemoveAttr("target")
		}
	})

	// goquery renders full document tags if missing, we just want the body content
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}

	return template.HTML(html)
}

// Excerpt 把 Markdown 渲染后取纯文本摘要，用于通知和会话预览
func Excerpt(source string, maxRunes int) string {
	rendered := string(RenderMarkdown(source))
	text := source
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}
