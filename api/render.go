package api

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	ugcPolicy = bluemonday.UGCPolicy()
)

func init() {
	ugcPolicy.RequireNoReferrerOnLinks(true)
	ugcPolicy.AddTargetBlankToFullyQualifiedLinks(true)
}

// RenderMarkdown converts user content to sanitized HTML.
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return ugcPolicy.Sanitize(source)
	}
	return string(ugcPolicy.SanitizeBytes(buf.Bytes()))
}
