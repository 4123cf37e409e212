// internal/antidetect/detect.go
package antidetect

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockSignal describes why a page looks like a block or challenge page.
type BlockSignal struct {
	Blocked bool
	Reason  string
}

var blockSelectors = []string{
	"form#captcha_form",
	"#captcha",
	"iframe[src*='captcha']",
	"div.g-recaptcha",
	"div.h-captcha",
	"img[src*='captcha']",
}

var blockPhrases = []string{
	"비정상적인 접근",
	"자동입력 방지",
	"일시적으로 제한",
	"access denied",
	"too many requests",
	"unusual traffic",
}

// DetectBlock inspects an HTML landing page for captcha forms and block
// notices.
func DetectBlock(r io.Reader) (BlockSignal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return BlockSignal{}, err
	}

	for _, sel := range blockSelectors {
		if doc.Find(sel).Length() > 0 {
			return BlockSignal{Blocked: true, Reason: "selector " + sel}, nil
		}
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	body := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range blockPhrases {
		if strings.Contains(title, phrase) || strings.Contains(body, phrase) {
			return BlockSignal{Blocked: true, Reason: "phrase " + phrase}, nil
		}
	}
	return BlockSignal{}, nil
}
