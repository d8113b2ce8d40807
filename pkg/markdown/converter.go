package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphRe = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	preCodeRe   = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	anyTagRe    = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNameRe   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Telegram only renders this subset of HTML tags.
var supportedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true, "br": true,
}

// ToTelegramHTML renders model markdown into the HTML subset Telegram accepts.
func ToTelegramHTML(md string) string {
	if md == "" {
		return ""
	}
	html := string(blackfriday.Run([]byte(md), blackfriday.WithExtensions(blackfriday.CommonExtensions)))
	return sanitize(html)
}

func sanitize(html string) string {
	html = paragraphRe.ReplaceAllString(html, "$1\n")
	html = preCodeRe.ReplaceAllString(html, "<pre>$1</pre>")

	replacer := strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<ul>", "", "</ul>", "",
		"<ol>", "", "</ol>", "",
		"<li>", "• ", "</li>", "\n",
	)
	html = replacer.Replace(html)

	html = anyTagRe.ReplaceAllStringFunc(html, func(match string) string {
		m := tagNameRe.FindStringSubmatch(match)
		if len(m) > 1 && supportedTags[strings.ToLower(m[1])] {
			return match
		}
		return ""
	})

	html = newlinesRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
