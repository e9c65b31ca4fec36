package evidence

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	selResult  = cascadia.MustCompile("div.gs_ri")
	selTitle   = cascadia.MustCompile("h3")
	selAuthors = cascadia.MustCompile(".gs_a")
	selLink    = cascadia.MustCompile("a")
)

// ParseResults extracts citations from a results page. Each result block
// yields one citation. The author line carries venue and year separated by
// hyphens: the first segment becomes the journal, the second the year.
func ParseResults(r io.Reader) ([]model.Citation, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var citations []model.Citation
	for _, block := range cascadia.QueryAll(doc, selResult) {
		authorLine := nodeText(cascadia.Query(block, selAuthors))
		journal, year := splitAuthorLine(authorLine)

		citations = append(citations, model.Citation{
			Title:   orNotAvailable(nodeText(cascadia.Query(block, selTitle))),
			Authors: orNotAvailable(authorLine),
			Journal: journal,
			Year:    year,
			Link:    orNotAvailable(attr(cascadia.Query(block, selLink), "href")),
		})
	}

	return citations, nil
}

func splitAuthorLine(line string) (journal, year string) {
	parts := strings.Split(line, "-")
	journal = model.NotAvailable
	year = model.NotAvailable
	if len(parts) > 0 {
		journal = orNotAvailable(parts[0])
	}
	if len(parts) > 1 {
		year = orNotAvailable(parts[1])
	}
	return journal, year
}

func orNotAvailable(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.NotAvailable
	}
	return s
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
