package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

const duckDuckGoBase = "https://duckduckgo.com"

// DuckDuckGoWeb understands both the html and the lite markup. html pages
// carry .result blocks; lite pages are a table of a.result-link rows, each
// followed by a row holding td.result-snippet.
func DuckDuckGoWeb(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	if doc.Find("a.result-link").Length() > 0 {
		return duckDuckGoLite(doc), nil
	}

	blocks := doc.Find(".result__body")
	if blocks.Length() == 0 {
		blocks = doc.Find(".result")
	}

	results := make([]domain.Result, 0, blocks.Length())
	blocks.Each(func(_ int, s *goquery.Selection) {
		// рекламные блоки пропускаем
		if s.Closest(".result--ad").Length() > 0 {
			return
		}
		a := s.Find(".result__a").First()
		results = appendUsable(results, domain.Result{
			Title:   text(a),
			Link:    CleanDuckDuckGoLink(attr(a, "href")),
			Snippet: text(s.Find(".result__snippet").First()),
		})
	})
	return results, nil
}

func duckDuckGoLite(doc *goquery.Document) []domain.Result {
	links := doc.Find("a.result-link")
	results := make([]domain.Result, 0, links.Length())
	links.Each(func(_ int, a *goquery.Selection) {
		row := a.Closest("tr")
		snippet := row.NextAllFiltered("tr").First().Find("td.result-snippet")
		results = appendUsable(results, domain.Result{
			Title:   text(a),
			Link:    CleanDuckDuckGoLink(attr(a, "href")),
			Snippet: text(snippet),
		})
	})
	return results
}

// CleanDuckDuckGoLink unwraps /l/?uddg= redirect links to the target URL.
// Anything else, including unparseable input, is returned unchanged.
func CleanDuckDuckGoLink(href string) string {
	if href == "" {
		return href
	}
	base, _ := url.Parse(duckDuckGoBase)
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	if u.Path == "/l/" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if strings.HasPrefix(href, "//") {
		return u.String()
	}
	return href
}
