package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

func GoogleWeb(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	blocks := doc.Find("div.g")
	results := make([]domain.Result, 0, blocks.Length())
	blocks.Each(func(_ int, s *goquery.Selection) {
		results = appendUsable(results, domain.Result{
			Title:   text(s.Find("h3").First()),
			Link:    cleanGoogleLink(attr(s.Find("a[href]").First(), "href")),
			Snippet: text(s.Find(".VwiC3b").First()),
		})
	})
	return results, nil
}

// GoogleImages reads the legacy image grid. Google gives no title there, so
// the alt text is the label and images without one are dropped.
func GoogleImages(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	imgs := doc.Find("img.rg_i")
	results := make([]domain.Result, 0, imgs.Length())
	imgs.Each(func(_ int, s *goquery.Selection) {
		thumb := attr(s, "src")
		image := attr(s, "data-iurl")
		if image == "" {
			image = thumb
		}
		results = appendUsable(results, domain.Result{
			Title:     clean(attr(s, "alt")),
			Image:     image,
			Thumbnail: thumb,
		})
	})
	return results, nil
}

// /url?q=<target>&sa=... -> target
func cleanGoogleLink(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("q"); target != "" {
		return target
	}
	return href
}
