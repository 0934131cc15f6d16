package extract

import (
	"encoding/json"

	"github.com/PuerkitoBio/goquery"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

func BingWeb(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	items := doc.Find("li.b_algo")
	results := make([]domain.Result, 0, items.Length())
	items.Each(func(_ int, s *goquery.Selection) {
		a := s.Find("h2 a").First()
		results = appendUsable(results, domain.Result{
			Title:   text(a),
			Link:    attr(a, "href"),
			Snippet: text(s.Find(".b_caption p").First()),
		})
	})
	return results, nil
}

func BingNews(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	cards := doc.Find("div.news-card")
	results := make([]domain.Result, 0, cards.Length())
	cards.Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a.title").First()
		results = appendUsable(results, domain.Result{
			Title:   text(a),
			Link:    attr(a, "href"),
			Source:  text(s.Find("div.source").First()),
			Snippet: text(s.Find("div.snippet").First()),
			Time:    text(s.Find("span.time").First()),
		})
	})
	return results, nil
}

// метаданные картинки лежат JSON-ом в атрибуте m
type bingImageMeta struct {
	Title    string `json:"t"`
	MediaURL string `json:"murl"`
	ThumbURL string `json:"turl"`
	PageURL  string `json:"purl"`
}

func BingImages(body []byte) ([]domain.Result, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	anchors := doc.Find("a.iusc")
	results := make([]domain.Result, 0, anchors.Length())
	anchors.Each(func(_ int, s *goquery.Selection) {
		raw := attr(s, "m")
		if raw == "" {
			return
		}
		var meta bingImageMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return
		}
		if meta.MediaURL == "" {
			return
		}
		results = appendUsable(results, domain.Result{
			Title:     clean(meta.Title),
			Image:     meta.MediaURL,
			Thumbnail: meta.ThumbURL,
			PageURL:   meta.PageURL,
		})
	})
	return results, nil
}
