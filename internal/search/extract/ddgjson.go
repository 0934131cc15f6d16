package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

// JSON-ленты DuckDuckGo (news.js, i.js, v.js) - прямая проекция полей.
// Записи разбираются по одной, битая запись не ломает остальные.

type ddgFeed struct {
	Results []json.RawMessage `json:"results"`
}

func decodeFeed(body []byte) ([]json.RawMessage, error) {
	var feed ddgFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return feed.Results, nil
}

type ddgNewsItem struct {
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Source  string          `json:"source"`
	Date    json.RawMessage `json:"date"`
	Image   string          `json:"image"`
	Excerpt string          `json:"excerpt"`
}

func DuckDuckGoNews(body []byte) ([]domain.Result, error) {
	records, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(records))
	for _, raw := range records {
		var n ddgNewsItem
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		results = appendUsable(results, domain.Result{
			Title:   clean(n.Title),
			URL:     n.URL,
			Source:  clean(n.Source),
			Date:    flexDate(n.Date),
			Image:   n.Image,
			Snippet: clean(n.Excerpt),
		})
	}
	return results, nil
}

type ddgImageItem struct {
	Title     string `json:"title"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

func DuckDuckGoImages(body []byte) ([]domain.Result, error) {
	records, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(records))
	for _, raw := range records {
		var img ddgImageItem
		if err := json.Unmarshal(raw, &img); err != nil {
			continue
		}
		results = appendUsable(results, domain.Result{
			Title:     clean(img.Title),
			Image:     img.Image,
			Thumbnail: img.Thumbnail,
			URL:       img.URL,
		})
	}
	return results, nil
}

// v.js отдаёт адрес в content, а источник в publisher; старые поля тоже принимаем
type ddgVideoItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	Publisher   string `json:"publisher"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Image       string `json:"image"`
	Images      struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"images"`
	Published string `json:"published"`
}

func DuckDuckGoVideos(body []byte) ([]domain.Result, error) {
	records, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(records))
	for _, raw := range records {
		var v ddgVideoItem
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		results = appendUsable(results, domain.Result{
			Title:       clean(v.Title),
			URL:         firstNonEmpty(v.URL, v.Content),
			Source:      clean(firstNonEmpty(v.Source, v.Publisher)),
			Description: clean(v.Description),
			Duration:    v.Duration,
			Image:       firstNonEmpty(v.Image, v.Images.Large, v.Images.Medium),
			Published:   v.Published,
		})
	}
	return results, nil
}

// flexDate: строка как есть, unix-секунды в RFC3339
func flexDate(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ""
		}
		return str
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ""
	}
	return time.Unix(secs, 0).UTC().Format(time.RFC3339)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
