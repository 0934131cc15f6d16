// Package extract holds the per-provider extraction strategies. Each strategy
// turns a raw upstream payload into normalized results and never fails on a
// single bad record: records without a label or an address are dropped.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// clean схлопывает пробелы и переносы
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func text(sel *goquery.Selection) string {
	return clean(sel.Text())
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return strings.TrimSpace(v)
}

// appendUsable добавляет запись, только если есть подпись и адрес
func appendUsable(results []domain.Result, r domain.Result) []domain.Result {
	if !r.IsUsable() {
		return results
	}
	return append(results, r)
}
