package quotes

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/harvester/internal/models"
)

// KeyColumn is the column quote tables are deduplicated on
const KeyColumn = "quote"

// Columns lists the quote table columns
var Columns = []string{"quote", "author", "tags"}

// ParseQuotes extracts the quote cards from one listing page and resolves the
// "next" pagination link against pageURL. next is empty on the last page.
func ParseQuotes(html []byte, pageURL string) ([]models.Row, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, "", &models.ParseError{Key: pageURL, Reason: fmt.Sprintf("invalid HTML: %v", err)}
	}

	var rows []models.Row
	doc.Find(".quote").Each(func(i int, card *goquery.Selection) {
		text := strings.TrimSpace(card.Find(".text").First().Text())
		if text == "" {
			return
		}

		var tags []string
		card.Find(".tags .tag").Each(func(j int, tag *goquery.Selection) {
			if t := strings.TrimSpace(tag.Text()); t != "" {
				tags = append(tags, t)
			}
		})

		rows = append(rows, models.Row{
			Key: text,
			Values: map[string]string{
				"quote":  text,
				"author": strings.TrimSpace(card.Find(".author").First().Text()),
				"tags":   strings.Join(tags, "|"),
			},
		})
	})

	href, ok := doc.Find("li.next a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return rows, "", nil
	}

	next, err := resolveURL(pageURL, href)
	if err != nil {
		return rows, "", &models.ParseError{Key: pageURL, Field: "li.next a", Reason: err.Error()}
	}
	return rows, next, nil
}

func resolveURL(base string, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", href, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
