package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText flattens an HTML description into whitespace-normalized text.
// Input without markup is only normalized.
func PlainText(description string) string {
	if !strings.ContainsAny(description, "<&") {
		return strings.Join(strings.Fields(description), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return strings.Join(strings.Fields(description), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
