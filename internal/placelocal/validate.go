package placelocal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ValidateTag checks that markup contains the element rendered by its tag
// type, e.g. an <iframe> for "iframe" tags.
func ValidateTag(markup, tagType string) error {
	if strings.TrimSpace(markup) == "" {
		return &InvalidTagError{Type: tagType, Message: "markup is empty"}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return &InvalidTagError{Type: tagType, Message: "markup cannot be parsed: " + err.Error()}
	}
	sel := doc.Find(tagType)
	if sel.Length() == 0 {
		return &InvalidTagError{Type: tagType, Message: "no <" + tagType + "> element"}
	}
	if tagType == "iframe" {
		if src, _ := sel.First().Attr("src"); strings.TrimSpace(src) == "" {
			if _, hasDoc := sel.First().Attr("srcdoc"); !hasDoc {
				return &InvalidTagError{Type: tagType, Message: "iframe has no src"}
			}
		}
	}
	return nil
}
