package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// Sanitize cleans a piece of page text: trims it, collapses runs of
// whitespace (the site is full of stray tabs and line feeds inside
// names) and drops non-printable characters.
func Sanitize(s string) string {
	var out strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		} else if unicode.IsSpace(c) {
			out.WriteRune(' ')
		}
	}
	return innerWhitespace.ReplaceAllString(strings.TrimSpace(out.String()), " ")
}
