package fetch

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

const maxDepth = 64

// renderMarkdown converts a parsed HTML tree to simplified markdown.
func renderMarkdown(root *html.Node) string {
	var sb strings.Builder
	writeNode(root, &sb, 0)
	return cleanMarkdown(sb.String())
}

func writeNode(n *html.Node, sb *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}

	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "form", "head":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			sb.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		case "p", "div", "section", "article", "table", "blockquote":
			sb.WriteString("\n\n")
		case "br", "tr":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "code":
			if !insidePre(n) {
				sb.WriteString("`")
			}
		case "pre":
			sb.WriteString("\n\n```\n")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "a":
			if linkTarget(n) != "" {
				sb.WriteString("[")
			}
		case "img":
			if alt := attr(n, "alt"); alt != "" {
				sb.WriteString(fmt.Sprintf("[Image: %s] ", alt))
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(c, sb, depth+1)
	}

	if n.Type != html.ElementNode {
		return
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		sb.WriteString("\n\n")
	case "code":
		if !insidePre(n) {
			sb.WriteString("`")
		}
	case "pre":
		sb.WriteString("\n```\n\n")
	case "strong", "b":
		sb.WriteString("**")
	case "em", "i":
		sb.WriteString("*")
	case "a":
		if href := linkTarget(n); href != "" {
			sb.WriteString(fmt.Sprintf("](%s) ", href))
		}
	}
}

func linkTarget(n *html.Node) string {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return href
}

func insidePre(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "pre" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanMarkdown(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
