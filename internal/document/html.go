package document

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML serializes a document tree. Unknown node types render their children only.
func RenderHTML(doc *Node) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	renderNode(&b, doc)
	return b.String()
}

func renderNode(b *strings.Builder, n *Node) {
	switch n.Type {
	case NodeDoc:
		renderContent(b, n)
	case NodeParagraph:
		wrap(b, "p", n)
	case NodeHeading:
		level := n.AttrInt("level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		wrap(b, fmt.Sprintf("h%d", level), n)
	case NodeBulletList:
		wrap(b, "ul", n)
	case NodeOrderedList:
		wrap(b, "ol", n)
	case NodeListItem:
		wrap(b, "li", n)
	case NodeBlockquote:
		wrap(b, "blockquote", n)
	case NodeCodeBlock:
		var code strings.Builder
		walkText(n, func(t *Node) { code.WriteString(t.Text) })
		if lang := n.AttrString("language"); lang != "" {
			fmt.Fprintf(b, `<pre><code class="language-%s">`, html.EscapeString(lang))
		} else {
			b.WriteString("<pre><code>")
		}
		b.WriteString(html.EscapeString(code.String()))
		b.WriteString("</code></pre>")
	case NodeHorizontalRule:
		b.WriteString("<hr>")
	case NodeImage:
		fmt.Fprintf(b, `<img src="%s"`, html.EscapeString(n.AttrString("src")))
		if alt := n.AttrString("alt"); alt != "" {
			fmt.Fprintf(b, ` alt="%s"`, html.EscapeString(alt))
		}
		b.WriteString(">")
	case NodeHardBreak:
		b.WriteString("<br>")
	case NodeText:
		b.WriteString(renderTextWithMarks(n.Text, n.Marks))
	default:
		renderContent(b, n)
	}
}

func wrap(b *strings.Builder, tag string, n *Node) {
	b.WriteString("<" + tag + ">")
	renderContent(b, n)
	b.WriteString("</" + tag + ">")
}

func renderContent(b *strings.Builder, n *Node) {
	for _, child := range n.Content {
		if child != nil {
			renderNode(b, child)
		}
	}
}

// Marks are applied from the last to the first, so the first mark ends up outermost.
func renderTextWithMarks(text string, marks []Mark) string {
	if text == "" {
		return ""
	}

	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case MarkBold:
			out = "<strong>" + out + "</strong>"
		case MarkItalic:
			out = "<em>" + out + "</em>"
		case MarkCode:
			out = "<code>" + out + "</code>"
		case MarkStrike:
			out = "<s>" + out + "</s>"
		case MarkUnderline:
			out = "<u>" + out + "</u>"
		case MarkLink:
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(marks[i].AttrString("href")), out)
		}
	}
	return out
}
