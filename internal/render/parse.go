package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/debemdeboas/composer/internal/document"
)

var whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)

// ParseHTML converts an HTML fragment into document blocks. Elements outside the
// document schema are flattened into their children; script and style are dropped.
func ParseHTML(src string) ([]*document.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil, fmt.Errorf("parse html fragment: %w", err)
	}

	var c converter
	for _, n := range nodes {
		c.node(n, nil)
	}
	c.flush()
	return c.out, nil
}

type converter struct {
	out    []*document.Node
	inline []*document.Node
}

func (c *converter) flush() {
	if p := paragraphOf(c.inline); p != nil {
		c.out = append(c.out, p)
	}
	c.inline = nil
}

func (c *converter) block(n *document.Node) {
	c.flush()
	c.out = append(c.out, n)
}

func (c *converter) children(n *html.Node, marks []document.Mark) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.node(ch, marks)
	}
}

func (c *converter) node(n *html.Node, marks []document.Mark) {
	switch n.Type {
	case html.TextNode:
		if n.Data != "" {
			c.inline = append(c.inline, document.Text(whitespaceRun.ReplaceAllString(n.Data, " "), marks...))
		}
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Head, atom.Title, atom.Meta, atom.Link:
		return

	case atom.P:
		c.flush()
		c.children(n, marks)
		c.flush()

	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level, _ := strconv.Atoi(n.Data[1:])
		c.flush()
		inline := trimInline(inlineOf(n, marks))
		if len(inline) > 0 {
			c.block(document.Heading(level, inline...))
		}

	case atom.Ul, atom.Ol:
		list := &document.Node{Type: document.NodeBulletList}
		if n.DataAtom == atom.Ol {
			list.Type = document.NodeOrderedList
			if start, err := strconv.Atoi(attr(n, "start")); err == nil && start != 1 {
				list.SetAttr("start", start)
			}
		}
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode {
				continue
			}
			if content := blocksOf(li, marks); len(content) > 0 {
				list.Content = append(list.Content, &document.Node{Type: document.NodeListItem, Content: content})
			}
		}
		if len(list.Content) > 0 {
			c.block(list)
		}

	case atom.Blockquote:
		if content := blocksOf(n, marks); len(content) > 0 {
			c.block(&document.Node{Type: document.NodeBlockquote, Content: content})
		}

	case atom.Pre:
		c.block(codeBlock(n))

	case atom.Hr:
		c.block(&document.Node{Type: document.NodeHorizontalRule})

	case atom.Img:
		if src := attr(n, "src"); src != "" {
			c.block(document.Image(src, attr(n, "alt")))
		}

	case atom.Br:
		c.inline = append(c.inline, &document.Node{Type: document.NodeHardBreak})

	case atom.Strong, atom.B:
		c.children(n, withMark(marks, document.Mark{Type: document.MarkBold}))
	case atom.Em, atom.I:
		c.children(n, withMark(marks, document.Mark{Type: document.MarkItalic}))
	case atom.Code:
		c.children(n, withMark(marks, document.Mark{Type: document.MarkCode}))
	case atom.S, atom.Del, atom.Strike:
		c.children(n, withMark(marks, document.Mark{Type: document.MarkStrike}))
	case atom.U:
		c.children(n, withMark(marks, document.Mark{Type: document.MarkUnderline}))
	case atom.A:
		if href := attr(n, "href"); href != "" {
			c.children(n, withMark(marks, document.Link(href)))
		} else {
			c.children(n, marks)
		}

	default:
		if isBlockContainer(n.DataAtom) {
			c.flush()
			c.children(n, marks)
			c.flush()
			return
		}
		c.children(n, marks)
	}
}

func blocksOf(n *html.Node, marks []document.Mark) []*document.Node {
	var c converter
	c.children(n, marks)
	c.flush()
	return c.out
}

// inlineOf collects the inline content of n, discarding any nested blocks.
func inlineOf(n *html.Node, marks []document.Mark) []*document.Node {
	var c converter
	c.children(n, marks)
	inline := c.inline
	for _, b := range c.out {
		if b.Type == document.NodeParagraph {
			inline = append(inline, b.Content...)
		}
	}
	return inline
}

func codeBlock(pre *html.Node) *document.Node {
	var b strings.Builder
	var language string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.DataAtom == atom.Code && language == "" {
			language = languageClass(attr(n, "class"))
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(pre)

	code := strings.TrimSuffix(b.String(), "\n")
	if language == "" {
		language = DetectLanguage(code)
	} else {
		language = NormalizeLanguage(language)
	}

	node := &document.Node{Type: document.NodeCodeBlock}
	if language != "" {
		node.SetAttr("language", language)
	}
	if code != "" {
		node.Content = []*document.Node{document.Text(code)}
	}
	return node
}

func languageClass(class string) string {
	for _, f := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(f, "language-"); ok && lang != "" {
			return lang
		}
		if lang, ok := strings.CutPrefix(f, "lang-"); ok && lang != "" {
			return lang
		}
	}
	return ""
}

// paragraphOf returns nil when inline holds nothing but whitespace.
func paragraphOf(inline []*document.Node) *document.Node {
	inline = trimInline(inline)
	if len(inline) == 0 {
		return nil
	}
	return document.Paragraph(inline...)
}

func trimInline(inline []*document.Node) []*document.Node {
	for len(inline) > 0 && inline[0].Type == document.NodeText {
		inline[0].Text = strings.TrimLeft(inline[0].Text, " ")
		if inline[0].Text != "" {
			break
		}
		inline = inline[1:]
	}
	for len(inline) > 0 {
		last := inline[len(inline)-1]
		if last.Type == document.NodeHardBreak {
			inline = inline[:len(inline)-1]
			continue
		}
		if last.Type != document.NodeText {
			break
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		inline = inline[:len(inline)-1]
	}

	out := inline[:0:0]
	for _, n := range inline {
		if n.Type == document.NodeText && n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func withMark(marks []document.Mark, m document.Mark) []document.Mark {
	out := make([]document.Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isBlockContainer(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer,
		atom.Aside, atom.Nav, atom.Figure, atom.Figcaption, atom.Details, atom.Summary,
		atom.Table, atom.Tr, atom.Dl, atom.Dt, atom.Dd, atom.Body, atom.Html:
		return true
	}
	return false
}
