package document

import (
	"math"
	"strings"
	"unicode/utf8"
)

const wordsPerMinute = 200

// Stats mirrors the composer's document stats card.
type Stats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	ReadingMinutes int `json:"reading_minutes"`
}

// PlainText extracts the text of every text block, one block per line.
func PlainText(doc *Node) string {
	var lines []string
	collectLines(doc, &lines)
	return strings.Join(lines, "\n")
}

func collectLines(n *Node, lines *[]string) {
	switch n.Type {
	case NodeParagraph, NodeHeading, NodeCodeBlock:
		var b strings.Builder
		for _, child := range n.Content {
			switch child.Type {
			case NodeText:
				b.WriteString(child.Text)
			case NodeHardBreak:
				b.WriteString("\n")
			}
		}
		*lines = append(*lines, b.String())
	case NodeImage:
		if alt := n.AttrString("alt"); alt != "" {
			*lines = append(*lines, alt)
		}
	default:
		for _, child := range n.Content {
			collectLines(child, lines)
		}
	}
}

// ComputeStats counts whitespace-separated words and runes; reading time rounds up.
func ComputeStats(text string) Stats {
	words := len(strings.Fields(text))
	return Stats{
		Words:          words,
		Characters:     utf8.RuneCountInString(text),
		ReadingMinutes: int(math.Ceil(float64(words) / wordsPerMinute)),
	}
}
