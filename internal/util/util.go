// Package util provides content hashing and front matter helpers shared by the draft engine.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/mmarkdown/mmark/v2/mast"
)

var ErrNoFrontMatter = errors.New("no front matter")

var frontMatterDelimiter = []byte("%%%")

// FrontMatter is a decoded mmark title block plus the markdown that follows it.
type FrontMatter struct {
	*mast.TitleData

	// Consumed is the number of bytes of the normalized input taken by the block.
	Consumed int
	Body     []byte
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// GetFrontMatter decodes a leading %%%-delimited TOML block. Leading blank lines are
// allowed; anything else before the opening delimiter means there is no front matter.
func GetFrontMatter(md []byte) (*FrontMatter, error) {
	md = markdown.NormalizeNewlines(md)
	trimmed := bytes.TrimLeft(md, "\n \t")
	lead := len(md) - len(trimmed)

	if !bytes.HasPrefix(trimmed, frontMatterDelimiter) {
		return nil, ErrNoFrontMatter
	}

	rest := trimmed[len(frontMatterDelimiter):]
	end := bytes.Index(rest, frontMatterDelimiter)
	if end == -1 {
		return nil, fmt.Errorf("unterminated front matter: %w", ErrNoFrontMatter)
	}

	info := &FrontMatter{TitleData: &mast.TitleData{}}
	if _, err := toml.Decode(string(rest[:end]), info.TitleData); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	consumed := lead + len(frontMatterDelimiter) + end + len(frontMatterDelimiter)
	if consumed < len(md) && md[consumed] == '\n' {
		consumed++
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = consumed
	info.Body = md[consumed:]

	return info, nil
}

// StripFrontMatter returns md without a leading front matter block, if there is one.
func StripFrontMatter(md []byte) []byte {
	info, err := GetFrontMatter(md)
	if err != nil {
		return md
	}
	return info.Body
}
