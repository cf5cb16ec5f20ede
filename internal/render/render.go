// Package render turns assist results (markdown or HTML fragments) into document nodes.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/cache"
	"github.com/debemdeboas/composer/internal/document"
	"github.com/debemdeboas/composer/internal/util"
)

var renderLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

type Engine string

const (
	EngineMmark   Engine = "mmark"
	EngineClassic Engine = "classic"
)

func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case EngineMmark, "":
		return EngineMmark, nil
	case EngineClassic:
		return EngineClassic, nil
	default:
		return "", fmt.Errorf("unknown markdown renderer %q", name)
	}
}

// maxCachedRenders caps the markdown cache; it is reset once full.
const maxCachedRenders = 256

type Renderer struct {
	engine Engine
	cache  *cache.Cache[string, []byte]
	limit  int
}

func New(engine Engine) *Renderer {
	if engine == "" {
		engine = EngineMmark
	}
	return &Renderer{
		engine: engine,
		cache:  cache.NewCache[string, []byte](),
		limit:  maxCachedRenders,
	}
}

// Fragment converts an assist result into blocks ready for insertion. Results that
// start with a tag are treated as HTML, everything else as markdown.
func (r *Renderer) Fragment(s string) ([]*document.Node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, document.ErrEmptyFragment
	}

	src := s
	if !strings.HasPrefix(s, "<") {
		src = string(r.Markdown([]byte(s)))
	}

	nodes, err := ParseHTML(src)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, document.ErrEmptyFragment
	}
	return nodes, nil
}

// Markdown renders md to HTML, caching by content hash.
func (r *Renderer) Markdown(md []byte) []byte {
	key := string(r.engine) + ":" + util.ContentHash(md)
	if cached, ok := r.cache.Get(key); ok {
		renderLogger.Debug().Str("key", key).Msg("Cache hit for rendered markdown")
		return cached
	}

	body := util.StripFrontMatter(md)

	var out []byte
	switch r.engine {
	case EngineClassic:
		out = renderClassic(body)
	default:
		out = renderMmark(body)
	}

	if r.cache.Len() >= r.limit {
		renderLogger.Debug().Int("entries", r.cache.Len()).Msg("Render cache full, resetting")
		r.cache.Clear()
	}
	r.cache.Set(key, out)
	return out
}

// Include directives are disabled: fragments come from a remote service and must
// never pull local files into the document.
func renderClassic(md []byte) []byte {
	p := parser.NewWithExtensions(
		(parser.CommonExtensions | parser.Footnotes | parser.SuperSubscript | parser.NoIntraEmphasis) &^ parser.Includes,
	)
	doc := markdown.Parse(markdown.NormalizeNewlines(md), p)

	opts := md_html.RendererOptions{Flags: md_html.CommonFlags}
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func renderMmark(md []byte) []byte {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions((mparser.Extensions | parser.NoIntraEmphasis) &^ parser.Includes)
	p.Opts = parser.Options{
		ParserHook: mparser.Hook,
		Flags:      parser.FlagsNone,
	}
	doc := markdown.Parse(md, p)

	mhtmlOpts := mhtml.RendererOptions{Language: lang.New("en")}
	opts := md_html.RendererOptions{
		Flags: md_html.CommonFlags,
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if code, ok := node.(*ast.CodeBlock); ok && entering {
				writeCodeBlock(w, code)
				return ast.GoToNext, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
	}
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func writeCodeBlock(w io.Writer, code *ast.CodeBlock) {
	class := ""
	if lang := strings.Fields(string(code.Info)); len(lang) > 0 {
		class = fmt.Sprintf(` class="language-%s"`, html.EscapeString(lang[0]))
	}
	fmt.Fprintf(w, "<pre><code%s>%s</code></pre>\n", class, html.EscapeString(string(code.Literal)))
}
