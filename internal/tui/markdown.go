package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Pre-compiled patterns for the HTML-to-terminal pass.
var (
	codeBlockRegex = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	inlineCodeRe   = regexp.MustCompile(`<code>([^<]+)</code>`)
	headingRegex   = regexp.MustCompile(`(?s)<h([1-3]) id="[^"]*">(.*?)</h[1-3]>`)
	strongRegex    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex        = regexp.MustCompile(`<em>(.*?)</em>`)
	linkRegex      = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	tableRegex     = regexp.MustCompile(`(?s)<table>(.*?)</table>`)
	rowRegex       = regexp.MustCompile(`(?s)<tr>(.*?)</tr>`)
	cellRegex      = regexp.MustCompile(`(?s)<t[hd][^>]*>(.*?)</t[hd]>`)
	liRegex        = regexp.MustCompile(`<li>(.*?)</li>`)
	listRegex      = regexp.MustCompile(`(?s)<(ul|ol)>(.*?)</(?:ul|ol)>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]+>`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer renders bot replies (GFM, tables included) for the chat
// viewport, with chroma-highlighted code blocks.
type MarkdownRenderer struct {
	md        goldmark.Markdown
	theme     Theme
	formatter chroma.Formatter
	style     *chroma.Style
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
		),
	)

	style := styles.Get(theme.CodeStyle)
	if style == nil {
		style = styles.Fallback
	}
	return &MarkdownRenderer{
		md:        md,
		theme:     theme,
		formatter: formatters.Get("terminal256"),
		style:     style,
	}
}

// Render converts markdown to styled terminal text. On any conversion error
// the raw text is returned so a bad reply never blanks a bubble.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent
	t := r.theme

	// Code blocks first, shelved behind placeholders so later passes cannot
	// mangle highlighted output.
	var shelved []string
	result = codeBlockRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := codeBlockRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		code := decodeHTMLEntities(matches[2])
		highlighted := r.highlight(code, matches[1])
		styled := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1).
			Render(highlighted)
		shelved = append(shelved, styled)
		return fmt.Sprintf("\n{{BLOCK_%d}}\n", len(shelved)-1)
	})

	// Tables next, also shelved.
	result = tableRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := tableRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		shelved = append(shelved, r.renderTable(matches[1], width))
		return fmt.Sprintf("\n{{BLOCK_%d}}\n", len(shelved)-1)
	})

	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Foreground(t.Accent2).Render(decodeHTMLEntities(matches[1]))
	})

	result = headingRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := headingRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		text := htmlTagRegex.ReplaceAllString(matches[2], "")
		return lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Render(text) + "\n"
	})

	result = strongRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := strongRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Bold(true).Render(matches[1])
	})

	result = emRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := emRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Italic(true).Render(matches[1])
	})

	result = linkRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := linkRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		return lipgloss.NewStyle().Foreground(t.Accent).Underline(true).
			Render(fmt.Sprintf("%s (%s)", matches[2], matches[1]))
	})

	result = listRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := listRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		ordered := matches[1] == "ol"
		items := liRegex.FindAllStringSubmatch(matches[2], -1)
		var list strings.Builder
		for i, item := range items {
			if len(item) < 2 {
				continue
			}
			marker := "• "
			if ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			list.WriteString("  " + lipgloss.NewStyle().Foreground(t.Accent).Render(marker))
			list.WriteString(htmlTagRegex.ReplaceAllString(item[1], ""))
			list.WriteString("\n")
		}
		return list.String()
	})

	result = strings.ReplaceAll(result, "<p>", "")
	result = strings.ReplaceAll(result, "</p>", "\n")
	result = strings.ReplaceAll(result, "<br>", "\n")
	result = strings.ReplaceAll(result, "<br/>", "\n")
	result = strings.ReplaceAll(result, "<br />", "\n")

	for i, block := range shelved {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{BLOCK_%d}}", i), block)
	}

	result = htmlTagRegex.ReplaceAllString(result, "")
	result = decodeHTMLEntities(result)
	result = multiNewline.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// renderTable lays a parsed HTML table out as aligned columns with a ruled
// header, sized to the narrowest width that fits.
func (r *MarkdownRenderer) renderTable(inner string, width int) string {
	var rows [][]string
	for _, row := range rowRegex.FindAllStringSubmatch(inner, -1) {
		var cells []string
		for _, cell := range cellRegex.FindAllStringSubmatch(row[1], -1) {
			text := decodeHTMLEntities(htmlTagRegex.ReplaceAllString(cell[1], ""))
			cells = append(cells, strings.TrimSpace(text))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	widths := make([]int, cols)
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	headStyle := lipgloss.NewStyle().Bold(true).Foreground(r.theme.Accent)
	for ri, row := range rows {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			padded := cell + strings.Repeat(" ", widths[i]-len([]rune(cell)))
			if ri == 0 {
				padded = headStyle.Render(padded)
			}
			b.WriteString("│ " + padded + " ")
		}
		b.WriteString("│\n")
		if ri == 0 {
			for i := 0; i < cols; i++ {
				b.WriteString("├" + strings.Repeat("─", widths[i]+2))
			}
			b.WriteString("┤\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

func decodeHTMLEntities(s string) string {
	replacements := [][2]string{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", "\""},
		{"&#39;", "'"},
		{"&#x27;", "'"},
		{"&#x60;", "`"},
		{"&nbsp;", " "},
		{"&hellip;", "..."},
	}
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}
