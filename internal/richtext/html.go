package richtext

import (
	"fmt"
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse 将 HTML 载入新文档，只保留编辑器支持的段落、标题、列表项与对齐，
// 以及粗体、斜体、下划线、字号和颜色。其他标记只保留文本。
func Parse(content string) (*Document, error) {
	nodes, err := nethtml.ParseFragment(strings.NewReader(content), &nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	b := &builder{}
	for _, n := range nodes {
		b.walk(n, Marks{}, "")
	}
	b.closeBlock()
	return b.document(), nil
}

type parsedBlock struct {
	attr  Block
	cells []cell
}

type builder struct {
	blocks []parsedBlock
	open   bool
}

func (b *builder) cur() *parsedBlock { return &b.blocks[len(b.blocks)-1] }

// openBlock 开始新块。空块中嵌套的 p、div 沿用外层类型，<li><p>..</p></li> 仍是列表项。
func (b *builder) openBlock(attr Block, weak bool) {
	if b.open && len(b.cur().cells) == 0 {
		cur := b.cur()
		if weak {
			if attr.Align != AlignDefault {
				cur.attr.Align = attr.Align
			}
			return
		}
		cur.attr = attr
		return
	}
	b.closeBlock()
	b.blocks = append(b.blocks, parsedBlock{attr: attr})
	b.open = true
}

func (b *builder) closeBlock() {
	if !b.open {
		return
	}
	cur := b.cur()
	for len(cur.cells) > 0 && cur.cells[len(cur.cells)-1].r == ' ' {
		cur.cells = cur.cells[:len(cur.cells)-1]
	}
	b.open = false
}

func (b *builder) lineBreak() {
	if !b.open {
		b.openBlock(Block{Kind: Paragraph}, true)
	}
	attr := b.cur().attr
	b.closeBlock()
	b.blocks = append(b.blocks, parsedBlock{attr: attr})
	b.open = true
}

func (b *builder) text(s string, m Marks) {
	s = collapseSpace(s)
	if !b.open {
		if strings.TrimSpace(s) == "" {
			return
		}
		b.openBlock(Block{Kind: Paragraph}, true)
	}
	cur := b.cur()
	if n := len(cur.cells); n == 0 || cur.cells[n-1].r == ' ' {
		s = strings.TrimLeft(s, " ")
	}
	for _, r := range s {
		cur.cells = append(cur.cells, cell{r: r, marks: m})
	}
}

func (b *builder) walk(n *nethtml.Node, m Marks, list BlockKind) {
	switch n.Type {
	case nethtml.TextNode:
		b.text(n.Data, m)
		return
	case nethtml.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, m, list)
		}
		return
	}

	style := parseStyle(attrValue(n, "style"))
	align := Align(strings.ToLower(strings.TrimSpace(style["text-align"])))
	if align == AlignDefault {
		align = Align(strings.ToLower(attrValue(n, "align")))
	}

	var (
		block   Block
		isBlock bool
		weak    bool
	)
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title, atom.Meta, atom.Link:
		return
	case atom.Br:
		b.lineBreak()
		return
	case atom.Ul:
		list = BulletItem
	case atom.Ol:
		list = OrderedItem
	case atom.H1:
		block, isBlock = Block{Kind: Heading1, Align: align}, true
	case atom.H2:
		block, isBlock = Block{Kind: Heading2, Align: align}, true
	case atom.H3, atom.H4, atom.H5, atom.H6:
		block, isBlock = Block{Kind: Heading3, Align: align}, true
	case atom.Li:
		kind := list
		if kind == "" {
			kind = BulletItem
		}
		block, isBlock = Block{Kind: kind, Align: align}, true
	case atom.P, atom.Div, atom.Blockquote, atom.Pre, atom.Section, atom.Article,
		atom.Header, atom.Footer, atom.Tr:
		block, isBlock, weak = Block{Kind: Paragraph, Align: align}, true, true
	case atom.Td, atom.Th:
		b.text(" ", m)
	}

	m = inlineMarks(n, style, m)
	if isBlock {
		b.openBlock(block, weak)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c, m, list)
	}
	if isBlock {
		b.closeBlock()
	}
}

func (b *builder) document() *Document {
	if len(b.blocks) == 0 {
		return New()
	}
	d := &Document{first: b.blocks[0].attr}
	d.cells = append(d.cells, b.blocks[0].cells...)
	for _, blk := range b.blocks[1:] {
		attr := blk.attr
		d.cells = append(d.cells, cell{r: '\n', block: &attr})
		d.cells = append(d.cells, blk.cells...)
	}
	return d
}

func inlineMarks(n *nethtml.Node, style map[string]string, m Marks) Marks {
	switch n.DataAtom {
	case atom.B, atom.Strong:
		m.Bold = true
	case atom.I, atom.Em:
		m.Italic = true
	case atom.U, atom.Ins:
		m.Underline = true
	case atom.Font:
		if c := attrValue(n, "color"); c != "" {
			m.Color = c
		}
	}
	switch strings.ToLower(style["font-weight"]) {
	case "bold", "bolder", "600", "700", "800", "900":
		m.Bold = true
	}
	if strings.EqualFold(style["font-style"], "italic") {
		m.Italic = true
	}
	if strings.Contains(strings.ToLower(style["text-decoration"]), "underline") {
		m.Underline = true
	}
	if v := style["font-size"]; v != "" {
		m.FontSize = v
	}
	if v := style["color"]; v != "" {
		m.Color = v
	}
	return m
}

func parseStyle(raw string) map[string]string {
	style := map[string]string{}
	for _, decl := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name != "" && value != "" {
			style[name] = value
		}
	}
	return style
}

func attrValue(n *nethtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

// HTML 序列化文档。
func (d *Document) HTML() string {
	var b strings.Builder
	var list BlockKind

	closeList := func() {
		if list != "" {
			b.WriteString("</" + string(list) + ">")
			list = ""
		}
	}

	for _, blk := range d.blocks() {
		style := ""
		if blk.attr.Align != AlignDefault {
			style = fmt.Sprintf(` style="text-align: %s"`, html.EscapeString(string(blk.attr.Align)))
		}
		if blk.attr.isList() {
			if list != blk.attr.Kind {
				closeList()
				list = blk.attr.Kind
				b.WriteString("<" + string(list) + ">")
			}
			b.WriteString("<li" + style + ">")
			writeRuns(&b, blk.cells)
			b.WriteString("</li>")
			continue
		}
		closeList()
		tag := string(blk.attr.Kind)
		if tag == "" {
			tag = string(Paragraph)
		}
		b.WriteString("<" + tag + style + ">")
		writeRuns(&b, blk.cells)
		b.WriteString("</" + tag + ">")
	}
	closeList()
	return b.String()
}

func (d *Document) blocks() []parsedBlock {
	blocks := []parsedBlock{{attr: d.first}}
	for _, c := range d.cells {
		if c.isSeparator() {
			blocks = append(blocks, parsedBlock{attr: *c.block})
			continue
		}
		last := &blocks[len(blocks)-1]
		last.cells = append(last.cells, c)
	}
	return blocks
}

func writeRuns(b *strings.Builder, cells []cell) {
	for start := 0; start < len(cells); {
		end := start + 1
		for end < len(cells) && cells[end].marks == cells[start].marks {
			end++
		}
		var text strings.Builder
		for _, c := range cells[start:end] {
			text.WriteRune(c.r)
		}
		b.WriteString(wrapMarks(html.EscapeString(text.String()), cells[start].marks))
		start = end
	}
}

func wrapMarks(s string, m Marks) string {
	if m.Underline {
		s = "<u>" + s + "</u>"
	}
	if m.Italic {
		s = "<em>" + s + "</em>"
	}
	if m.Bold {
		s = "<strong>" + s + "</strong>"
	}
	var decls []string
	if m.FontSize != "" {
		decls = append(decls, "font-size: "+m.FontSize)
	}
	if m.Color != "" {
		decls = append(decls, "color: "+m.Color)
	}
	if len(decls) > 0 {
		s = `<span style="` + html.EscapeString(strings.Join(decls, "; ")) + `">` + s + "</span>"
	}
	return s
}
