// Package richtext 是模板编辑使用的文档模型。
//
// Document 是带行内样式的扁平字符序列，块边界为分隔符，分隔符携带其后块的属性。
// 所有修改都以 Op 记入日志并可重放，HTML 只在读取时生成。
package richtext

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfRange  = errors.New("position out of range")
	ErrUnknownOp   = errors.New("unknown operation")
	ErrUnknownMark = errors.New("unknown mark")
)

// BlockKind 是块序列化后的元素类型。
type BlockKind string

const (
	Paragraph   BlockKind = "p"
	Heading1    BlockKind = "h1"
	Heading2    BlockKind = "h2"
	Heading3    BlockKind = "h3"
	BulletItem  BlockKind = "ul"
	OrderedItem BlockKind = "ol"
)

// Align 是块的对齐方式，空值表示继承。
type Align string

const (
	AlignDefault Align = ""
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// Block 块级属性。
type Block struct {
	Kind  BlockKind `json:"kind"`
	Align Align     `json:"align,omitempty"`
}

func (b Block) isList() bool { return b.Kind == BulletItem || b.Kind == OrderedItem }

// Marks 单个字符的行内样式。
type Marks struct {
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	FontSize  string `json:"font_size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Selection 是左闭右开的字符区间，折叠时即光标。
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Cursor 返回位于 pos 的光标。
func Cursor(pos int) *Selection { return &Selection{Start: pos, End: pos} }

func (s Selection) normalized() Selection {
	if s.End < s.Start {
		return Selection{Start: s.End, End: s.Start}
	}
	return s
}

// Collapsed 判断是否为光标。
func (s Selection) Collapsed() bool { return s.Start == s.End }

type cell struct {
	r     rune
	marks Marks
	// 仅分隔符设置 block
	block *Block
}

func (c cell) isSeparator() bool { return c.block != nil }

// Document 可编辑的富文本文档。
type Document struct {
	first Block
	cells []cell
	log   []Op
}

// New 返回只含一个空段落的文档。
func New() *Document {
	return &Document{first: Block{Kind: Paragraph}}
}

// Len 为字符数加块分隔符数，即可寻址位置数减一。
func (d *Document) Len() int { return len(d.cells) }

// Text 返回纯文本，块之间以换行分隔。
func (d *Document) Text() string {
	var b strings.Builder
	for _, c := range d.cells {
		if c.isSeparator() {
			b.WriteByte('\n')
			continue
		}
		b.WriteRune(c.r)
	}
	return b.String()
}

// Ops 返回操作日志的副本。
func (d *Document) Ops() []Op {
	cp := make([]Op, len(d.log))
	copy(cp, d.log)
	return cp
}

// BlockAt 返回 pos 所在块的属性。
func (d *Document) BlockAt(pos int) (Block, error) {
	if err := d.checkPos(pos); err != nil {
		return Block{}, err
	}
	return *d.blockRef(pos), nil
}

// MarksAt 返回 pos 处字符的样式。
func (d *Document) MarksAt(pos int) (Marks, error) {
	if pos < 0 || pos >= len(d.cells) || d.cells[pos].isSeparator() {
		return Marks{}, fmt.Errorf("marks at %d: %w", pos, ErrOutOfRange)
	}
	return d.cells[pos].marks, nil
}

func (d *Document) checkPos(pos int) error {
	if pos < 0 || pos > len(d.cells) {
		return fmt.Errorf("position %d (len %d): %w", pos, len(d.cells), ErrOutOfRange)
	}
	return nil
}

func (d *Document) checkRange(from, to int) error {
	if from > to {
		return fmt.Errorf("range %d..%d: %w", from, to, ErrOutOfRange)
	}
	if err := d.checkPos(from); err != nil {
		return err
	}
	return d.checkPos(to)
}

// blockRef 查找 pos 所属的块：pos 之前最近的分隔符，没有则为首块。
func (d *Document) blockRef(pos int) *Block {
	for i := pos - 1; i >= 0; i-- {
		if d.cells[i].isSeparator() {
			return d.cells[i].block
		}
	}
	return &d.first
}

// inheritedMarks 为在 pos 处输入的字符继承的样式。
func (d *Document) inheritedMarks(pos int) Marks {
	if pos > 0 && !d.cells[pos-1].isSeparator() {
		return d.cells[pos-1].marks
	}
	if pos < len(d.cells) && !d.cells[pos].isSeparator() {
		return d.cells[pos].marks
	}
	return Marks{}
}

func (d *Document) insert(pos int, text string) int {
	marks := d.inheritedMarks(pos)
	block := *d.blockRef(pos)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	added := make([]cell, 0, len(text))
	for _, r := range text {
		switch r {
		case '\r':
			continue
		case '\n':
			b := block
			added = append(added, cell{r: '\n', block: &b})
		default:
			added = append(added, cell{r: r, marks: marks})
		}
	}

	cells := make([]cell, 0, len(d.cells)+len(added))
	cells = append(cells, d.cells[:pos]...)
	cells = append(cells, added...)
	cells = append(cells, d.cells[pos:]...)
	d.cells = cells
	return len(added)
}

func (d *Document) delete(from, to int) {
	d.cells = append(d.cells[:from], d.cells[to:]...)
}
