package richtext

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"workflowhr/internal/placeholder"
)

// OpKind 编辑操作类型。
type OpKind string

const (
	OpInsert      OpKind = "insert"
	OpDelete      OpKind = "delete"
	OpMark        OpKind = "mark"
	OpSetBlock    OpKind = "set_block"
	OpPaste       OpKind = "paste"
	OpPlaceholder OpKind = "placeholder"
)

// MarkKind 行内样式类型。
type MarkKind string

const (
	MarkBold      MarkKind = "bold"
	MarkItalic    MarkKind = "italic"
	MarkUnderline MarkKind = "underline"
	MarkFontSize  MarkKind = "font_size"
	MarkColor     MarkKind = "color"
)

// Mark 是一次行内样式修改。粗体、斜体、下划线为开关；字号与颜色取 Value，空值表示清除。
type Mark struct {
	Kind  MarkKind `json:"kind"`
	Value string   `json:"value,omitempty"`
}

// Op 是日志中的一条编辑操作。
type Op struct {
	Kind  OpKind `json:"kind"`
	Pos   int    `json:"pos"`
	End   int    `json:"end,omitempty"`
	Text  string `json:"text,omitempty"`
	Mark  *Mark  `json:"mark,omitempty"`
	Block *Block `json:"block,omitempty"`
}

// Apply 执行 op 并记入日志。
func (d *Document) Apply(op Op) error {
	switch op.Kind {
	case OpInsert:
		_, err := d.Insert(op.Pos, op.Text)
		return err
	case OpDelete:
		return d.Delete(op.Pos, op.End)
	case OpMark:
		if op.Mark == nil {
			return fmt.Errorf("mark op without mark: %w", ErrUnknownMark)
		}
		return d.ApplyMark(op.Pos, op.End, *op.Mark)
	case OpSetBlock:
		if op.Block == nil {
			return fmt.Errorf("set_block op without block: %w", ErrUnknownOp)
		}
		return d.SetBlock(op.Pos, op.Block.Kind, op.Block.Align)
	case OpPaste:
		_, err := d.Paste(Selection{Start: op.Pos, End: op.End}, op.Text)
		return err
	case OpPlaceholder:
		if _, ok := d.InsertPlaceholder(&Selection{Start: op.Pos, End: op.End}, op.Text); !ok {
			return fmt.Errorf("placeholder op %d..%d: %w", op.Pos, op.End, ErrOutOfRange)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, op.Kind)
	}
}

// Insert 在 pos 插入文本，换行拆分当前块，新字符沿用左侧字符的样式。返回新增的位置数。
func (d *Document) Insert(pos int, text string) (int, error) {
	if err := d.checkPos(pos); err != nil {
		return 0, err
	}
	n := d.insert(pos, text)
	d.log = append(d.log, Op{Kind: OpInsert, Pos: pos, Text: text})
	return n, nil
}

// Delete 删除 [from, to)，删除分隔符时后一块并入前一块。
func (d *Document) Delete(from, to int) error {
	if err := d.checkRange(from, to); err != nil {
		return err
	}
	d.delete(from, to)
	d.log = append(d.log, Op{Kind: OpDelete, Pos: from, End: to})
	return nil
}

// ApplyMark 为 [from, to) 设置样式；开关类样式在区间已全部具备时取消。
func (d *Document) ApplyMark(from, to int, m Mark) error {
	if err := d.checkRange(from, to); err != nil {
		return err
	}

	var set func(*Marks)
	switch m.Kind {
	case MarkBold:
		on := !d.all(from, to, func(mk Marks) bool { return mk.Bold })
		set = func(mk *Marks) { mk.Bold = on }
	case MarkItalic:
		on := !d.all(from, to, func(mk Marks) bool { return mk.Italic })
		set = func(mk *Marks) { mk.Italic = on }
	case MarkUnderline:
		on := !d.all(from, to, func(mk Marks) bool { return mk.Underline })
		set = func(mk *Marks) { mk.Underline = on }
	case MarkFontSize:
		set = func(mk *Marks) { mk.FontSize = m.Value }
	case MarkColor:
		set = func(mk *Marks) { mk.Color = m.Value }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMark, m.Kind)
	}

	for i := from; i < to; i++ {
		if d.cells[i].isSeparator() {
			continue
		}
		set(&d.cells[i].marks)
	}
	mark := m
	d.log = append(d.log, Op{Kind: OpMark, Pos: from, End: to, Mark: &mark})
	return nil
}

func (d *Document) all(from, to int, has func(Marks) bool) bool {
	seen := false
	for i := from; i < to; i++ {
		if d.cells[i].isSeparator() {
			continue
		}
		seen = true
		if !has(d.cells[i].marks) {
			return false
		}
	}
	return seen
}

// SetBlock 修改 pos 所在块的类型与对齐。
func (d *Document) SetBlock(pos int, kind BlockKind, align Align) error {
	if err := d.checkPos(pos); err != nil {
		return err
	}
	switch kind {
	case Paragraph, Heading1, Heading2, Heading3, BulletItem, OrderedItem:
	default:
		return fmt.Errorf("%w: block kind %q", ErrUnknownOp, kind)
	}
	b := d.blockRef(pos)
	b.Kind = kind
	b.Align = align
	d.log = append(d.log, Op{Kind: OpSetBlock, Pos: pos, Block: &Block{Kind: kind, Align: align}})
	return nil
}

// InsertPlaceholder 用 {{tag}} 替换选区并返回其后的光标；选区为 nil 或越界时 ok 为 false。
func (d *Document) InsertPlaceholder(sel *Selection, tag string) (_ *Selection, ok bool) {
	if sel == nil {
		return nil, false
	}
	s := sel.normalized()
	if d.checkRange(s.Start, s.End) != nil {
		return nil, false
	}
	token := placeholder.Token(tag)
	d.delete(s.Start, s.End)
	n := d.insert(s.Start, token)
	d.log = append(d.log, Op{Kind: OpPlaceholder, Pos: s.Start, End: s.End, Text: tag})
	return Cursor(s.Start + n), true
}

var pastePolicy = bluemonday.StrictPolicy()

// PlainPaste 去除剪贴板内容中的全部标记。
func PlainPaste(raw string) string {
	text := pastePolicy.Sanitize(raw)
	text = html.UnescapeString(text)
	return strings.ToValidUTF8(text, "")
}

// Paste 以纯文本替换选区并返回插入文本之后的光标。
func (d *Document) Paste(sel Selection, raw string) (*Selection, error) {
	s := sel.normalized()
	if err := d.checkRange(s.Start, s.End); err != nil {
		return nil, err
	}
	text := PlainPaste(raw)
	d.delete(s.Start, s.End)
	n := d.insert(s.Start, text)
	d.log = append(d.log, Op{Kind: OpPaste, Pos: s.Start, End: s.End, Text: raw})
	return Cursor(s.Start + n), nil
}

// Replay 加载 base 并按顺序重放 ops。
func Replay(base string, ops []Op) (*Document, error) {
	doc, err := Parse(base)
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		if err := doc.Apply(op); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	return doc, nil
}
