package richtext

// Editor 持有文档与当前选区，每次内容变化都通过回调通知。
type Editor struct {
	doc      *Document
	sel      *Selection
	onChange func(html string)
	last     string
}

// NewEditor 加载内容，onChange 可为 nil。
func NewEditor(content string, onChange func(html string)) (*Editor, error) {
	doc, err := Parse(content)
	if err != nil {
		return nil, err
	}
	return &Editor{doc: doc, onChange: onChange, last: doc.HTML()}, nil
}

// Document 返回底层文档模型。
func (e *Editor) Document() *Document { return e.doc }

// HTML 返回当前内容。
func (e *Editor) HTML() string { return e.doc.HTML() }

// Selection 返回当前选区，没有时为 nil。
func (e *Editor) Selection() *Selection {
	if e.sel == nil {
		return nil
	}
	s := *e.sel
	return &s
}

// Select 设置选区，超出范围时截断。
func (e *Editor) Select(start, end int) {
	clamp := func(p int) int {
		if p < 0 {
			return 0
		}
		if p > e.doc.Len() {
			return e.doc.Len()
		}
		return p
	}
	s := Selection{Start: clamp(start), End: clamp(end)}.normalized()
	e.sel = &s
}

// ClearSelection 清除选区（如编辑区失去焦点）。
func (e *Editor) ClearSelection() { e.sel = nil }

// SetContent 用外部内容（选择主题、导入文件）重新同步编辑器。
// 与编辑器最近输出相同的内容被忽略，选区保持不变。不触发回调。
func (e *Editor) SetContent(content string) error {
	if content == e.last {
		return nil
	}
	doc, err := Parse(content)
	if err != nil {
		return err
	}
	e.doc = doc
	e.sel = nil
	e.last = doc.HTML()
	return nil
}

// InsertPlaceholder 在选区处插入 {{tag}} 并把光标移到其后；没有选区时返回 false 且不做修改。
func (e *Editor) InsertPlaceholder(tag string) bool {
	next, ok := e.doc.InsertPlaceholder(e.sel, tag)
	if !ok {
		return false
	}
	e.sel = next
	e.changed()
	return true
}

// Paste 以纯文本形式把 raw 粘贴到选区。
func (e *Editor) Paste(raw string) error {
	if e.sel == nil {
		return nil
	}
	next, err := e.doc.Paste(*e.sel, raw)
	if err != nil {
		return err
	}
	e.sel = next
	e.changed()
	return nil
}

// Format 对选区应用样式。
func (e *Editor) Format(m Mark) error {
	if e.sel == nil || e.sel.Collapsed() {
		return nil
	}
	if err := e.doc.ApplyMark(e.sel.Start, e.sel.End, m); err != nil {
		return err
	}
	e.changed()
	return nil
}

// SetBlock 修改选区起点所在的块。
func (e *Editor) SetBlock(kind BlockKind, align Align) error {
	if e.sel == nil {
		return nil
	}
	if err := e.doc.SetBlock(e.sel.Start, kind, align); err != nil {
		return err
	}
	e.changed()
	return nil
}

// Apply 执行一条操作并通知回调。
func (e *Editor) Apply(op Op) error {
	if err := e.doc.Apply(op); err != nil {
		return err
	}
	if e.sel != nil && e.sel.End > e.doc.Len() {
		e.Select(e.sel.Start, e.doc.Len())
	}
	e.changed()
	return nil
}

func (e *Editor) changed() {
	e.last = e.doc.HTML()
	if e.onChange != nil {
		e.onChange(e.last)
	}
}
