package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := Parse(content)
	require.NoError(t, err)
	return doc
}

func TestParseSerializeRoundTrip(t *testing.T) {
	in := `<h1 style="text-align: center">Offer Letter</h1>` +
		`<p>Dear <strong>{{candidate_name}}</strong>,</p>` +
		`<ul><li>One</li><li>Two</li></ul>` +
		`<p><span style="font-size: 14px; color: #333">Small</span> <em><u>note</u></em></p>`

	doc := mustParse(t, in)
	assert.Equal(t, in, doc.HTML())
	assert.Equal(t, "Offer Letter\nDear {{candidate_name}},\nOne\nTwo\nSmall note", doc.Text())

	again := mustParse(t, doc.HTML())
	assert.Equal(t, doc.HTML(), again.HTML())
}

func TestParseNormalisesForeignMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "<p></p>"},
		{"bare text", "hello", "<p>hello</p>"},
		{"whitespace collapsed", "<p>  a \n\t b  </p>", "<p>a b</p>"},
		{"line break splits block", "<p>a<br>b</p>", "<p>a</p><p>b</p>"},
		{"paragraph inside list item", "<ol><li><p>First</p></li></ol>", "<ol><li>First</li></ol>"},
		{"script dropped", "<p>x</p><script>alert(1)</script>", "<p>x</p>"},
		{"style weight", `<p><span style="font-weight: 700">B</span></p>`, "<p><strong>B</strong></p>"},
		{"h4 becomes h3", "<h4>Sub</h4>", "<h3>Sub</h3>"},
		{"align attribute", `<div align="right">Sig</div>`, `<p style="text-align: right">Sig</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustParse(t, tt.in).HTML())
		})
	}
}

func TestInsertPlaceholder(t *testing.T) {
	t.Run("at cursor", func(t *testing.T) {
		doc := mustParse(t, "<p>Hello world</p>")
		next, ok := doc.InsertPlaceholder(Cursor(6), "name")
		require.True(t, ok)
		assert.Equal(t, "<p>Hello {{name}}world</p>", doc.HTML())
		assert.Equal(t, &Selection{Start: 14, End: 14}, next)
	})

	t.Run("replaces selection", func(t *testing.T) {
		doc := mustParse(t, "<p>Hello world</p>")
		next, ok := doc.InsertPlaceholder(&Selection{Start: 11, End: 6}, "name")
		require.True(t, ok)
		assert.Equal(t, "<p>Hello {{name}}</p>", doc.HTML())
		assert.Equal(t, 14, next.Start)
		assert.True(t, next.Collapsed())
	})

	t.Run("no selection is a no-op", func(t *testing.T) {
		doc := mustParse(t, "<p>Hello</p>")
		next, ok := doc.InsertPlaceholder(nil, "name")
		assert.False(t, ok)
		assert.Nil(t, next)
		assert.Equal(t, "<p>Hello</p>", doc.HTML())
		assert.Empty(t, doc.Ops())
	})

	t.Run("inherits marks", func(t *testing.T) {
		doc := mustParse(t, "<p><strong>Dear</strong></p>")
		_, ok := doc.InsertPlaceholder(Cursor(4), "name")
		require.True(t, ok)
		assert.Equal(t, "<p><strong>Dear{{name}}</strong></p>", doc.HTML())
	})
}

func TestPasteIsPlainText(t *testing.T) {
	doc := mustParse(t, "<p>ab</p>")
	next, err := doc.Paste(Selection{Start: 1, End: 1}, `<b style="color:red">X</b>&amp;Y`)
	require.NoError(t, err)
	assert.Equal(t, "<p>aX&amp;Yb</p>", doc.HTML())
	assert.Equal(t, 4, next.Start)
}

func TestApplyMark(t *testing.T) {
	doc := mustParse(t, "<p>Hello world</p>")

	require.NoError(t, doc.ApplyMark(0, 5, Mark{Kind: MarkBold}))
	assert.Equal(t, "<p><strong>Hello</strong> world</p>", doc.HTML())

	require.NoError(t, doc.ApplyMark(0, 5, Mark{Kind: MarkBold}))
	assert.Equal(t, "<p>Hello world</p>", doc.HTML())

	require.NoError(t, doc.ApplyMark(6, 11, Mark{Kind: MarkFontSize, Value: "18px"}))
	assert.Equal(t, `<p>Hello <span style="font-size: 18px">world</span></p>`, doc.HTML())

	m, err := doc.MarksAt(7)
	require.NoError(t, err)
	assert.Equal(t, "18px", m.FontSize)

	assert.ErrorIs(t, doc.ApplyMark(0, 2, Mark{Kind: "blink"}), ErrUnknownMark)
}

func TestBlocks(t *testing.T) {
	doc := mustParse(t, "<p>ab</p>")

	_, err := doc.Insert(1, "\n")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p><p>b</p>", doc.HTML())

	require.NoError(t, doc.SetBlock(2, BulletItem, AlignDefault))
	assert.Equal(t, "<p>a</p><ul><li>b</li></ul>", doc.HTML())

	require.NoError(t, doc.SetBlock(0, Heading2, AlignCenter))
	blk, err := doc.BlockAt(0)
	require.NoError(t, err)
	assert.Equal(t, Block{Kind: Heading2, Align: AlignCenter}, blk)

	require.NoError(t, doc.Delete(1, 2))
	assert.Equal(t, `<h2 style="text-align: center">ab</h2>`, doc.HTML())
}

func TestRangeErrors(t *testing.T) {
	doc := mustParse(t, "<p>abc</p>")
	assert.ErrorIs(t, doc.Delete(0, 99), ErrOutOfRange)
	assert.ErrorIs(t, doc.Delete(2, 1), ErrOutOfRange)
	_, err := doc.Insert(-1, "x")
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, doc.Apply(Op{Kind: "rotate"}), ErrUnknownOp)
	assert.Equal(t, "<p>abc</p>", doc.HTML())
}

func TestReplayReproducesDocument(t *testing.T) {
	base := "<p>Dear candidate,</p><p>Welcome.</p>"
	doc := mustParse(t, base)

	_, err := doc.Insert(5, "dear ")
	require.NoError(t, err)
	require.NoError(t, doc.ApplyMark(0, 4, Mark{Kind: MarkItalic}))
	_, ok := doc.InsertPlaceholder(&Selection{Start: 10, End: 19}, "candidate_name")
	require.True(t, ok)
	require.NoError(t, doc.SetBlock(0, Heading3, AlignDefault))
	_, err = doc.Paste(Selection{Start: doc.Len(), End: doc.Len()}, "<i>!</i>")
	require.NoError(t, err)

	replayed, err := Replay(base, doc.Ops())
	require.NoError(t, err)
	assert.Equal(t, doc.HTML(), replayed.HTML())
	assert.Equal(t, doc.Ops(), replayed.Ops())
}

func TestReplayRejectsOutOfRangePlaceholder(t *testing.T) {
	_, err := Replay("<p>abc</p>", []Op{{Kind: OpPlaceholder, Pos: 2, End: 40, Text: "name"}})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestEditor(t *testing.T) {
	var changes []string
	ed, err := NewEditor("<p>Hello</p>", func(html string) { changes = append(changes, html) })
	require.NoError(t, err)

	assert.False(t, ed.InsertPlaceholder("name"), "no selection")
	assert.Empty(t, changes)

	ed.Select(5, 5)
	require.True(t, ed.InsertPlaceholder("name"))
	assert.Equal(t, []string{"<p>Hello{{name}}</p>"}, changes)
	assert.Equal(t, &Selection{Start: 13, End: 13}, ed.Selection())

	// An echo of the editor's own output keeps the selection.
	require.NoError(t, ed.SetContent("<p>Hello{{name}}</p>"))
	assert.NotNil(t, ed.Selection())

	require.NoError(t, ed.SetContent("<h1>Offer</h1>"))
	assert.Nil(t, ed.Selection())
	assert.Equal(t, "<h1>Offer</h1>", ed.HTML())
	assert.Len(t, changes, 1)

	ed.Select(0, 5)
	require.NoError(t, ed.Format(Mark{Kind: MarkUnderline}))
	assert.Equal(t, "<h1><u>Offer</u></h1>", changes[len(changes)-1])

	ed.Select(-4, 100)
	assert.Equal(t, &Selection{Start: 0, End: 5}, ed.Selection())
}
