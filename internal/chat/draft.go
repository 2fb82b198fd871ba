package chat

// Draft is the outgoing message being typed. The word count is always
// derived from the text, never stored.
type Draft struct {
	text string
}

// NewDraft returns a draft holding text.
func NewDraft(text string) *Draft {
	return &Draft{text: text}
}

func (d *Draft) Set(text string) { d.text = text }

func (d *Draft) Text() string { return d.text }

// Insert appends s at the end of the text as is; "hi" plus an emoji stays
// one word.
func (d *Draft) Insert(s string) { d.text += s }

func (d *Draft) Words() int { return WordCount(d.text) }

// Sendable reports whether Send would accept the draft's content.
func (d *Draft) Sendable() bool {
	n := d.Words()
	return n > 0 && n <= MaxWords
}

func (d *Draft) Clear() { d.text = "" }
