package lexer

import (
	"strconv"
	"strings"

	"github.com/ahobson/parlance/pkg/token"
)

// Cursor is a single integer index into a token buffer. Every
// backtracking decision the parser makes is "save this index,
// attempt to parse, and restore the index on failure" — there is no
// other parser state to roll back, which is what makes speculative
// English-syntax matching (spec.md §4.3.5) cheap and exception-free.
type Cursor struct {
	tokens []token.Token
	pos    int
}

// NewCursor returns a Cursor positioned at the start of tokens.
func NewCursor(tokens []token.Token) *Cursor {
	return &Cursor{tokens: tokens}
}

// Save returns the current index for a later Restore.
func (c *Cursor) Save() int { return c.pos }

// Restore rewinds the cursor to a previously Saved index.
func (c *Cursor) Restore(mark int) { c.pos = mark }

// IsAtEnd reports whether the cursor is on the trailing EOF token.
func (c *Cursor) IsAtEnd() bool {
	return c.Current().Kind == token.EOF
}

// Current peeks at the token under the cursor without advancing.
func (c *Cursor) Current() token.Token {
	if c.pos >= len(c.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return c.tokens[c.pos]
}

func (c *Cursor) advance() token.Token {
	tok := c.Current()
	if c.pos < len(c.tokens) {
		c.pos++
	}
	return tok
}

func identEqual(a, b string) bool { return strings.EqualFold(a, b) }

// --- expect_* : consume or fail ---

// ExpectQuotedString consumes a QuotedString token and returns its
// content (quotes already stripped by the scanner).
func (c *Cursor) ExpectQuotedString() (string, error) {
	if c.Current().Kind != token.QuotedString {
		return "", NewParseError(ExpectedString, c.Current(), "")
	}
	return c.advance().Text, nil
}

// ExpectInteger consumes an Integer token and parses it.
func (c *Cursor) ExpectInteger() (int64, error) {
	if c.Current().Kind != token.Integer {
		return 0, NewParseError(ExpectedInteger, c.Current(), "")
	}
	tok := c.advance()
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, NewParseError(ExpectedInteger, tok, "")
	}
	return n, nil
}

// ExpectDouble consumes a Double token and parses it.
func (c *Cursor) ExpectDouble() (float64, error) {
	if c.Current().Kind != token.Double {
		return 0, NewParseError(ExpectedNumber, c.Current(), "")
	}
	tok := c.advance()
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, NewParseError(ExpectedNumber, tok, "")
	}
	return f, nil
}

// ExpectUnquotedString consumes any UnquotedString (identifier) token.
func (c *Cursor) ExpectUnquotedString() (string, error) {
	if c.Current().Kind != token.UnquotedString {
		return "", NewParseError(ExpectedIdentifier, c.Current(), "")
	}
	return c.advance().Text, nil
}

// ExpectSymbol consumes a Symbol token whose text is exactly sym.
func (c *Cursor) ExpectSymbol(sym string) error {
	if c.Current().Kind != token.Symbol || c.Current().Text != sym {
		return NewParseError(ExpectedOperator, c.Current(), sym)
	}
	c.advance()
	return nil
}

// ExpectIdentifiers atomically consumes the exact sequence of
// case-insensitive keyword identifiers in words, or fails without
// consuming anything.
func (c *Cursor) ExpectIdentifiers(words []string) error {
	mark := c.Save()
	for _, w := range words {
		tok := c.Current()
		if tok.Kind != token.UnquotedString || !identEqual(tok.Text, w) {
			c.Restore(mark)
			return NewParseError(ExpectedIdentifier, tok, strings.Join(words, " "))
		}
		c.advance()
	}
	return nil
}

// ExpectNewline consumes the distinguished newline symbol token.
func (c *Cursor) ExpectNewline() error {
	if c.Current().Kind != token.Symbol || c.Current().Text != token.NewlineSymbol {
		return NewParseError(ExpectedEndOfLine, c.Current(), "")
	}
	c.advance()
	return nil
}

// --- has_* : optional match, advancing only on success and only if advance is set ---

// HasSymbol reports whether the current token is the symbol sym,
// consuming it iff advance is true and it matched.
func (c *Cursor) HasSymbol(sym string, advance bool) bool {
	if c.Current().Kind != token.Symbol || c.Current().Text != sym {
		return false
	}
	if advance {
		c.advance()
	}
	return true
}

// HasIdentifier reports whether the current token is the
// case-insensitive keyword word, consuming it iff advance is true.
func (c *Cursor) HasIdentifier(word string, advance bool) bool {
	tok := c.Current()
	if tok.Kind != token.UnquotedString || !identEqual(tok.Text, word) {
		return false
	}
	if advance {
		c.advance()
	}
	return true
}

// HasIdentifiers atomically checks the sequence words the same way
// ExpectIdentifiers does, but never produces an error — it reports ok
// and only advances past the whole sequence if advance is true and
// every word matched.
func (c *Cursor) HasIdentifiers(words []string, advance bool) bool {
	mark := c.Save()
	for _, w := range words {
		tok := c.Current()
		if tok.Kind != token.UnquotedString || !identEqual(tok.Text, w) {
			c.Restore(mark)
			return false
		}
		c.advance()
	}
	if !advance {
		c.Restore(mark)
	}
	return true
}

// HasAnyUnquotedString reports whether the current token is any
// identifier at all (used for AnyIdentifier syntax elements and the
// "create <any-identifier>" built-in template).
func (c *Cursor) HasAnyUnquotedString(advance bool) (string, bool) {
	tok := c.Current()
	if tok.Kind != token.UnquotedString {
		return "", false
	}
	if advance {
		c.advance()
	}
	return tok.Text, true
}

// HasQuotedString reports whether the current token is a quoted
// string, optionally consuming it.
func (c *Cursor) HasQuotedString(advance bool) (string, bool) {
	tok := c.Current()
	if tok.Kind != token.QuotedString {
		return "", false
	}
	if advance {
		c.advance()
	}
	return tok.Text, true
}

// HasInteger reports whether the current token is an integer literal,
// optionally consuming it.
func (c *Cursor) HasInteger(advance bool) (int64, bool) {
	tok := c.Current()
	if tok.Kind != token.Integer {
		return 0, false
	}
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, false
	}
	if advance {
		c.advance()
	}
	return n, true
}

// HasDouble reports whether the current token is a double literal,
// optionally consuming it.
func (c *Cursor) HasDouble(advance bool) (float64, bool) {
	tok := c.Current()
	if tok.Kind != token.Double {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, false
	}
	if advance {
		c.advance()
	}
	return f, true
}

// --- line/newline skipping ---

// SkipNewlines advances past any run of consecutive newline tokens
// (and nothing else).
func (c *Cursor) SkipNewlines() {
	for c.HasSymbol(token.NewlineSymbol, true) {
	}
}

// SkipLine advances past every token up to and including the next
// newline (or EOF, whichever comes first). Used to discard a
// statement the top-level loop doesn't recognize.
func (c *Cursor) SkipLine() {
	for !c.IsAtEnd() && !c.HasSymbol(token.NewlineSymbol, false) {
		c.advance()
	}
	c.HasSymbol(token.NewlineSymbol, true)
}
