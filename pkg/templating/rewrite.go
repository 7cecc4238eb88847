package templating

import (
	"sort"

	"github.com/nikolalohinski/gonja/v2/config"
	"github.com/nikolalohinski/gonja/v2/tokens"
)

const (
	// chainedPrefix names the variant of a filter whose result flows into
	// another liquidcore filter. The variant keeps deferred results
	// unloaded.
	chainedPrefix = "liquid_chained_"

	// memberFilter resolves `.size` through the value layer, which gonja
	// attribute lookup cannot reach.
	memberFilter = "liquid_member"
)

// memberNames are the attributes rewritten into memberFilter calls.
var memberNames = map[string]bool{"size": true}

// analysis is the result of preparing one template source.
type analysis struct {
	// source is the rewritten template.
	source string

	// exposed holds the top-level names used other than as the input of a
	// liquidcore filter.
	exposed map[string]bool
}

// edit replaces del bytes at pos with text.
type edit struct {
	pos  int
	del  int
	text string
}

// analyze rewrites source for the engine and records how its names are
// used. isFilter reports whether a name is a liquidcore filter. Sources the
// lexer rejects are returned unchanged, leaving the error to the compiler.
func analyze(source string, cfg *config.Config, isFilter func(string) bool) analysis {
	toks, ok := lex(source, cfg)
	if !ok {
		return analysis{source: source}
	}
	source = applyEdits(source, memberEdits(toks))

	toks, ok = lex(source, cfg)
	if !ok {
		return analysis{source: source}
	}

	consumer := func(name string) bool { return name == memberFilter || isFilter(name) }
	exposed := make(map[string]bool)
	var edits []edit

	for i, tok := range toks {
		if tok.Type != tokens.Name {
			continue
		}
		prev := tokenType(toks, i-1)
		if prev == tokens.Dot {
			continue
		}
		if prev != tokens.Pipe {
			if !filterFollows(toks, i+1, consumer) {
				exposed[tok.Val] = true
			}
			continue
		}
		if !isFilter(tok.Val) {
			continue
		}
		next := i + 1
		if tokenType(toks, next) == tokens.LeftParenthesis {
			next = matchForward(toks, next) + 1
			if next == 0 {
				continue
			}
		}
		if filterFollows(toks, next, consumer) {
			edits = append(edits, edit{pos: tok.Pos, text: chainedPrefix})
		}
	}

	return analysis{source: applyEdits(source, edits), exposed: exposed}
}

// lex returns the tokens of source without whitespace. ok is false when
// the lexer reports an error.
func lex(source string, cfg *config.Config) ([]*tokens.Token, bool) {
	l := tokens.NewLexer(source, cfg)
	go l.Run()

	var out []*tokens.Token
	ok := true
	for tok := range l.Tokens {
		switch tok.Type {
		case tokens.Whitespace:
		case tokens.Error:
			ok = false
		default:
			out = append(out, tok)
		}
	}
	return out, ok
}

// memberEdits turns `receiver.size` into `(receiver | liquid_member("size"))`.
// Method calls such as `x.size()` are left alone.
func memberEdits(toks []*tokens.Token) []edit {
	var edits []edit
	for i, tok := range toks {
		if tok.Type != tokens.Dot || tokenType(toks, i+1) != tokens.Name {
			continue
		}
		name := toks[i+1]
		if !memberNames[name.Val] || tokenType(toks, i+2) == tokens.LeftParenthesis {
			continue
		}
		start, ok := receiverStart(toks, i-1)
		if !ok {
			continue
		}
		edits = append(edits,
			edit{pos: start, text: "("},
			edit{
				pos:  tok.Pos,
				del:  name.Pos + len(name.Val) - tok.Pos,
				text: ` | ` + memberFilter + `("` + name.Val + `"))`,
			})
	}
	return edits
}

// receiverStart returns the byte offset where the postfix expression
// ending at toks[j] starts.
func receiverStart(toks []*tokens.Token, j int) (int, bool) {
	for j >= 0 {
		switch toks[j].Type {
		case tokens.Name:
			if tokenType(toks, j-1) == tokens.Dot {
				j -= 2
				continue
			}
			return toks[j].Pos, true
		case tokens.String, tokens.Integer, tokens.Float:
			return toks[j].Pos, true
		case tokens.RightParenthesis, tokens.RightBracket:
			open := matchBackward(toks, j)
			if open < 0 {
				return 0, false
			}
			// A call or subscript continues the expression to its left.
			switch tokenType(toks, open-1) {
			case tokens.Name, tokens.RightParenthesis, tokens.RightBracket, tokens.String:
				j = open - 1
				continue
			}
			return toks[open].Pos, true
		default:
			return 0, false
		}
	}
	return 0, false
}

// filterFollows reports whether toks[i] is a pipe into a consumer.
func filterFollows(toks []*tokens.Token, i int, consumer func(string) bool) bool {
	return tokenType(toks, i) == tokens.Pipe &&
		tokenType(toks, i+1) == tokens.Name &&
		consumer(toks[i+1].Val)
}

// matchForward returns the index of the parenthesis closing toks[i], or -1.
func matchForward(toks []*tokens.Token, i int) int {
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].Type {
		case tokens.LeftParenthesis, tokens.LeftBracket, tokens.LeftBrace:
			depth++
		case tokens.RightParenthesis, tokens.RightBracket, tokens.RightBrace:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchBackward returns the index of the bracket opening toks[j], or -1.
func matchBackward(toks []*tokens.Token, j int) int {
	depth := 0
	for ; j >= 0; j-- {
		switch toks[j].Type {
		case tokens.RightParenthesis, tokens.RightBracket, tokens.RightBrace:
			depth++
		case tokens.LeftParenthesis, tokens.LeftBracket, tokens.LeftBrace:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func tokenType(toks []*tokens.Token, i int) tokens.Type {
	if i < 0 || i >= len(toks) {
		return tokens.EOF
	}
	return toks[i].Type
}

func applyEdits(source string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].pos > edits[j].pos })
	for _, e := range edits {
		source = source[:e.pos] + e.text + source[e.pos+e.del:]
	}
	return source
}
