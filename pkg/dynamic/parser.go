package dynamic

import (
	"strings"
	"unicode"
)

const (
	commandOpen  = "{{"
	commandClose = "}}"
	variableSign = "#"
	escapedSign  = "##"
)

// Parser splits template strings into segments.
type Parser struct {
	variables bool
}

// NewParser returns a parser. When variables is false, #name is parsed as
// static text.
func NewParser(variables bool) *Parser {
	return &Parser{variables: variables}
}

// Parse parses input with variables enabled.
func Parse(input string) ([]Segment, error) {
	return NewParser(true).Parse(input)
}

// Parse splits input into an ordered list of segments.
func (p *Parser) Parse(input string) ([]Segment, error) {
	if !strings.Contains(input, commandOpen) && !strings.Contains(input, variableSign) {
		return []Segment{Static(input)}, nil
	}

	var segments []Segment
	pos := 0
	for pos < len(input) {
		seg, n, err := p.next(input[pos:])
		if err != nil {
			if te, ok := err.(*TemplateError); ok {
				te.Offset += pos
			}
			return nil, err
		}
		if n <= 0 {
			return nil, NewParseError("parser consumed no input", nil).
				WithCode(ErrCodeZeroLengthToken).
				WithOffset(pos)
		}
		segments = append(segments, seg)
		pos += n
	}

	return segments, nil
}

// next consumes one segment from the head of rest and returns it together
// with the number of bytes consumed. Error offsets are relative to rest.
func (p *Parser) next(rest string) (Segment, int, error) {
	switch {
	case strings.HasPrefix(rest, commandOpen):
		end := strings.Index(rest[len(commandOpen):], commandClose)
		if end < 0 {
			return Segment{}, 0, NewParseError("unterminated command expression", nil).
				WithCode(ErrCodeUnterminatedCommand).
				WithOffset(0)
		}
		body := rest[len(commandOpen) : len(commandOpen)+end]
		return Command(body), len(commandOpen) + end + len(commandClose), nil

	case strings.HasPrefix(rest, escapedSign):
		return Static(variableSign), len(escapedSign), nil

	case strings.HasPrefix(rest, variableSign):
		if name := variableName(rest[len(variableSign):]); p.variables && name != "" {
			return Variable(name), len(variableSign) + len(name), nil
		}
		// a bare # is text up to the next token
		n := len(variableSign) + staticRun(rest[len(variableSign):])
		return Static(rest[:n]), n, nil

	default:
		n := staticRun(rest)
		return Static(rest[:n]), n, nil
	}
}

// variableName returns the run of non-whitespace at the head of s.
func variableName(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}
	return s
}

// staticRun returns the length of the text before the next {{ or #.
func staticRun(s string) int {
	n := len(s)
	if i := strings.Index(s, commandOpen); i >= 0 && i < n {
		n = i
	}
	if i := strings.Index(s, variableSign); i >= 0 && i < n {
		n = i
	}
	return n
}
