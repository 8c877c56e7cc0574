package grammar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ruleDefPattern matches a rule-definition line: "name = template".
var ruleDefPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

// rangePattern matches range sugar in a bare token: "0..10" or "0..10,2".
var rangePattern = regexp.MustCompile(`^(-?\d+)\.\.(-?\d+)(?:,(\d+))?$`)

// Parse reads one intent's source block and returns its sentence ASTs and
// local rule definitions. Lines starting with '#' and blank lines are
// skipped. A line of the form "name = template" defines a rule; every other
// non-empty line is a sentence template.
//
// On malformed input Parse returns a [*SyntaxError] carrying the intent
// name, line, and column.
func Parse(intent string, text string) (*Intent, error) {
	out := &Intent{
		Name:  intent,
		Rules: make(map[string]Node),
	}

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := ruleDefPattern.FindStringSubmatch(line); m != nil {
			name, body := m[1], m[2]
			if _, dup := out.Rules[name]; dup {
				return nil, &SyntaxError{Intent: intent, Line: lineNo, Column: 1,
					Msg: fmt.Sprintf("rule %q is defined twice", name)}
			}
			node, err := parseTemplate(intent, lineNo, body)
			if err != nil {
				return nil, err
			}
			out.Rules[name] = node
			out.RuleOrder = append(out.RuleOrder, name)
			continue
		}

		node, err := parseTemplate(intent, lineNo, line)
		if err != nil {
			return nil, err
		}
		out.Sentences = append(out.Sentences, node)
	}

	return out, nil
}

// ParseFragment parses a single standalone template, as used for slot
// values (which may themselves contain alternatives and tags). The owner
// name appears in any syntax error in place of an intent name.
func ParseFragment(owner string, text string) (Node, error) {
	return parseTemplate(owner, 1, text)
}

// parseTemplate parses one template line into an AST.
func parseTemplate(intent string, lineNo int, text string) (Node, error) {
	p := &parser{intent: intent, line: lineNo, src: []rune(text)}
	node, err := p.parseSequence("")
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	return node, nil
}

// parser is a hand-rolled recursive-descent parser over a single template
// line. pos is a rune index; columns reported in errors are pos+1.
type parser struct {
	intent string
	line   int
	src    []rune
	pos    int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Intent: p.intent, Line: p.line, Column: p.pos + 1,
		Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

// parseSequence parses terms until end of input or a rune in stop.
// A single term is returned unwrapped; zero terms yield an empty Sequence (ε).
func (p *parser) parseSequence(stop string) (Node, error) {
	var children []Node
	for {
		p.skipSpaces()
		if p.eof() || (stop != "" && strings.ContainsRune(stop, p.peek())) {
			break
		}
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		term, err = p.parseTagSuffix(term)
		if err != nil {
			return nil, err
		}
		children = append(children, term)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Sequence{Children: children}, nil
}

// parseTerm parses one group, optional, rule reference, slot reference, or
// bare word (which may be range sugar).
func (p *parser) parseTerm() (Node, error) {
	switch c := p.peek(); c {
	case '(':
		p.pos++
		node, err := p.parseAlternatives(')')
		if err != nil {
			return nil, err
		}
		return node, nil
	case '[':
		p.pos++
		node, err := p.parseAlternatives(']')
		if err != nil {
			return nil, err
		}
		return Optional{Child: node}, nil
	case '<':
		p.pos++
		name := p.readWhile(isRefRune)
		if name == "" {
			return nil, p.errorf("empty rule reference")
		}
		if p.eof() || p.peek() != '>' {
			return nil, p.errorf("unclosed rule reference <%s", name)
		}
		p.pos++
		return RuleRef{Name: name}, nil
	case '$':
		p.pos++
		name := p.readWhile(isIdentRune)
		if name == "" {
			return nil, p.errorf("empty slot reference")
		}
		return SlotRef{Name: name}, nil
	case ')', ']', '}', '|':
		return nil, p.errorf("unexpected %q", c)
	case '{':
		return nil, p.errorf("tag must follow a word or group")
	default:
		return p.parseWord()
	}
}

// parseAlternatives parses "a | b | c" up to the closing rune. A group with
// a single option collapses to that option.
func (p *parser) parseAlternatives(closing rune) (Node, error) {
	var options []Node
	sawPipe := false
	for {
		option, err := p.parseSequence(string(closing) + "|")
		if err != nil {
			return nil, err
		}
		options = append(options, option)
		if p.eof() {
			return nil, p.errorf("missing closing %q", closing)
		}
		if p.peek() == '|' {
			sawPipe = true
			p.pos++
			continue
		}
		p.pos++ // consume closing rune
		break
	}
	if !sawPipe && len(options) == 1 {
		return options[0], nil
	}
	return Alternatives{Options: options}, nil
}

// parseWord reads a bare token, honoring backslash escapes, and recognises
// number-range sugar ("0..10", "0..10,2").
func (p *parser) parseWord() (Node, error) {
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if c == '\\' {
			p.pos++
			if p.eof() {
				return nil, p.errorf("trailing escape")
			}
			b.WriteRune(p.peek())
			p.pos++
			continue
		}
		if c == ' ' || c == '\t' || strings.ContainsRune("()[]{}<>|$", c) {
			break
		}
		b.WriteRune(c)
		p.pos++
	}
	word := b.String()
	if word == "" {
		return nil, p.errorf("unexpected %q", p.peek())
	}

	if m := rangePattern.FindStringSubmatch(word); m != nil {
		min, _ := strconv.Atoi(m[1])
		max, _ := strconv.Atoi(m[2])
		step := 1
		if m[3] != "" {
			step, _ = strconv.Atoi(m[3])
		}
		if step <= 0 {
			return nil, p.errorf("range step must be positive, got %d", step)
		}
		if min > max {
			return nil, p.errorf("range %d..%d is empty", min, max)
		}
		return NumberRange{Min: min, Max: max, Step: step}, nil
	}
	return Literal{Word: word}, nil
}

// parseTagSuffix wraps term in [Tagged] (and [Converted]) when a "{...}"
// annotation immediately follows it.
func (p *parser) parseTagSuffix(term Node) (Node, error) {
	if p.eof() || p.peek() != '{' {
		return term, nil
	}
	start := p.pos
	p.pos++

	var b strings.Builder
	for !p.eof() && p.peek() != '}' {
		if p.peek() == '\\' {
			p.pos++
			if p.eof() {
				break
			}
		}
		b.WriteRune(p.peek())
		p.pos++
	}
	if p.eof() {
		p.pos = start
		return nil, p.errorf("unclosed tag")
	}
	p.pos++ // consume '}'

	body := b.String()
	converter := ""
	if i := strings.LastIndex(body, "!"); i >= 0 {
		converter = strings.TrimSpace(body[i+1:])
		body = body[:i]
		if converter == "" {
			p.pos = start
			return nil, p.errorf("empty converter name in tag")
		}
	}
	synonym := ""
	if i := strings.Index(body, ":"); i >= 0 {
		synonym = strings.TrimSpace(body[i+1:])
		body = body[:i]
	}
	tag := strings.TrimSpace(body)
	if tag == "" {
		p.pos = start
		return nil, p.errorf("empty tag name")
	}

	var node Node = Tagged{Child: term, Tag: tag, Synonym: synonym}
	if converter != "" {
		node = Converted{Child: node, Name: converter}
	}
	return node, nil
}

func isIdentRune(c rune) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isRefRune(c rune) bool {
	return isIdentRune(c) || c == '.'
}

func (p *parser) readWhile(pred func(rune) bool) string {
	start := p.pos
	for !p.eof() && pred(p.peek()) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}
