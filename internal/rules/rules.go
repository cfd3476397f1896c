// Package rules corrects recurring speech-recognition mistakes in transcripts
// (crop names, fertilizer brands, units) before they are sent as questions.
//
// A rules file holds one substitution per line:
//
//	wheet => wheat
//	s/\bd\.?a\.?p\b/DAP/g
//
// Blank lines and lines starting with # are ignored. Literal rules match
// case-insensitively anywhere in the text. Regex rules use s<d>pattern<d>repl<d>flags
// with any non-alphanumeric delimiter; flags are g (all matches), i, m and s.
// Regex rules are case-insensitive unless the C flag is given.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// DefaultIterationLimit bounds how many passes Apply makes over the rule list.
const DefaultIterationLimit = 30

var errUnknownFormat = errors.New("line is neither a literal nor a regex rule")

// Substitution is one compiled rule.
type Substitution struct {
	Line        int
	pattern     *regexp.Regexp
	replacement string
	all         bool
}

func (s Substitution) rewrite(text string) string {
	if s.all {
		return s.pattern.ReplaceAllString(text, s.replacement)
	}
	loc := s.pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text
	}
	expanded := s.pattern.ExpandString(nil, s.replacement, text, loc)
	return text[:loc[0]] + string(expanded) + text[loc[1]:]
}

// Set applies substitutions until the text stops changing.
type Set struct {
	subs  []Substitution
	limit int
}

// Load reads a rules file. A missing file or empty path yields an empty set.
func Load(path string, limit int) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return &Set{limit: normalizeLimit(limit)}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{limit: normalizeLimit(limit)}, nil
		}
		return nil, fmt.Errorf("open rules file %q: %w", path, err)
	}
	defer f.Close()

	set, err := Parse(f, limit)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return set, nil
}

// Parse compiles rules from r.
func Parse(r io.Reader, limit int) (*Set, error) {
	set := &Set{limit: normalizeLimit(limit)}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sub, err := compileLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		sub.Line = lineNo
		set.subs = append(set.subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return set, nil
}

// Len reports the number of compiled rules.
func (s *Set) Len() int {
	return len(s.subs)
}

// Apply runs every rule in order, repeating until a pass changes nothing or
// the iteration limit is reached.
func (s *Set) Apply(text string) (string, error) {
	if s == nil || len(s.subs) == 0 {
		return text, nil
	}
	current := text
	for pass := 0; pass < s.limit; pass++ {
		before := current
		for _, sub := range s.subs {
			current = sub.rewrite(current)
		}
		if current == before {
			break
		}
	}
	return current, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultIterationLimit
	}
	return limit
}

func compileLine(line string) (Substitution, error) {
	if isRegexLine(line) {
		return compileRegex(line)
	}
	if from, to, ok := strings.Cut(line, "=>"); ok {
		return compileLiteral(from, to)
	}
	return Substitution{}, errUnknownFormat
}

// isRegexLine treats "s" followed by punctuation as a regex rule, so literal
// rules such as "sowing => ..." are unaffected.
func isRegexLine(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	r := rune(line[1])
	return r < unicode.MaxASCII && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

func compileLiteral(from, to string) (Substitution, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return Substitution{}, errors.New("literal rule has an empty source")
	}
	return Substitution{
		pattern:     regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)),
		replacement: strings.ReplaceAll(strings.TrimSpace(to), "$", "$$"),
		all:         true,
	}, nil
}

func compileRegex(line string) (Substitution, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return Substitution{}, err
	}

	caseless := true
	var all bool
	var mode strings.Builder
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			all = true
		case 'i':
			caseless = true
		case 'C':
			caseless = false
		case 'm', 's':
			mode.WriteRune(flag)
		default:
			return Substitution{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	if caseless {
		mode.WriteByte('i')
	}

	pattern := fields[0]
	if mode.Len() > 0 {
		pattern = "(?" + mode.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Substitution{}, fmt.Errorf("compile regex: %w", err)
	}
	return Substitution{pattern: re, replacement: fields[1], all: all}, nil
}

// splitDelimited reads n delimiter-terminated fields from s, honouring
// backslash escapes, and returns the unread remainder.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var field strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == delim:
			field.WriteByte(delim)
			i++
		case c == '\\' && i+1 < len(s):
			field.WriteByte(c)
			field.WriteByte(s[i+1])
			i++
		case c == delim:
			fields = append(fields, field.String())
			field.Reset()
			if len(fields) == n {
				return fields, s[i+1:], nil
			}
		default:
			field.WriteByte(c)
		}
	}
	return nil, "", errors.New("unterminated regex rule")
}
