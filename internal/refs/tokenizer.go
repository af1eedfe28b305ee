// Package refs statically indexes tag references in ladder rungs.
package refs

import (
	"fmt"
	"strings"
)

// Call is one instruction call inside a rung.
type Call struct {
	Mnemonic string
	Operands []string // trimmed, verbatim
}

// Tokenize splits ladder text such as "XIC(A)[XIO(B),XIC(C)]OTE(D);" into
// instruction calls. Branch brackets, branch commas and the trailing ';' are
// structure only. On malformed text the calls read so far are returned with
// the error.
func Tokenize(logic string) ([]Call, error) {
	var calls []Call
	i := 0
	n := len(logic)
	for i < n {
		c := logic[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' ||
			c == '[' || c == ']' || c == ',' || c == ';':
			i++
			continue
		case !isIdentStart(c):
			return calls, fmt.Errorf("unexpected %q at offset %d", c, i)
		}

		start := i
		for i < n && isIdentPart(logic[i]) {
			i++
		}
		call := Call{Mnemonic: logic[start:i]}

		for i < n && (logic[i] == ' ' || logic[i] == '\t') {
			i++
		}
		if i >= n || logic[i] != '(' {
			calls = append(calls, call)
			continue
		}

		end := closeParen(logic, i)
		if end < 0 {
			return calls, fmt.Errorf("unbalanced operand list for %s at offset %d", call.Mnemonic, start)
		}
		body := logic[i+1 : end]
		if strings.TrimSpace(body) != "" {
			for _, op := range splitOperands(body) {
				call.Operands = append(call.Operands, strings.TrimSpace(op))
			}
		}
		calls = append(calls, call)
		i = end + 1
	}
	return calls, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// closeParen returns the index of the ')' matching s[open], skipping quoted text.
func closeParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '$' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				if c != ')' {
					return -1
				}
				return i
			}
		}
	}
	return -1
}

// splitOperands splits on commas outside nested parens, brackets and quotes.
func splitOperands(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '$' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
