package refs

import (
	"strings"
)

// expressionWords are operators and functions allowed inside CPT/CMP/FAL
// expressions. They are never tag names.
var expressionWords = map[string]bool{
	"AND": true, "OR": true, "XOR": true, "NOT": true, "MOD": true,
	"ABS": true, "SQR": true, "SQRT": true, "LN": true, "LOG": true,
	"SIN": true, "COS": true, "TAN": true, "ASN": true, "ACS": true, "ATN": true,
	"DEG": true, "RAD": true, "TRN": true, "FRD": true, "TOD": true,
	"ASIN": true, "ACOS": true, "ATAN": true, "TRUNC": true,
}

// isLiteral reports operands that cannot name a tag: placeholders, numbers,
// radix literals and strings.
func isLiteral(op string) bool {
	if op == "" || op == "?" || op == "??" {
		return true
	}
	c := op[0]
	if c == '\'' || c == '"' {
		return true
	}
	if c == '+' || c == '-' || c == '.' {
		if len(op) == 1 {
			return true
		}
		c = op[1]
	}
	if c >= '0' && c <= '9' {
		return true
	}
	upper := strings.ToUpper(op)
	return upper == "1.#QNAN" || upper == "1.#INF" || upper == "-1.#INF"
}

// isTagPath reports whether op is a single tag path such as
// "Motor1.Status[2].Run", "Valve2[Idx+1]" or "Local:1:I.Data.0".
func isTagPath(op string) bool {
	if op == "" || !isIdentStart(op[0]) {
		return false
	}
	i := 0
	for i < len(op) {
		c := op[i]
		switch {
		case isIdentPart(c) || c == '.' || c == ':':
			i++
		case c == '[':
			end := matchBracket(op, i)
			if end < 0 {
				return false
			}
			i = end + 1
		default:
			return false
		}
	}
	return true
}

func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// indexIdentifiers returns the tag paths used inside the array subscripts of
// a tag path, e.g. "Idx" for "Valve2[Idx+1]".
func indexIdentifiers(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] != '[' {
			continue
		}
		end := matchBracket(path, i)
		if end < 0 {
			break
		}
		out = append(out, expressionIdentifiers(path[i+1:end])...)
		i = end
	}
	return out
}

// expressionIdentifiers returns every tag path inside an expression in order
// of appearance. Function names and operator words are skipped.
func expressionIdentifiers(expr string) []string {
	var out []string
	i := 0
	n := len(expr)
	for i < n {
		c := expr[i]
		switch {
		case c == '\'' || c == '"':
			i++
			for i < n && expr[i] != c {
				if expr[i] == '$' {
					i++
				}
				i++
			}
			i++
		case c >= '0' && c <= '9':
			// numbers, including radix forms like 16#FF and exponents
			for i < n && (isIdentPart(expr[i]) || expr[i] == '.' || expr[i] == '#') {
				i++
			}
		case isIdentStart(c):
			start := i
			for i < n {
				ch := expr[i]
				if isIdentPart(ch) || ch == '.' || ch == ':' {
					i++
					continue
				}
				if ch == '[' {
					end := matchBracket(expr, i)
					if end < 0 {
						i = n
						break
					}
					i = end + 1
					continue
				}
				break
			}
			word := expr[start:i]
			j := i
			for j < n && expr[j] == ' ' {
				j++
			}
			if (j < n && expr[j] == '(') || expressionWords[strings.ToUpper(word)] {
				continue
			}
			out = append(out, word)
			out = append(out, indexIdentifiers(word)...)
		default:
			i++
		}
	}
	return out
}
