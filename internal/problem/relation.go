package problem

import "strings"

// splitRelation finds a top-level comparison operator in an expression and
// splits it into lhs, operator and rhs. Operators inside parentheses or
// function calls are ignored. Returns found=false for plain arithmetic
// expressions.
func splitRelation(expr string) (lhs, op, rhs string, found bool) {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '<', '>', '=':
			if depth != 0 {
				continue
			}
			op := expr[i : i+1]
			end := i + 1
			if end < len(expr) && expr[end] == '=' {
				op = expr[i : i+2]
				end++
			}
			lhs := strings.TrimSpace(expr[:i])
			rhs := strings.TrimSpace(expr[end:])
			if lhs == "" || rhs == "" {
				return "", "", "", false
			}
			return lhs, op, rhs, true
		}
	}
	return "", "", "", false
}
