package engine

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "gatekeeper/pkg/errors"
)

// deniedTokens are matched case-insensitively anywhere in the expression,
// string literals included. Better to reject an odd-but-harmless expression
// than to let one of these through.
var deniedTokens = []string{
	"eval",
	"function",
	"require",
	"import",
	"process.",
	"global.",
	"window.",
	"settimeout",
	"setinterval",
	"__",
}

// literalStripper removes quoted string literals so the structural allowlist
// below only sees the expression skeleton. Literal content may legitimately
// contain CJK text that the skeleton check would reject.
var literalStripper = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)

// skeletonShape admits identifiers, numbers, comparison and boolean
// operators, parentheses, ternary and member calls. Anything else fails the
// screen.
var skeletonShape = regexp.MustCompile(`^[A-Za-z0-9_\s+\-*/%<>=!&|()?:.,\[\]]*$`)

// ScreenExpression is the textual pre-filter applied before an expression is
// handed to the evaluator. It is defense in depth on top of the evaluator's
// own closed environment, not a sandbox by itself.
func ScreenExpression(expression string) error {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return pkgerrors.ErrMalformedCondition.WithDetail("message", "expression is empty")
	}

	lowered := strings.ToLower(trimmed)
	for _, token := range deniedTokens {
		if strings.Contains(lowered, token) {
			return pkgerrors.ErrMalformedCondition.WithDetail(
				"message", fmt.Sprintf("expression contains forbidden token %q", token))
		}
	}

	skeleton := literalStripper.ReplaceAllString(trimmed, "")
	if !skeletonShape.MatchString(skeleton) {
		return pkgerrors.ErrMalformedCondition.WithDetail(
			"message", "expression contains characters outside the allowed set")
	}

	return nil
}
