package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreenExpressionAcceptsPlainPredicates(t *testing.T) {
	exprs := []string{
		`messageLength > 5`,
		`hasNumbers && hasChineseChars`,
		`userId == "10001" || messageLength >= 10`,
		`hasChineseChars ? messageLength > 2 : messageLength > 8`,
		`message.contains("申请")`,
	}
	for _, expr := range exprs {
		assert.NoError(t, ScreenExpression(expr), expr)
	}
}

func TestScreenExpressionRejectsDeniedTokens(t *testing.T) {
	exprs := []string{
		`eval("1")`,
		`  EVAL ("1")`,
		`new Function()`,
		`FUNCTION()`,
		`require("fs")`,
		`import x`,
		`process.exit`,
		`global.x`,
		`window.x`,
		`setTimeout(0)`,
		`SetInterval(0)`,
		`__proto__`,
		`foo__bar`,
		`"harmless literal with eval inside"`,
	}
	for _, expr := range exprs {
		assert.Error(t, ScreenExpression(expr), expr)
	}
}

func TestScreenExpressionRejectsForeignCharactersOutsideLiterals(t *testing.T) {
	assert.Error(t, ScreenExpression(`messageLength > 5; drop`+"`"+`table`))
	assert.Error(t, ScreenExpression(`message ~ "x"`+"\x00"))
	assert.Error(t, ScreenExpression(``))
	assert.Error(t, ScreenExpression(`   `))
	// CJK belongs inside string literals only.
	assert.NoError(t, ScreenExpression(`message.contains("群公告")`))
	assert.Error(t, ScreenExpression(`message == 群公告`))
}
