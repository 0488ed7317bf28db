package engine

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	digitPattern   = regexp.MustCompile(`[0-9]`)
	chinesePattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]`)
	englishPattern = regexp.MustCompile(`[a-zA-Z]`)
)

// CustomEvaluator compiles and runs the restricted expressions of custom
// conditions. The environment exposes only a fixed variable set derived from
// the request; expressions cannot reach other context fields.
type CustomEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCustomEvaluator() (*CustomEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("userId", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("messageLength", cel.IntType),
		cel.Variable("hasNumbers", cel.BoolType),
		cel.Variable("hasChineseChars", cel.BoolType),
		cel.Variable("hasEnglishChars", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ValidateExpression screens and compiles the expression without running it.
// Used by the management API before a custom rule is persisted.
func (e *CustomEvaluator) ValidateExpression(expression string) error {
	if err := ScreenExpression(expression); err != nil {
		return err
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}
	return nil
}

// Evaluate screens, compiles (with per-expression program caching) and runs
// the expression against the request.
func (e *CustomEvaluator) Evaluate(ctx context.Context, expression string, reqCtx RequestContext) (bool, error) {
	if err := ScreenExpression(expression); err != nil {
		return false, err
	}

	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	vars := map[string]interface{}{
		"userId":          reqCtx.UserID,
		"message":         reqCtx.Message,
		"messageLength":   int64(len([]rune(reqCtx.Message))),
		"hasNumbers":      digitPattern.MatchString(reqCtx.Message),
		"hasChineseChars": chinesePattern.MatchString(reqCtx.Message),
		"hasEnglishChars": englishPattern.MatchString(reqCtx.Message),
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return bool, got %T", result.Value())
	}
	return boolVal, nil
}

func (e *CustomEvaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("failed to create expression program: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}
