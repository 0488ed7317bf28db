package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gatekeeper/internal/lists"
	"gatekeeper/internal/rules"
)

// regexCache keeps compiled patterns for the hot evaluation path. Expected
// value type is *regexp.Regexp.
var regexCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// Evaluator decides whether a single condition matches a request. Evaluation
// is a pure function of the request and the list source snapshot; failures
// surface as errors for the engine to log and treat as non-match.
type Evaluator struct {
	lists  lists.Source
	custom *CustomEvaluator
}

func NewEvaluator(listSource lists.Source, custom *CustomEvaluator) *Evaluator {
	return &Evaluator{lists: listSource, custom: custom}
}

func (e *Evaluator) Evaluate(ctx context.Context, cond rules.Condition, reqCtx RequestContext) (bool, error) {
	switch cond.Type {
	case rules.ConditionUserID:
		return e.evaluateUserID(ctx, cond, reqCtx)
	case rules.ConditionName:
		return e.evaluateName(ctx, cond, reqCtx)
	case rules.ConditionKeyword:
		return e.evaluateKeyword(cond, reqCtx)
	case rules.ConditionDatabase:
		// Reserved extension point, never matches.
		return false, nil
	case rules.ConditionCustom:
		if e.custom == nil {
			return false, fmt.Errorf("custom expression evaluator is not available")
		}
		return e.custom.Evaluate(ctx, cond.Value, reqCtx)
	default:
		return false, fmt.Errorf("unknown condition type %q", cond.Type)
	}
}

func (e *Evaluator) evaluateUserID(ctx context.Context, cond rules.Condition, reqCtx RequestContext) (bool, error) {
	switch cond.Operator {
	case rules.OpEquals:
		return reqCtx.UserID == cond.Value, nil

	case rules.OpIn, rules.OpNotIn:
		var member bool
		if cond.HasInlineList() {
			member = containsString(cond.Values, reqCtx.UserID)
		} else {
			// No inline list: defer to the group's persisted whitelist.
			var err error
			member, err = e.lists.Contains(ctx, lists.KindWhitelist, reqCtx.GroupID, reqCtx.UserID)
			if err != nil {
				return false, err
			}
		}
		if cond.Operator == rules.OpNotIn {
			return !member, nil
		}
		return member, nil

	default:
		return false, nil
	}
}

// evaluateName checks the application message, not a separate name field:
// applicants write their name somewhere inside free text.
func (e *Evaluator) evaluateName(ctx context.Context, cond rules.Condition, reqCtx RequestContext) (bool, error) {
	switch cond.Operator {
	case rules.OpEquals:
		return reqCtx.Message == cond.Value, nil

	case rules.OpContains:
		return cond.Value != "" && strings.Contains(reqCtx.Message, cond.Value), nil

	case rules.OpMatches:
		re, err := compilePattern(cond.Value)
		if err != nil {
			return false, err
		}
		return re.MatchString(reqCtx.Message), nil

	case rules.OpIn:
		entries := cond.Values
		if !cond.HasInlineList() {
			var err error
			entries, err = e.lists.Members(ctx, lists.KindNameWhitelist, reqCtx.GroupID)
			if err != nil {
				return false, err
			}
		}
		return anySubstring(entries, reqCtx.Message), nil

	default:
		return false, nil
	}
}

func (e *Evaluator) evaluateKeyword(cond rules.Condition, reqCtx RequestContext) (bool, error) {
	keywords := cond.Literals()

	switch cond.Operator {
	case rules.OpEquals:
		return containsString(keywords, reqCtx.Message), nil

	case rules.OpContains, rules.OpIn:
		return anySubstring(keywords, reqCtx.Message), nil

	case rules.OpMatches:
		for _, pattern := range keywords {
			re, err := compilePattern(pattern)
			if err != nil {
				return false, err
			}
			if re.MatchString(reqCtx.Message) {
				return true, nil
			}
		}
		return false, nil

	case rules.OpNotIn:
		return !anySubstring(keywords, reqCtx.Message), nil

	default:
		return false, nil
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// anySubstring reports whether any non-empty entry appears inside message.
func anySubstring(entries []string, message string) bool {
	for _, entry := range entries {
		if entry != "" && strings.Contains(message, entry) {
			return true
		}
	}
	return false
}
