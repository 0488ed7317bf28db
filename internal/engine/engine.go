package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gatekeeper/internal/config"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/rules"
	"gatekeeper/pkg/metrics"
)

// Engine produces one verdict per join request: custom rules first in
// priority order, then the built-in default policy.
type Engine struct {
	store     rules.Store
	evaluator *Evaluator
	lists     lists.Source
	log       logger.Logger
}

func New(store rules.Store, evaluator *Evaluator, listSource lists.Source, log logger.Logger) *Engine {
	return &Engine{
		store:     store,
		evaluator: evaluator,
		lists:     listSource,
		log:       log,
	}
}

// EvaluateRequest never fails: store and evaluation errors degrade to
// "rule did not match" and the default policy still runs.
func (e *Engine) EvaluateRequest(ctx context.Context, cfg config.ModerationConfig, reqCtx RequestContext) ApprovalResult {
	start := time.Now()
	result, source := e.evaluate(ctx, cfg, reqCtx)
	metrics.ObserveEvaluationDuration(time.Since(start))
	metrics.DecisionsTotal.WithLabelValues(decisionLabel(result.Approved), source).Inc()
	return result
}

func (e *Engine) evaluate(ctx context.Context, cfg config.ModerationConfig, reqCtx RequestContext) (ApprovalResult, string) {
	groupRules, err := e.store.GetRules(ctx, reqCtx.GroupID)
	if err != nil {
		e.log.WarnwCtx(ctx, "failed to load rules, falling back to default policy",
			"group_id", reqCtx.GroupID,
			"error", err,
		)
		groupRules = nil
	}

	// Stable: equal priorities keep their stored order.
	sort.SliceStable(groupRules, func(i, j int) bool {
		return groupRules[i].Priority < groupRules[j].Priority
	})

	for i := range groupRules {
		rule := &groupRules[i]
		if !rule.Enabled {
			continue
		}

		matched, err := e.evaluator.Evaluate(ctx, rule.Condition, reqCtx)
		if err != nil {
			e.log.WarnwCtx(ctx, "rule evaluation failed, skipping rule",
				"group_id", reqCtx.GroupID,
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", err,
			)
			continue
		}
		if !matched {
			continue
		}

		switch rule.Action {
		case rules.ActionApprove:
			return ApprovalResult{
				Approved: true,
				Reason:   fmt.Sprintf("%s: %s", ReasonRuleMatch, rule.Name),
				RuleID:   rule.ID,
				RuleName: rule.Name,
			}, "rule"

		case rules.ActionReject:
			message := rule.Message
			if message == "" {
				message = cfg.RejectionMessage
			}
			return ApprovalResult{
				Approved:         false,
				Reason:           fmt.Sprintf("%s: %s", ReasonRuleMatch, rule.Name),
				RejectionMessage: message,
				RuleID:           rule.ID,
				RuleName:         rule.Name,
			}, "rule"

		case rules.ActionIgnore:
			// Abstain, keep going.
			continue
		}
	}

	return e.defaultPolicy(ctx, cfg, reqCtx), "default"
}

// defaultPolicy is the fixed fallback sequence applied when no custom rule
// produced a verdict.
func (e *Engine) defaultPolicy(ctx context.Context, cfg config.ModerationConfig, reqCtx RequestContext) ApprovalResult {
	if cfg.UseNameValidation {
		names := e.members(ctx, lists.KindNameWhitelist, reqCtx.GroupID)
		names = append(names, cfg.NameWhitelist...)
		if anySubstring(names, reqCtx.Message) {
			return ApprovalResult{Approved: true, Reason: ReasonNameValidated}
		}
		return ApprovalResult{
			Approved:         false,
			Reason:           ReasonNameNotValidated,
			RejectionMessage: cfg.NameValidationMessage,
		}
	}

	if cfg.UseWhitelist {
		if e.whitelisted(ctx, cfg, reqCtx) {
			return ApprovalResult{Approved: true, Reason: ReasonWhitelisted}
		}
		if cfg.AutoRejectNonWhitelist {
			return ApprovalResult{
				Approved:         false,
				Reason:           ReasonNotWhitelisted,
				RejectionMessage: cfg.RejectionMessage,
			}
		}
	}

	if cfg.UseKeywordFilter && reqCtx.Message != "" {
		rejectionKeywords := append(e.members(ctx, lists.KindRejectionKeywords, reqCtx.GroupID), cfg.RejectionKeywords...)
		approvalKeywords := append(e.members(ctx, lists.KindApprovalKeywords, reqCtx.GroupID), cfg.ApprovalKeywords...)
		if anySubstring(rejectionKeywords, reqCtx.Message) {
			return ApprovalResult{
				Approved:         false,
				Reason:           ReasonRejectionKeyword,
				RejectionMessage: cfg.RejectionMessage,
			}
		}
		if anySubstring(approvalKeywords, reqCtx.Message) {
			return ApprovalResult{Approved: true, Reason: ReasonApprovalKeyword}
		}
		return ApprovalResult{
			Approved:         false,
			Reason:           ReasonKeywordInconclusive,
			RejectionMessage: cfg.RejectionMessage,
		}
	}

	if !cfg.UseWhitelist && !cfg.UseKeywordFilter {
		return ApprovalResult{Approved: true, Reason: ReasonNoFilters}
	}

	return ApprovalResult{
		Approved:         false,
		Reason:           ReasonNoMatch,
		RejectionMessage: cfg.RejectionMessage,
	}
}

func (e *Engine) whitelisted(ctx context.Context, cfg config.ModerationConfig, reqCtx RequestContext) bool {
	if containsString(cfg.Whitelist, reqCtx.UserID) {
		return true
	}
	member, err := e.lists.Contains(ctx, lists.KindWhitelist, reqCtx.GroupID, reqCtx.UserID)
	if err != nil {
		e.log.WarnwCtx(ctx, "whitelist lookup failed, treating user as not whitelisted",
			"group_id", reqCtx.GroupID,
			"user_id", reqCtx.UserID,
			"error", err,
		)
		return false
	}
	return member
}

func (e *Engine) members(ctx context.Context, kind lists.Kind, groupID string) []string {
	members, err := e.lists.Members(ctx, kind, groupID)
	if err != nil {
		e.log.WarnwCtx(ctx, "list lookup failed, treating list as empty",
			"kind", string(kind),
			"group_id", groupID,
			"error", err,
		)
		return nil
	}
	return members
}

func decisionLabel(approved bool) string {
	if approved {
		return "approve"
	}
	return "reject"
}
