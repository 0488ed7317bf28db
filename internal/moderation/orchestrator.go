package moderation

import (
	"context"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/engine"
	"gatekeeper/internal/logger"
	"gatekeeper/pkg/logging"
	"gatekeeper/pkg/metrics"
	"gatekeeper/pkg/models"
)

// Orchestrator drives one join request end to end: normalize the event,
// resolve the group's effective configuration, ask the engine for a verdict
// and dispatch the side effects.
type Orchestrator struct {
	static     config.ModerationConfig
	groupStore config.GroupStore
	engine     *engine.Engine
	adapter    PlatformAdapter
	recorder   audit.Recorder
	log        logger.Logger
	schedule   func(delay time.Duration, fn func())
}

type Option func(*Orchestrator)

// WithRecorder persists every verdict for operator review.
func WithRecorder(recorder audit.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithScheduler replaces the welcome-message timer. Tests use a synchronous
// scheduler.
func WithScheduler(schedule func(delay time.Duration, fn func())) Option {
	return func(o *Orchestrator) {
		o.schedule = schedule
	}
}

func NewOrchestrator(
	static config.ModerationConfig,
	groupStore config.GroupStore,
	eng *engine.Engine,
	adapter PlatformAdapter,
	log logger.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		static:     static,
		groupStore: groupStore,
		engine:     eng,
		adapter:    adapter,
		recorder:   audit.NopRecorder{},
		log:        log,
		schedule: func(delay time.Duration, fn func()) {
			time.AfterFunc(delay, fn)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes one raw join-request event. It never returns an error for
// terminal conditions (missing identifiers, adapter failures): retrying those
// cannot help, and the platform's own request expiry governs the outcome.
func (o *Orchestrator) Handle(ctx context.Context, event models.EventEnvelope) error {
	req := NormalizeEvent(&event)
	ctx = logging.WithRequestIdentity(ctx, req.GroupID, req.UserID)

	if !o.static.AutoProcess {
		metrics.RequestsTotal.WithLabelValues("skipped").Inc()
		o.log.DebugwCtx(ctx, "automatic processing disabled, ignoring join request")
		return nil
	}

	if !req.HasIdentifiers() {
		metrics.RequestsTotal.WithLabelValues("dropped").Inc()
		o.log.WarnwCtx(ctx, "join request missing identifiers, dropping",
			"request_id", req.RequestID,
		)
		return nil
	}

	o.log.InfowCtx(ctx, "processing join request",
		"request_id", req.RequestID,
		"message", truncate(req.Message),
	)

	effective := o.effectiveConfig(ctx, req.GroupID)
	result := o.engine.EvaluateRequest(ctx, effective, req.Context())

	o.record(ctx, req, result)

	if result.Approved {
		o.approve(ctx, req, effective, result)
	} else {
		o.reject(ctx, req, effective, result)
	}

	metrics.RequestsTotal.WithLabelValues("processed").Inc()
	return nil
}

// effectiveConfig overlays the group's persisted overrides on the static
// configuration. Computed fresh for every request, never cached: a config
// change must apply to the very next request.
func (o *Orchestrator) effectiveConfig(ctx context.Context, groupID string) config.ModerationConfig {
	overrides, err := o.groupStore.LoadGroupConfig(ctx, groupID)
	if err != nil {
		o.log.WarnwCtx(ctx, "failed to load group config, using static configuration",
			"error", err,
		)
		return o.static
	}
	if len(overrides) == 0 {
		return o.static
	}

	effective, err := config.Overlay(o.static, overrides)
	if err != nil {
		o.log.WarnwCtx(ctx, "failed to overlay group config, using static configuration",
			"error", err,
		)
		return o.static
	}
	return effective
}

func (o *Orchestrator) approve(ctx context.Context, req JoinRequest, cfg config.ModerationConfig, result engine.ApprovalResult) {
	if err := o.adapter.Approve(ctx, req); err != nil {
		metrics.ActionsTotal.WithLabelValues(models.ActionTypeApprove, "failed").Inc()
		o.log.ErrorwCtx(ctx, "failed to approve join request",
			"request_id", req.RequestID,
			"reason", result.Reason,
			"error", err,
		)
		return
	}

	metrics.ActionsTotal.WithLabelValues(models.ActionTypeApprove, "ok").Inc()
	o.log.InfowCtx(ctx, "join request approved",
		"request_id", req.RequestID,
		"reason", result.Reason,
		"rule_id", result.RuleID,
	)

	if cfg.EnableWelcome && cfg.WelcomeMessage != "" {
		o.scheduleWelcome(req.GroupID, cfg)
	}
}

func (o *Orchestrator) reject(ctx context.Context, req JoinRequest, cfg config.ModerationConfig, result engine.ApprovalResult) {
	message := result.RejectionMessage
	if message == "" {
		message = cfg.RejectionMessage
	}

	if err := o.adapter.Reject(ctx, req, message); err != nil {
		metrics.ActionsTotal.WithLabelValues(models.ActionTypeReject, "failed").Inc()
		o.log.ErrorwCtx(ctx, "failed to reject join request",
			"request_id", req.RequestID,
			"reason", result.Reason,
			"error", err,
		)
		return
	}

	metrics.ActionsTotal.WithLabelValues(models.ActionTypeReject, "ok").Inc()
	o.log.InfowCtx(ctx, "join request rejected",
		"request_id", req.RequestID,
		"reason", result.Reason,
		"rule_id", result.RuleID,
		"rejection_message", message,
	)
}

// scheduleWelcome fires once after the configured delay. Best effort: a send
// failure is logged and never retried, and nothing cancels the timer.
func (o *Orchestrator) scheduleWelcome(groupID string, cfg config.ModerationConfig) {
	delay := time.Duration(cfg.WelcomeDelaySeconds) * time.Second
	text := cfg.WelcomeMessage
	metrics.WelcomeMessagesTotal.WithLabelValues("scheduled").Inc()

	o.schedule(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := o.adapter.SendMessage(ctx, groupID, text); err != nil {
			metrics.WelcomeMessagesTotal.WithLabelValues("failed").Inc()
			o.log.Errorw("failed to send welcome message",
				"group_id", groupID,
				"error", err,
			)
			return
		}
		metrics.WelcomeMessagesTotal.WithLabelValues("sent").Inc()
	})
}

func (o *Orchestrator) record(ctx context.Context, req JoinRequest, result engine.ApprovalResult) {
	decision := audit.NewDecision(req.RequestID, req.Context(), result)
	if err := o.recorder.RecordDecision(ctx, decision); err != nil {
		o.log.WarnwCtx(ctx, "failed to record decision",
			"request_id", req.RequestID,
			"error", err,
		)
	}
}

func truncate(s string) string {
	const max = 100
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
