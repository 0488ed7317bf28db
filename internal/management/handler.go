package management

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/pkg/errors"
)

type contextKey string

// operatorContextKey carries the operator identity from the X-Operator
// header into audit trails and config events.
const operatorContextKey contextKey = "operator"

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		groups := v1.Group("/groups/:group_id")
		{
			ruleRoutes := groups.Group("/rules")
			{
				ruleRoutes.GET("", h.ListRules)
				ruleRoutes.POST("", h.CreateRule)
				ruleRoutes.GET("/:id", h.GetRule)
				ruleRoutes.PUT("/:id", h.UpdateRule)
				ruleRoutes.DELETE("/:id", h.DeleteRule)
				ruleRoutes.POST("/:id/toggle", h.ToggleRule)
				ruleRoutes.GET("/:id/versions", h.GetRuleVersions)
				ruleRoutes.GET("/:id/audit", h.GetRuleAuditLogs)
				ruleRoutes.POST("/presets/keywords", h.CreateKeywordPreset)
			}

			listRoutes := groups.Group("/lists/:kind")
			{
				listRoutes.GET("", h.ListMembers)
				listRoutes.POST("", h.AddMembers)
				listRoutes.DELETE("", h.RemoveMembers)
			}

			keywordRoutes := groups.Group("/keywords/:type")
			{
				keywordRoutes.GET("", h.ListKeywords)
				keywordRoutes.POST("", h.AddKeywords)
				keywordRoutes.DELETE("", h.RemoveKeywords)
			}

			groups.GET("/config", h.GetGroupConfig)
			groups.PATCH("/config", h.UpdateGroupConfig)
			groups.GET("/decisions", h.ListDecisions)
		}

		auditRoutes := v1.Group("/audit")
		{
			auditRoutes.GET("/logs", h.GetAuditLogs)
		}
	}
}

// operatorContext threads the caller identity from the X-Operator header.
func operatorContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if operator := c.GetHeader("X-Operator"); operator != "" {
		ctx = context.WithValue(ctx, operatorContextKey, operator)
	}
	return ctx
}

// ListRules godoc
// @Summary      List moderation rules for a group
// @Tags         rules
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Success      200       {array}   rules.Rule
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	groupRules, err := h.Service.ListRules(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupRules)
}

// CreateRule godoc
// @Summary      Create a moderation rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        group_id  path       string             true  "Group ID"
// @Param        rule      body       CreateRuleRequest  true  "Rule data"
// @Success      201       {object}   rules.Rule
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.CreateRule(operatorContext(c), c.Param("group_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a moderation rule by ID
// @Tags         rules
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Param        id        path      string  true  "Rule ID"
// @Success      200       {object}   rules.Rule
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("group_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule godoc
// @Summary      Update a moderation rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        group_id  path       string             true  "Group ID"
// @Param        id        path       string             true  "Rule ID"
// @Param        rule      body       UpdateRuleRequest  true  "Updated fields"
// @Success      200       {object}   rules.Rule
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.UpdateRule(operatorContext(c), c.Param("group_id"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a moderation rule
// @Tags         rules
// @Param        group_id  path      string  true  "Group ID"
// @Param        id        path      string  true  "Rule ID"
// @Success      204       "No Content"
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.Service.DeleteRule(operatorContext(c), c.Param("group_id"), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleRule godoc
// @Summary      Enable or disable a moderation rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        group_id  path       string             true  "Group ID"
// @Param        id        path       string             true  "Rule ID"
// @Param        toggle    body       ToggleRuleRequest  true  "Target state"
// @Success      200       {object}   rules.Rule
// @Failure      404       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/{id}/toggle [post]
func (h *Handler) ToggleRule(c *gin.Context) {
	var req ToggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.ToggleRule(operatorContext(c), c.Param("group_id"), c.Param("id"), req.Enabled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// CreateKeywordPreset godoc
// @Summary      Create the stock keyword-rejection rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        group_id  path       string                true  "Group ID"
// @Param        preset    body       KeywordPresetRequest  true  "Keywords to reject"
// @Success      201       {object}   rules.Rule
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/presets/keywords [post]
func (h *Handler) CreateKeywordPreset(c *gin.Context) {
	var req KeywordPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.CreateKeywordPreset(operatorContext(c), c.Param("group_id"), req.Keywords)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// GetRuleVersions godoc
// @Summary      Get rule version history
// @Tags         rules
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Param        id        path      string  true  "Rule ID"
// @Success      200       {array}   RuleVersion
// @Failure      503       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/rules/{id}/versions [get]
func (h *Handler) GetRuleVersions(c *gin.Context) {
	versions, err := h.Service.GetRuleVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetRuleAuditLogs godoc
// @Summary      Get audit logs for a rule
// @Tags         rules
// @Produce      json
// @Param        group_id  path      string  true   "Group ID"
// @Param        id        path      string  true   "Rule ID"
// @Param        limit     query     int     false  "Maximum number of logs (1-1000)" default(100)
// @Success      200       {array}   AuditLog
// @Router       /groups/{group_id}/rules/{id}/audit [get]
func (h *Handler) GetRuleAuditLogs(c *gin.Context) {
	id := c.Param("id")
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, c.Param("group_id"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Tags         audit
// @Produce      json
// @Param        rule_id   query     string  false  "Filter by rule ID"
// @Param        group_id  query     string  false  "Filter by group ID"
// @Param        limit     query     int     false  "Maximum number of logs (1-1000)" default(100)
// @Success      200       {array}   AuditLog
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	var ruleIDPtr *string
	if ruleID := c.Query("rule_id"); ruleID != "" {
		ruleIDPtr = &ruleID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), ruleIDPtr, c.Query("group_id"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListMembers godoc
// @Summary      List whitelist or name-whitelist members
// @Tags         lists
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Param        kind      path      string  true  "List kind (whitelist, name_whitelist)"
// @Success      200       {array}   string
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/lists/{kind} [get]
func (h *Handler) ListMembers(c *gin.Context) {
	kind, err := listKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	members, err := h.Service.ListMembers(c.Request.Context(), kind, c.Param("group_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMembers godoc
// @Summary      Add members to a list
// @Description  Cleans and validates entries; reports added, duplicate and invalid members.
// @Tags         lists
// @Accept       json
// @Produce      json
// @Param        group_id  path       string          true  "Group ID"
// @Param        kind      path       string          true  "List kind"
// @Param        members   body       MembersRequest  true  "Members to add"
// @Success      200       {object}   lists.BulkReport
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/lists/{kind} [post]
func (h *Handler) AddMembers(c *gin.Context) {
	kind, err := listKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	report, err := h.Service.AddMembers(operatorContext(c), kind, c.Param("group_id"), req.entries())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RemoveMembers godoc
// @Summary      Remove members from a list
// @Tags         lists
// @Accept       json
// @Produce      json
// @Param        group_id  path       string          true  "Group ID"
// @Param        kind      path       string          true  "List kind"
// @Param        members   body       MembersRequest  true  "Members to remove"
// @Success      200       {object}   map[string]int
// @Router       /groups/{group_id}/lists/{kind} [delete]
func (h *Handler) RemoveMembers(c *gin.Context) {
	kind, err := listKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	removed, err := h.Service.RemoveMembers(operatorContext(c), kind, c.Param("group_id"), req.entries())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ListKeywords godoc
// @Summary      List approval or rejection keywords
// @Tags         keywords
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Param        type      path      string  true  "Keyword type (approval, rejection)"
// @Success      200       {array}   string
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/keywords/{type} [get]
func (h *Handler) ListKeywords(c *gin.Context) {
	kind, err := lists.KeywordKind(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	keywords, err := h.Service.ListMembers(c.Request.Context(), kind, c.Param("group_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, keywords)
}

// AddKeywords godoc
// @Summary      Add approval or rejection keywords
// @Tags         keywords
// @Accept       json
// @Produce      json
// @Param        group_id  path       string          true  "Group ID"
// @Param        type      path       string          true  "Keyword type"
// @Param        members   body       MembersRequest  true  "Keywords to add"
// @Success      200       {object}   lists.BulkReport
// @Router       /groups/{group_id}/keywords/{type} [post]
func (h *Handler) AddKeywords(c *gin.Context) {
	kind, err := lists.KeywordKind(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	report, err := h.Service.AddMembers(operatorContext(c), kind, c.Param("group_id"), req.entries())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RemoveKeywords godoc
// @Summary      Remove approval or rejection keywords
// @Tags         keywords
// @Accept       json
// @Produce      json
// @Param        group_id  path       string          true  "Group ID"
// @Param        type      path       string          true  "Keyword type"
// @Param        members   body       MembersRequest  true  "Keywords to remove"
// @Success      200       {object}   map[string]int
// @Router       /groups/{group_id}/keywords/{type} [delete]
func (h *Handler) RemoveKeywords(c *gin.Context) {
	kind, err := lists.KeywordKind(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req MembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	removed, err := h.Service.RemoveMembers(operatorContext(c), kind, c.Param("group_id"), req.entries())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetGroupConfig godoc
// @Summary      Get the effective moderation config for a group
// @Tags         config
// @Produce      json
// @Param        group_id  path      string  true  "Group ID"
// @Success      200       {object}   config.ModerationConfig
// @Router       /groups/{group_id}/config [get]
func (h *Handler) GetGroupConfig(c *gin.Context) {
	effective, err := h.Service.GetGroupConfig(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, effective)
}

// UpdateGroupConfig godoc
// @Summary      Patch per-group moderation overrides
// @Description  Accepts a partial config; each top-level key replaces the static value wholesale.
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        group_id   path       string                 true  "Group ID"
// @Param        overrides  body       config.GroupOverrides  true  "Partial config"
// @Success      200        {object}   config.ModerationConfig
// @Failure      400        {object}  errors.ErrorResponse
// @Router       /groups/{group_id}/config [patch]
func (h *Handler) UpdateGroupConfig(c *gin.Context) {
	var overrides config.GroupOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	effective, err := h.Service.UpdateGroupConfig(operatorContext(c), c.Param("group_id"), overrides)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, effective)
}

// ListDecisions godoc
// @Summary      List recent moderation decisions for a group
// @Tags         decisions
// @Produce      json
// @Param        group_id  path      string  true   "Group ID"
// @Param        user_id   query     string  false  "Filter by requester"
// @Param        approved  query     bool    false  "Filter by verdict"
// @Param        limit     query     int     false  "Maximum number of decisions (1-1000)" default(100)
// @Success      200       {array}   audit.Decision
// @Router       /groups/{group_id}/decisions [get]
func (h *Handler) ListDecisions(c *gin.Context) {
	filter := audit.DecisionFilter{
		GroupID: c.Param("group_id"),
		UserID:  c.Query("user_id"),
		Limit:   int64(parseLimit(c.Query("limit"))),
	}
	if approvedStr := c.Query("approved"); approvedStr != "" {
		approved, err := strconv.ParseBool(approvedStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
		filter.Approved = &approved
	}

	decisions, err := h.Service.ListDecisions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func listKind(raw string) (lists.Kind, error) {
	switch lists.Kind(raw) {
	case lists.KindWhitelist:
		return lists.KindWhitelist, nil
	case lists.KindNameWhitelist:
		return lists.KindNameWhitelist, nil
	default:
		return "", errors.ErrValidation.WithDetail("message", "list kind must be whitelist or name_whitelist")
	}
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
