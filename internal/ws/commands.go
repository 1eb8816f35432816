package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/service"

	"go.uber.org/zap"
)

// CommandHandler handles WebSocket commands
type CommandHandler struct {
	appSvc *service.ApplicationService
	log    *zap.Logger
}

func NewCommandHandler(appSvc *service.ApplicationService, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		appSvc: appSvc,
		log:    log,
	}
}

// liveViewInterval is how often a watched application's view is recomputed
// and pushed to the watcher.
const liveViewInterval = time.Minute

// HandleCommand processes a WebSocket command
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd map[string]interface{}) {
	op, _ := cmd["op"].(string)
	data, _ := cmd["data"].(map[string]interface{})
	msgID, _ := cmd["id"].(string)

	switch op {
	case "watch":
		h.handleWatch(ctx, conn, msgID, data)
	case "unwatch":
		h.handleUnwatch(conn, msgID, data)
	case "getApplication":
		h.handleGetApplication(ctx, conn, msgID, data)
	case "changeStatus":
		h.handleChangeStatus(ctx, conn, msgID, data)
	case "nextAction":
		h.handleNextAction(ctx, conn, msgID, data)
	default:
		h.sendError(conn, msgID, "unknown_command", "Unknown command: "+op)
	}
}

// handleWatch subscribes the connection to an application's channel and
// starts a live view that re-derives milestone statuses and the next action
// on a fixed cadence until the client unwatches or disconnects.
func (h *CommandHandler) handleWatch(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	applicationID, _ := data["applicationId"].(string)
	if applicationID == "" {
		h.sendError(conn, msgID, "invalid_input", "applicationId required")
		return
	}

	// Confirm the application exists before committing resources to it
	if _, err := h.appSvc.GetApplication(ctx, applicationID); err != nil {
		h.sendError(conn, msgID, "not_found", err.Error())
		return
	}

	conn.hub.Subscribe(conn, "application:"+applicationID)

	viewCtx, cancel := context.WithCancel(conn.ctx)
	conn.addWatch(applicationID, cancel)

	go h.runLiveView(viewCtx, conn, applicationID)

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]string{"status": "WATCHING", "applicationId": applicationID},
	})
}

func (h *CommandHandler) handleUnwatch(conn *Conn, msgID string, data map[string]interface{}) {
	applicationID, _ := data["applicationId"].(string)
	if applicationID == "" {
		h.sendError(conn, msgID, "invalid_input", "applicationId required")
		return
	}

	conn.cancelWatch(applicationID)
	conn.hub.Unsubscribe(conn, "application:"+applicationID)

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]string{"status": "UNWATCHED", "applicationId": applicationID},
	})
}

// runLiveView pushes an immediate snapshot and then a refreshed one every
// tick. Cancellation stops the view without tearing down the connection.
func (h *CommandHandler) runLiveView(ctx context.Context, conn *Conn, applicationID string) {
	h.pushSnapshot(ctx, conn, applicationID)

	ticker := time.NewTicker(liveViewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pushSnapshot(ctx, conn, applicationID)
		}
	}
}

func (h *CommandHandler) pushSnapshot(ctx context.Context, conn *Conn, applicationID string) {
	app, err := h.appSvc.GetApplication(ctx, applicationID)
	if err != nil {
		h.log.Warn("Live view lost its application, stopping",
			zap.String("application_id", applicationID), zap.Error(err))
		conn.cancelWatch(applicationID)
		return
	}

	milestones, err := h.appSvc.RefreshMilestones(ctx, applicationID)
	if err != nil {
		h.log.Warn("Live view milestone refresh failed",
			zap.String("application_id", applicationID), zap.Error(err))
		return
	}

	action, err := h.appSvc.NextAction(ctx, applicationID)
	if err != nil {
		h.log.Warn("Live view next action failed",
			zap.String("application_id", applicationID), zap.Error(err))
		return
	}

	snapshot := map[string]interface{}{
		"type":          "snapshot",
		"applicationId": applicationID,
		"application":   app,
		"milestones":    milestones,
	}
	if action != nil {
		snapshot["nextAction"] = action
	}
	conn.sendJSON(snapshot)

	// Stop ticking once the application reaches a terminal status; the
	// subscription stays so the client still hears late events.
	if lifecycle.IsTerminal(app.LifecycleStatus) {
		conn.cancelWatch(applicationID)
	}
}

func (h *CommandHandler) handleGetApplication(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	applicationID, _ := data["applicationId"].(string)
	if applicationID == "" {
		h.sendError(conn, msgID, "invalid_input", "applicationId required")
		return
	}

	app, err := h.appSvc.GetApplication(ctx, applicationID)
	if err != nil {
		h.sendError(conn, msgID, "not_found", err.Error())
		return
	}

	milestones, err := h.appSvc.ListMilestones(ctx, applicationID)
	if err != nil {
		h.sendError(conn, msgID, "list_failed", err.Error())
		return
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]interface{}{
			"application": app,
			"milestones":  milestones,
		},
	})
}

func (h *CommandHandler) handleChangeStatus(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	applicationID, _ := data["applicationId"].(string)
	newStatus, _ := data["newStatus"].(string)
	if applicationID == "" || newStatus == "" {
		h.sendError(conn, msgID, "invalid_input", "applicationId and newStatus required")
		return
	}

	input := service.ChangeStatusInput{
		ApplicationID: applicationID,
		NewStatus:     model.LifecycleStatus(newStatus),
		Payload:       parsePayload(data),
	}

	result, err := h.appSvc.ChangeStatus(ctx, input)
	if err != nil {
		var ruleErr *lifecycle.RuleError
		if errors.As(err, &ruleErr) {
			h.sendError(conn, msgID, string(ruleErr.Kind), ruleErr.Message)
			return
		}
		if errors.Is(err, service.ErrConflict) {
			h.sendError(conn, msgID, "conflict", err.Error())
			return
		}
		h.sendError(conn, msgID, "change_failed", err.Error())
		return
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": result,
	})
}

func (h *CommandHandler) handleNextAction(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	applicationID, _ := data["applicationId"].(string)
	if applicationID == "" {
		h.sendError(conn, msgID, "invalid_input", "applicationId required")
		return
	}

	action, err := h.appSvc.NextAction(ctx, applicationID)
	if err != nil {
		h.sendError(conn, msgID, "not_found", err.Error())
		return
	}

	response := map[string]interface{}{
		"type": "response",
		"data": map[string]interface{}{"applicationId": applicationID},
	}
	if action != nil {
		response["data"].(map[string]interface{})["nextAction"] = action
	}
	h.sendResponse(conn, msgID, response)
}

func parsePayload(data map[string]interface{}) lifecycle.Payload {
	var p lifecycle.Payload

	if score, ok := data["completionScore"].(float64); ok {
		s := int(score)
		p.CompletionScore = &s
	}
	if v, ok := data["submissionMethod"].(string); ok && v != "" {
		p.SubmissionMethod = &v
	}
	if v, ok := data["portalReferenceNumber"].(string); ok && v != "" {
		p.PortalReferenceNumber = &v
	}
	if v, ok := data["submissionNotes"].(string); ok && v != "" {
		p.SubmissionNotes = &v
	}
	if v, ok := data["decisionType"].(string); ok && v != "" {
		dt := model.DecisionType(v)
		p.DecisionType = &dt
	}
	if v, ok := data["decisionNotes"].(string); ok && v != "" {
		p.DecisionNotes = &v
	}
	if v, ok := data["userNotes"].(string); ok && v != "" {
		p.UserNotes = &v
	}
	p.SubmittedAt = parseTimeField(data, "submittedAt")
	p.ExpectedDecisionDate = parseTimeField(data, "expectedDecisionDate")
	p.DecisionAt = parseTimeField(data, "decisionAt")

	return p
}

func parseTimeField(data map[string]interface{}, key string) *time.Time {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID string, response map[string]interface{}) {
	if msgID != "" {
		response["id"] = msgID
	}
	msg, _ := json.Marshal(response)
	select {
	case conn.send <- msg:
	default:
		h.log.Warn("Failed to send response, channel full")
	}
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	err := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		err["id"] = msgID
	}
	msg, _ := json.Marshal(err)
	select {
	case conn.send <- msg:
	default:
		h.log.Warn("Failed to send error, channel full")
	}
}
