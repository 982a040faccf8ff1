package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medquiz-pro/session-service/internal/engine"
	"github.com/medquiz-pro/session-service/internal/services"
	"github.com/medquiz-pro/session-service/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	exportService  services.ExportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
	}
}

// StartSession creates a new quiz session
// @Summary Start quiz session
// @Description Starts a new quiz session in the requested mode
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Session parameters"
// @Success 201 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting session", "user_id", req.UserID, "mode", req.Mode)

	session, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns the current session snapshot
// @Summary Get session snapshot
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	session, err := h.sessionService.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetSessionQuestions returns the session's question set
// @Summary Get session questions
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/questions [get]
func (h *SessionHandler) GetSessionQuestions(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	questions, err := h.sessionService.Questions(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions retrieved",
		Data:    questions,
	})
}

// SubmitAnswer records an answer for one question
// @Summary Submit answer
// @Description Records the answer for a question index; a repeat submission for the same index is rejected
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.SubmitAnswerRequest true "Answer data"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers [post]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	session, err := h.sessionService.SubmitAnswer(c.Request.Context(), sessionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// NextQuestion moves the session to the next question
// @Summary Go to next question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/next [post]
func (h *SessionHandler) NextQuestion(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	session, err := h.sessionService.GoToNext(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// PreviousQuestion moves the session to the previous question
// @Summary Go to previous question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/previous [post]
func (h *SessionHandler) PreviousQuestion(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	session, err := h.sessionService.GoToPrevious(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GoToQuestion jumps the session to an arbitrary question index
// @Summary Go to question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Success 200 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/questions/{index} [post]
func (h *SessionHandler) GoToQuestion(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question index",
			Details: err.Error(),
		})
		return
	}

	session, err := h.sessionService.GoToQuestion(c.Request.Context(), sessionID, index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetCountdowns returns the session timer and auto-advance countdown
// @Summary Get countdowns
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.CountdownResponse
// @Router /sessions/{id}/countdowns [get]
func (h *SessionHandler) GetCountdowns(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	c.JSON(http.StatusOK, h.sessionService.Countdowns(sessionID))
}

// CompleteSessionRequest carries the optional final elapsed time.
type CompleteSessionRequest struct {
	TimeSpent int `json:"time_spent" validate:"min=0"`
}

// AbandonSessionRequest carries the abandonment reason.
type AbandonSessionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64"`
}

// CompleteSession finishes the session and returns its result
// @Summary Complete session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param completion body CompleteSessionRequest false "Final timing data"
// @Success 200 {object} models.QuizResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req CompleteSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	result, err := h.sessionService.Complete(c.Request.Context(), sessionID, req.TimeSpent)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AbandonSession terminates the session without scoring
// @Summary Abandon session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param abandonment body AbandonSessionRequest false "Abandonment reason"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/abandon [post]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	req := AbandonSessionRequest{Reason: "user_exit"}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	if err := h.sessionService.Abandon(c.Request.Context(), sessionID, req.Reason); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Session abandoned",
	})
}

// GetResult returns the computed result for a completed session
// @Summary Get session result
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.QuizResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/result [get]
func (h *SessionHandler) GetResult(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	result, err := h.sessionService.Result(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportResult downloads the result as an XLSX workbook
// @Summary Export session result
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/result/export [get]
func (h *SessionHandler) ExportResult(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Exporting result", "session_id", sessionID)

	payload, filename, err := h.exportService.ExportResult(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

// GetRecoveryStatus reports the error boundary state
// @Summary Get recovery status
// @Tags recovery
// @Produce json
// @Success 200 {object} services.RecoveryStatusResponse
// @Router /recovery [get]
func (h *SessionHandler) GetRecoveryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionService.RecoveryStatus())
}

// ResetRecovery clears a terminal fault after explicit user action
// @Summary Reset recovery state
// @Tags recovery
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /recovery/reset [post]
func (h *SessionHandler) ResetRecovery(c *gin.Context) {
	h.LogRequest(c, "Resetting recovery state")
	h.sessionService.ResetRecovery()

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Recovery state reset",
	})
}

// handleServiceError maps engine and service errors onto HTTP statuses.
func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var corruption *engine.CorruptionError
	if errors.As(err, &corruption) {
		h.LogError(c, err, "Session state corrupted", "code", corruption.Code)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Session state corrupted",
			Code:    corruption.Code,
		})
		return
	}

	var terminal *engine.TerminalError
	if errors.As(err, &terminal) {
		h.LogError(c, err, "Unrecoverable fault")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: terminal.Fault.Describe(),
			Code:    string(terminal.Fault.Class),
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrSessionNotFound) || errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, engine.ErrSessionNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session is not active",
		})
	case errors.Is(err, engine.ErrAlreadyAnswered):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Question already answered",
		})
	case errors.Is(err, engine.ErrQuestionOutOfRange) || errors.Is(err, engine.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question or option index",
			Details: err.Error(),
		})
	case errors.Is(err, engine.ErrResultNotAvailable) || errors.Is(err, services.ErrResultNotAvailable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Result is only available for completed sessions",
		})
	case errors.Is(err, engine.ErrTimerNotRunning):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No countdown running for session",
		})
	case errors.Is(err, services.ErrSessionNoQuestions):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No questions available for the requested filters",
		})
	case errors.Is(err, services.ErrSessionInvalidMode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid quiz mode",
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
