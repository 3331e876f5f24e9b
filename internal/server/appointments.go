package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"github.com/MarcoPoloResearchLab/register/internal/register"
	"github.com/MarcoPoloResearchLab/register/internal/view"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorCoder interface {
	Code() string
}

type appointmentRequestPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

type createResponsePayload struct {
	Appointment view.RowView `json:"appointment"`
	FormReset   bool         `json:"form_reset"`
}

type listResponsePayload struct {
	Rows     []view.RowView `json:"rows"`
	Total    int            `json:"total"`
	Filtered int            `json:"filtered"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

type approvalRequestPayload struct {
	Approved *bool `json:"approved"`
}

type selectionRequestPayload struct {
	Selected *bool `json:"selected"`
}

type deleteRequestPayload struct {
	Confirm *bool `json:"confirm"`
}

type deleteResponsePayload struct {
	Confirmed bool    `json:"confirmed"`
	Deleted   []int64 `json:"deleted"`
	Failed    []int64 `json:"failed"`
}

type confirmationResponsePayload struct {
	Error  string          `json:"error"`
	Prompt register.Prompt `json:"prompt"`
}

func (h *httpHandler) handleListAppointments(c *gin.Context) {
	query, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_query"})
		return
	}

	page := h.view.Query(query)
	response := listResponsePayload{
		Rows:     rowViews(page.Rows),
		Total:    page.Total,
		Filtered: page.Filtered,
		Page:     page.Page,
		PageSize: page.PageSize,
		Pages:    page.Pages,
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreateAppointment(c *gin.Context) {
	var request appointmentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.coordinator.Create(c.Request.Context(), appointments.FormValues{
		Name:  request.Name,
		Phone: request.Phone,
		Date:  request.Date,
		Time:  request.Time,
	})
	if err != nil {
		h.respondError(c, "create appointment failed", err)
		return
	}

	c.JSON(http.StatusCreated, createResponsePayload{
		Appointment: view.NewRowView(view.Row{Record: result.Record}),
		FormReset:   result.FormReset,
	})
}

func (h *httpHandler) handleReload(c *gin.Context) {
	if err := h.coordinator.Load(c.Request.Context()); err != nil {
		h.respondError(c, "reload failed", err)
		return
	}
	rows := h.view.Rows()
	c.JSON(http.StatusOK, gin.H{"rows": rowViews(rows), "total": len(rows)})
}

func (h *httpHandler) handleSetApproval(c *gin.Context) {
	token, ok := parseTokenParam(c)
	if !ok {
		return
	}
	var request approvalRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.coordinator.SetApproval(c.Request.Context(), token, *request.Approved)
	if err != nil {
		h.respondError(c, "approval update failed", err, zap.Int64("token", token.Int64()))
		return
	}
	row, _ := h.view.Row(token)
	row.Record = record
	c.JSON(http.StatusOK, gin.H{"appointment": view.NewRowView(row)})
}

func (h *httpHandler) handleSetSelection(c *gin.Context) {
	token, ok := parseTokenParam(c)
	if !ok {
		return
	}
	var request selectionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Selected == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	row, err := h.view.SetSelected(token, *request.Selected)
	if err != nil {
		h.respondError(c, "selection update failed", err, zap.Int64("token", token.Int64()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": view.NewRowView(row)})
}

func (h *httpHandler) handleDeleteOne(c *gin.Context) {
	token, ok := parseTokenParam(c)
	if !ok {
		return
	}
	confirmer, ok := bindConfirmer(c)
	if !ok {
		return
	}

	result, err := h.coordinator.DeleteOne(c.Request.Context(), token, confirmer)
	h.respondDelete(c, confirmer, result, err)
}

func (h *httpHandler) handleDeleteSelected(c *gin.Context) {
	confirmer, ok := bindConfirmer(c)
	if !ok {
		return
	}

	result, err := h.coordinator.DeleteSelected(c.Request.Context(), confirmer)
	h.respondDelete(c, confirmer, result, err)
}

func (h *httpHandler) handlePrint(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if err := view.WritePrintSheet(c.Writer, h.view.Records()); err != nil {
		h.logger.Error("print sheet failed", zap.Error(err))
	}
}

func (h *httpHandler) handleExport(c *gin.Context) {
	now := h.clock().UTC()
	filename := fmt.Sprintf("%s-%s.yaml", h.registerName, now.Format("20060102T150405Z"))
	c.Header("Content-Type", "application/yaml; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := view.WriteExport(c.Writer, h.registerName, now, h.view.Records()); err != nil {
		h.logger.Error("export failed", zap.Error(err))
	}
}

func (h *httpHandler) respondDelete(c *gin.Context, confirmer *requestConfirmer, result register.DeleteResult, err error) {
	if errors.Is(err, register.ErrConfirmationRequired) {
		c.JSON(http.StatusPreconditionRequired, confirmationResponsePayload{
			Error:  "confirmation_required",
			Prompt: confirmer.prompt,
		})
		return
	}

	response := deleteResponsePayload{
		Confirmed: result.Confirmed,
		Deleted:   tokenValues(result.Deleted),
		Failed:    tokenValues(result.Failed),
	}
	if err != nil && !result.Confirmed {
		h.respondError(c, "delete failed", err)
		return
	}
	if err != nil {
		h.logger.Error("delete partially failed", zap.Error(err), zap.Int("failed", len(result.Failed)))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "delete_failed",
			"code":      serviceErrorCode(err),
			"confirmed": response.Confirmed,
			"deleted":   response.Deleted,
			"failed":    response.Failed,
		})
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) respondError(c *gin.Context, message string, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, appointments.ErrValidationFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "message": err.Error()})
	case errors.Is(err, register.ErrUnknownAppointment), errors.Is(err, view.ErrRowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_appointment"})
	default:
		h.logger.Error(message, append(fields, zap.Error(err))...)
		payload := gin.H{"error": "storage_failed"}
		if code := serviceErrorCode(err); code != "" {
			payload["code"] = code
		}
		c.JSON(http.StatusInternalServerError, payload)
	}
}

// requestConfirmer answers a confirmation prompt from the request body.
// A request without an answer records the prompt and fails the action.
type requestConfirmer struct {
	answer *bool
	prompt register.Prompt
}

func (r *requestConfirmer) Confirm(_ context.Context, prompt register.Prompt) (bool, error) {
	if r.answer == nil {
		r.prompt = prompt
		return false, register.ErrConfirmationRequired
	}
	return *r.answer, nil
}

func bindConfirmer(c *gin.Context) (*requestConfirmer, bool) {
	var request deleteRequestPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return nil, false
		}
	}
	return &requestConfirmer{answer: request.Confirm}, true
}

func parseTokenParam(c *gin.Context) (appointments.Token, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(c.Param("token")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_token"})
		return 0, false
	}
	token, err := appointments.NewToken(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_token"})
		return 0, false
	}
	return token, true
}

func parseListQuery(c *gin.Context) (view.Query, error) {
	column, err := view.ParseSortColumn(c.Query("sort"))
	if err != nil {
		return view.Query{}, err
	}
	descending, err := view.ParseDescending(c.Query("order"))
	if err != nil {
		return view.Query{}, err
	}
	page, err := parseOptionalInt(c.Query("page"))
	if err != nil {
		return view.Query{}, err
	}
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		return view.Query{}, err
	}
	return view.Query{
		Search:     c.Query("search"),
		SortColumn: column,
		Descending: descending,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %q", view.ErrInvalidQuery, raw)
	}
	return value, nil
}

func serviceErrorCode(err error) string {
	var coder errorCoder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return ""
}

func rowViews(rows []view.Row) []view.RowView {
	views := make([]view.RowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, view.NewRowView(row))
	}
	return views
}

func tokenValues(tokens []appointments.Token) []int64 {
	values := make([]int64, 0, len(tokens))
	for _, token := range tokens {
		values = append(values, token.Int64())
	}
	return values
}
