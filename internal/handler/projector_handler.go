// internal/handler/projector_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"adcp-service/internal/adcp"
	"adcp-service/internal/driver/sony"
	"adcp-service/internal/model"
	"adcp-service/internal/repository"
	"adcp-service/internal/service"
	"adcp-service/internal/status"
	"adcp-service/internal/utils"
)

// ProjectorController is the service surface used by the HTTP handlers
type ProjectorController interface {
	GetPowerState(ctx context.Context) (*service.PowerState, error)
	SetPowerState(ctx context.Context, on bool, requestID string) (string, error)
	ExecuteOperation(ctx context.Context, req *model.ExecuteOperationRequest, requestID string) (*model.Operation, error)
	ListOperations(ctx context.Context, filter *repository.OperationFilter) ([]*model.Operation, error)
	GetOperation(ctx context.Context, id uuid.UUID) (*model.Operation, error)
	GetOperationStats(ctx context.Context) (*repository.OperationStats, error)
	ConnectionInfo() *service.ConnectionInfo
	Disconnect()
	StatusSnapshot() (status.Snapshot, bool)
	LastPowerState() (*service.PowerState, bool)
}

// ProjectorHandler handles projector control requests
type ProjectorHandler struct {
	projector ProjectorController
	logger    *utils.ServiceLogger
}

// NewProjectorHandler creates a new projector handler
func NewProjectorHandler(projector ProjectorController, logger *zap.Logger) *ProjectorHandler {
	return &ProjectorHandler{
		projector: projector,
		logger:    utils.NewServiceLogger(logger, "projector-handler"),
	}
}

// RegisterRoutes registers projector routes
func (h *ProjectorHandler) RegisterRoutes(router *gin.RouterGroup) {
	projector := router.Group("/projector")
	{
		projector.GET("/power", h.GetPower)
		projector.PUT("/power", h.SetPower)
		projector.POST("/operations", h.ExecuteOperation)
		projector.GET("/operations", h.ListOperations)
		projector.GET("/operations/stats", h.GetOperationStats)
		projector.GET("/operations/:id", h.GetOperation)
		projector.GET("/connection", h.GetConnection)
		projector.POST("/disconnect", h.Disconnect)
		projector.GET("/status", h.GetStatus)
	}
}

// GetPower queries the projector power state
// @Summary Get power state
// @Description Query power_status. Falls back to the last known value when the projector is unreachable.
// @Tags Projector
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.PowerState}
// @Failure 503 {object} utils.APIResponse
// @Failure 504 {object} utils.APIResponse
// @Router /projector/power [get]
func (h *ProjectorHandler) GetPower(c *gin.Context) {
	state, err := h.projector.GetPowerState(c.Request.Context())
	if err != nil {
		h.handleError(c, "Failed to get power state", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Power state retrieved", state)
}

// SetPower switches the projector on or off
// @Summary Set power state
// @Tags Projector
// @Accept json
// @Produce json
// @Param request body model.SetPowerRequest true "Power request"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Failure 504 {object} utils.APIResponse
// @Router /projector/power [put]
func (h *ProjectorHandler) SetPower(c *gin.Context) {
	var req model.SetPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	response, err := h.projector.SetPowerState(c.Request.Context(), *req.On, utils.GetRequestID(c))
	if err != nil {
		h.handleError(c, "Failed to set power state", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Power state changed", gin.H{
		"on":       *req.On,
		"response": response,
	})
}

// ExecuteOperation runs a typed projector operation
// @Summary Execute operation
// @Tags Operations
// @Accept json
// @Produce json
// @Param request body model.ExecuteOperationRequest true "Operation request"
// @Success 200 {object} utils.APIResponse{data=model.Operation}
// @Failure 400 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse
// @Failure 504 {object} utils.APIResponse
// @Router /projector/operations [post]
func (h *ProjectorHandler) ExecuteOperation(c *gin.Context) {
	var req model.ExecuteOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	operation, err := h.projector.ExecuteOperation(c.Request.Context(), &req, utils.GetRequestID(c))
	if err != nil {
		h.handleError(c, "Operation failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation completed", operation)
}

// ListOperations lists recent operations
// @Summary List operations
// @Tags Operations
// @Produce json
// @Param limit query int false "Maximum number of operations"
// @Param status query string false "Operation status"
// @Param operation_type query string false "Operation type"
// @Success 200 {object} utils.APIResponse{data=[]model.Operation}
// @Router /projector/operations [get]
func (h *ProjectorHandler) ListOperations(c *gin.Context) {
	filter := &repository.OperationFilter{}

	if limit := c.Query("limit"); limit != "" {
		value, err := strconv.Atoi(limit)
		if err != nil || value < 0 {
			utils.ValidationErrorResponse(c, map[string]string{"limit": "must be a non-negative integer"})
			return
		}
		filter.Limit = value
	}
	if s := c.Query("status"); s != "" {
		opStatus := model.OperationStatus(strings.ToUpper(s))
		filter.Status = &opStatus
	}
	if t := c.Query("operation_type"); t != "" {
		opType := model.OperationType(strings.ToUpper(t))
		filter.OperationType = &opType
	}

	operations, err := h.projector.ListOperations(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, "Failed to list operations", err)
		return
	}
	if operations == nil {
		operations = []*model.Operation{}
	}

	utils.SuccessResponse(c, http.StatusOK, "Operations retrieved", operations)
}

// GetOperation returns one operation
// @Summary Get operation
// @Tags Operations
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} utils.APIResponse{data=model.Operation}
// @Failure 404 {object} utils.APIResponse
// @Router /projector/operations/{id} [get]
func (h *ProjectorHandler) GetOperation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation ID", err)
		return
	}

	operation, err := h.projector.GetOperation(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "Failed to get operation", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation retrieved", operation)
}

// GetOperationStats summarizes the operation history
func (h *ProjectorHandler) GetOperationStats(c *gin.Context) {
	stats, err := h.projector.GetOperationStats(c.Request.Context())
	if err != nil {
		h.handleError(c, "Failed to get operation stats", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation stats retrieved", stats)
}

// GetConnection returns projector information and session statistics
// @Summary Connection info
// @Tags Projector
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.ConnectionInfo}
// @Router /projector/connection [get]
func (h *ProjectorHandler) GetConnection(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection info retrieved", h.projector.ConnectionInfo())
}

// Disconnect drops the ADCP session
// @Summary Disconnect
// @Tags Projector
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /projector/disconnect [post]
func (h *ProjectorHandler) Disconnect(c *gin.Context) {
	h.projector.Disconnect()
	utils.SuccessResponse(c, http.StatusOK, "Projector session closed", nil)
}

// GetStatus returns the latest SNMP status snapshot
// @Summary SNMP status
// @Tags Projector
// @Produce json
// @Success 200 {object} utils.APIResponse{data=status.Snapshot}
// @Failure 404 {object} utils.APIResponse
// @Router /projector/status [get]
func (h *ProjectorHandler) GetStatus(c *gin.Context) {
	snapshot, ok := h.projector.StatusSnapshot()
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Status polling is disabled", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Status retrieved", snapshot)
}

func (h *ProjectorHandler) handleError(c *gin.Context, message string, err error) {
	statusCode, code := errorStatus(err)
	c.Error(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.Error(err),
			zap.String("request_id", utils.GetRequestID(c)),
			zap.Int("status_code", statusCode),
		)
	}
	utils.ErrorResponseWithCode(c, statusCode, code, message, err)
}

// errorStatus maps service errors onto HTTP status codes and error codes
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, sony.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, sony.ErrUnsupportedOperation):
		return http.StatusBadRequest, "UNSUPPORTED_OPERATION"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	}

	kind := adcp.ErrorKind(err)
	switch {
	case adcp.IsTimeout(err):
		return http.StatusGatewayTimeout, errorCode(kind)
	case errors.Is(err, adcp.ErrAuthenticationFailure):
		return http.StatusBadGateway, errorCode(kind)
	case kind != "":
		return http.StatusServiceUnavailable, errorCode(kind)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "REQUEST_CANCELED"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

// errorCode turns an error kind such as CommandTimeout into COMMAND_TIMEOUT
func errorCode(kind string) string {
	var b strings.Builder
	for i, r := range kind {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
