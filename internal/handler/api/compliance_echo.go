package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/service"
	xhttp "RiskApprove/pkg/http"
	applogger "RiskApprove/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"
)

const (
	ragServiceName   = "rag-service"
	missingBodyMsg   = "Missing request body"
	reloadOKMsg      = "Regulations reloaded successfully"
	reloadFailedMsg  = "Failed to reload regulations"
	reloadBusyMsg    = "Regulation reload already in progress"
	auditDisabledMsg = "Compliance audit is disabled"
	reloadTimeout    = 30 * time.Minute
	reloadWriteSlack = 30 * time.Second
)

// ComplianceService is what the rag-service handlers need from the checker.
type ComplianceService interface {
	service.ComplianceChecker
	Recent(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// ReloadResponse is the body of a successful POST /regulations/reload.
type ReloadResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

// ComplianceEchoHandler serves the rag-service routes.
type ComplianceEchoHandler struct {
	logger  *applogger.Logger
	checker ComplianceService
	index   service.RegulationIndex
}

func NewComplianceEchoHandler(l *applogger.Logger, checker ComplianceService, index service.RegulationIndex) *ComplianceEchoHandler {
	return &ComplianceEchoHandler{
		logger:  l.With(applogger.String("handler", "compliance")),
		checker: checker,
		index:   index,
	}
}

func (h *ComplianceEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/compliance/check", h.Check)
	e.POST("/regulations/reload", h.Reload)
	e.GET("/compliance/audit", h.Audit)
}

func (h *ComplianceEchoHandler) Health(c echo.Context) error {
	status := "initializing"
	if h.index.Ready() {
		status = "healthy"
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": status, "service": ragServiceName})
}

func (h *ComplianceEchoHandler) Check(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		if errors.Is(err, errEmptyBody) {
			return xhttp.ErrorResponse(c, http.StatusBadRequest, missingBodyMsg)
		}
		return xhttp.AppErrorResponse(c, h.logger, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return malformedCheck(c, err)
	}
	// null and {} carry no request
	if len(fields) == 0 {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, missingBodyMsg)
	}

	req := &models.ComplianceCheckRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return malformedCheck(c, err)
	}
	if err := defaults.Set(req); err != nil {
		return xhttp.AppErrorResponse(c, h.logger, err)
	}
	if verr := xhttp.ValidateStruct(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	return xhttp.SuccessResponse(c, h.checker.Check(c.Request().Context(), req))
}

func malformedCheck(c echo.Context, err error) error {
	return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
		Code:    "ERR_MALFORMED_BODY",
		Message: "Invalid compliance request: " + err.Error(),
	}})
}

// Reload rebuilds the index. The rebuild outlives a disconnecting client so
// the index is never left half written. The route carries its own write
// deadline because a rebuild can outlast the server write timeout.
func (h *ComplianceEchoHandler) Reload(c echo.Context) error {
	deadline := time.Now().Add(reloadTimeout + reloadWriteSlack)
	if err := http.NewResponseController(c.Response().Writer).SetWriteDeadline(deadline); err != nil {
		h.logger.Debug("reload write deadline not extended", applogger.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), reloadTimeout)
	defer cancel()

	n, err := h.index.Rebuild(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRebuildInProgress) {
			return xhttp.ErrorResponse(c, http.StatusConflict, reloadBusyMsg)
		}
		return xhttp.AppErrorResponse(c, h.logger, xhttp.InternalError(reloadFailedMsg).WithError(err))
	}
	return xhttp.SuccessResponse(c, ReloadResponse{Message: reloadOKMsg, Chunks: n})
}

func (h *ComplianceEchoHandler) Audit(c echo.Context) error {
	req := &models.AuditRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.checker.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrStoreDisabled) {
			return xhttp.AppErrorResponse(c, h.logger, xhttp.ServiceUnavailableError(auditDisabledMsg))
		}
		return xhttp.AppErrorResponse(c, h.logger, err)
	}
	return xhttp.ListResponse(c, rows, len(rows))
}
