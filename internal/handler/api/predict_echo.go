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
	"RiskApprove/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	mlServiceName      = "ml-service"
	missingStocksMsg   = "Missing 'stocks' field in request"
	invalidStocksMsg   = "Stocks must be a non-empty list"
	missingSymbolMsg   = "Missing 'symbol' field in request"
	invalidJSONMsg     = "Request body must be a JSON object"
	historyDisabledMsg = "Prediction history is disabled"
)

// PredictionService is what the ml-service handlers need from the predictor.
type PredictionService interface {
	service.Predictor
	Recent(ctx context.Context, symbol string, limit int) ([]models.StoredPrediction, error)
}

// PredictResponse is the body of POST /predict.
type PredictResponse struct {
	Predictions []interface{} `json:"predictions"`
	Timestamp   string        `json:"timestamp"`
}

// PredictEchoHandler serves the ml-service routes.
type PredictEchoHandler struct {
	logger    *applogger.Logger
	predictor PredictionService
	now       func() time.Time
}

func NewPredictEchoHandler(l *applogger.Logger, p PredictionService) *PredictEchoHandler {
	return &PredictEchoHandler{
		logger:    l.With(applogger.String("handler", "predict")),
		predictor: p,
		now:       time.Now,
	}
}

func (h *PredictEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST("/predict", h.Predict)
	e.POST("/predict/single", h.PredictSingle)
	e.GET("/predictions/history", h.History)
}

func (h *PredictEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "healthy", "service": mlServiceName})
}

func (h *PredictEchoHandler) Predict(c echo.Context) error {
	body, err := readObject(c)
	if err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, bodyErrorMessage(err, missingStocksMsg))
	}
	raw, ok := body["stocks"]
	if !ok {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, missingStocksMsg)
	}
	req := &models.PredictRequest{}
	if err := json.Unmarshal(raw, &req.Stocks); err != nil || len(req.Stocks) == 0 {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, invalidStocksMsg)
	}
	if verr := xhttp.ValidateStruct(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	outcomes := h.predictor.PredictMany(c.Request().Context(), req.Stocks)
	resp := PredictResponse{
		Predictions: make([]interface{}, len(outcomes)),
		Timestamp:   h.now().UTC().Format(time.RFC3339),
	}
	for i, o := range outcomes {
		resp.Predictions[i] = o.Value()
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *PredictEchoHandler) PredictSingle(c echo.Context) error {
	body, err := readObject(c)
	if err != nil {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, bodyErrorMessage(err, missingSymbolMsg))
	}
	req := &models.PredictSingleRequest{}
	if raw, ok := body["symbol"]; ok {
		_ = json.Unmarshal(raw, &req.Symbol)
	}
	req.Symbol = util.NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, missingSymbolMsg)
	}
	if verr := xhttp.ValidateStruct(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	pred, err := h.predictor.Predict(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryUnavailable) {
			return xhttp.AppErrorResponse(c, h.logger, xhttp.NotFoundErrorf("Failed to process %s", req.Symbol).WithError(err))
		}
		return xhttp.AppErrorResponse(c, h.logger, err)
	}
	return xhttp.SuccessResponse(c, pred)
}

func (h *PredictEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.predictor.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrStoreDisabled) {
			return xhttp.AppErrorResponse(c, h.logger, xhttp.ServiceUnavailableError(historyDisabledMsg))
		}
		return xhttp.AppErrorResponse(c, h.logger, err)
	}
	return xhttp.ListResponse(c, rows, len(rows))
}

// bodyErrorMessage maps a body read failure onto the client-facing message.
// An absent body reads like an absent field.
func bodyErrorMessage(err error, missing string) string {
	if errors.Is(err, errEmptyBody) {
		return missing
	}
	return invalidJSONMsg
}
