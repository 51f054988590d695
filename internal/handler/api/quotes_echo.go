package api

import (
	"errors"
	"net/http"

	models "github.com/Altav1sta/stocks-checker/internal/domain/models"
	domrepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/internal/usecase"
	xhttp "github.com/Altav1sta/stocks-checker/pkg/http"
	xlogger "github.com/Altav1sta/stocks-checker/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QuotesEchoHandler exposes the aggregated quote table and the live
// subscription controls over HTTP.
type QuotesEchoHandler struct {
	logger    *xlogger.Logger
	table     *usecase.QuotesTable
	store     *usecase.QuoteStore
	scheduler *usecase.SecondarySubscriptionScheduler
}

func NewQuotesEchoHandler(
	logger *xlogger.Logger,
	table *usecase.QuotesTable,
	store *usecase.QuoteStore,
	scheduler *usecase.SecondarySubscriptionScheduler,
) *QuotesEchoHandler {
	return &QuotesEchoHandler{logger: logger, table: table, store: store, scheduler: scheduler}
}

func (h *QuotesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/quotes", h.Quotes)
	g.GET("/quotes/:ticker", h.Quote)
	g.GET("/subscriptions", h.Subscriptions)
	g.POST("/subscriptions/:ticker", h.Subscribe)
	g.DELETE("/subscriptions/:ticker", h.Unsubscribe)
	g.GET("/health", h.Health)
}

func (h *QuotesEchoHandler) Quotes(c echo.Context) error {
	req := &models.QuotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, total := h.table.Rows(req.Sort, req.PriceLimit, req.Page, req.PageSize)
	return xhttp.ListResponse(c, rows, int64(total))
}

func (h *QuotesEchoHandler) Quote(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q, ok := h.store.Get(req.Ticker)
	if !ok {
		return xhttp.NotFoundResponse(c, "ticker not tracked")
	}
	return xhttp.SuccessResponse(c, q)
}

func (h *QuotesEchoHandler) Subscriptions(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scheduler.Subscribed())
}

func (h *QuotesEchoHandler) Subscribe(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.scheduler.Subscribe(c.Request().Context(), req.Ticker)
	switch {
	case err == nil:
		return xhttp.CreatedResponse(c, req.Ticker)
	case errors.Is(err, domrepo.ErrUnknownTicker):
		return xhttp.NotFoundResponse(c, "ticker not tracked")
	case errors.Is(err, domrepo.ErrCapacityExceeded):
		return xhttp.DataResponse(c, http.StatusConflict, "subscription capacity exceeded")
	default:
		h.logger.Error("subscribe failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}

func (h *QuotesEchoHandler) Unsubscribe(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.scheduler.Unsubscribe(c.Request().Context(), req.Ticker)
	switch {
	case err == nil:
		return xhttp.NoContentResponse(c)
	case errors.Is(err, domrepo.ErrNotSubscribed):
		return xhttp.NotFoundResponse(c, "ticker not subscribed")
	default:
		h.logger.Error("unsubscribe failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}

func (h *QuotesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"tickers": h.store.Len(),
	})
}
