package crisis

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindwell/crisis/internal/domain/alert"
	"github.com/mindwell/crisis/internal/domain/assessment"
	"github.com/mindwell/crisis/internal/platform/auth"
	"github.com/mindwell/crisis/pkg/pagination"
)

type Handler struct {
	engine *Engine
	alerts *alert.Service
}

func NewHandler(engine *Engine, alerts *alert.Service) *Handler {
	return &Handler{engine: engine, alerts: alerts}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Assessments also arrive from automated signal pipelines.
	assess := api.Group("", auth.RequireRole("counselor", "clinician", "service"))
	assess.POST("/crisis/assess", h.Assess)

	g := api.Group("", auth.RequireRole("counselor", "clinician"))
	g.GET("/crisis/alerts", h.ListActiveAlerts)
	g.GET("/crisis/alerts/:id", h.GetAlert)
	g.GET("/crisis/alerts/:id/transitions", h.ListTransitions)
	g.POST("/crisis/alerts/:id/execute", h.ExecuteProtocol)
	g.POST("/crisis/alerts/:id/resolve", h.ResolveAlert)
	g.POST("/crisis/interventions/:id/response", h.HandleResponse)
	g.POST("/crisis/interventions/:id/delivery", h.ConfirmDelivery)
	g.GET("/crisis/users/:userId/alerts", h.ListUserAlerts)
	g.GET("/crisis/users/:userId/dashboard", h.Dashboard)
	g.GET("/crisis/statistics", h.Statistics)
}

func (h *Handler) Assess(c echo.Context) error {
	var input assessment.AssessmentInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	outcome, err := h.engine.AssessRisk(c.Request().Context(), input)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status := http.StatusOK
	if outcome.Alert != nil && !outcome.Escalated {
		status = http.StatusCreated
	}
	return c.JSON(status, outcome)
}

func (h *Handler) GetAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.alerts.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListActiveAlerts(c echo.Context) error {
	items, err := h.alerts.ListActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListUserAlerts(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	params := pagination.FromContext(c)
	items, total, err := h.alerts.ListByUser(c.Request().Context(), userID, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) ListTransitions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	trs, err := h.alerts.Transitions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, trs)
}

func (h *Handler) ExecuteProtocol(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.engine.ExecuteProtocol(c.Request().Context(), id)
	if err != nil {
		if err == alert.ErrAlertResolved {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resolvedBy := auth.UserIDFromContext(c)
	a, err := h.engine.ResolveAlert(c.Request().Context(), id, resolvedBy, body.Note)
	if err != nil {
		if err == alert.ErrAlertResolved {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) HandleResponse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	plan, err := h.engine.HandleResponse(c.Request().Context(), id, body.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) ConfirmDelivery(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	iv, err := h.engine.ConfirmDelivery(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, iv)
}

func (h *Handler) Dashboard(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	d, err := h.engine.GetDashboard(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.engine.GetPlatformStatistics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
