package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/service"
)

// SimulationHandler handles HTTP requests that drive the simulated clock.
type SimulationHandler struct {
	simulationSvc *service.SimulationService
}

// NewSimulationHandler creates a new SimulationHandler.
func NewSimulationHandler(simulationSvc *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{simulationSvc: simulationSvc}
}

type clockResponse struct {
	Now   string `json:"now"`
	Step  string `json:"step"`
	Ticks int64  `json:"ticks"`
}

type tickResponse struct {
	Clock      clockResponse       `json:"clock"`
	Steps      int                 `json:"steps"`
	Executed   []orderResponse     `json:"executed"`
	Operations []operationResponse `json:"operations"`
}

func buildClockResponse(c engine.Clock) clockResponse {
	return clockResponse{
		Now:   formatTime(c.Now),
		Step:  c.Step.String(),
		Ticks: c.Ticks,
	}
}

// Tick handles POST /simulation/tick?steps=N. steps defaults to 1.
func (h *SimulationHandler) Tick(w http.ResponseWriter, r *http.Request) {
	steps := 1
	if raw := r.URL.Query().Get("steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "steps must be an integer")
			return
		}
		steps = n
	}

	res, err := h.simulationSvc.AdvanceTick(r.Context(), steps)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tickResponse{
		Clock:      buildClockResponse(res.Clock),
		Steps:      res.Steps,
		Executed:   buildOrderResponses(res.Executed),
		Operations: buildOperationResponses(res.Operations),
	})
}

// Clock handles GET /simulation/clock.
func (h *SimulationHandler) Clock(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, buildClockResponse(h.simulationSvc.Clock()))
}
