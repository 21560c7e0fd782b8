package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// MarketHandler handles HTTP requests for instrument reference data and
// simulated market data.
type MarketHandler struct {
	instrumentSvc *service.InstrumentService
	marketSvc     *service.MarketDataService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(instrumentSvc *service.InstrumentService, marketSvc *service.MarketDataService) *MarketHandler {
	return &MarketHandler{instrumentSvc: instrumentSvc, marketSvc: marketSvc}
}

type lastPriceResponse struct {
	InstrumentID string       `json:"figi"`
	Price        domain.Money `json:"price"`
	Time         *string      `json:"time"`
}

type candleResponse struct {
	InstrumentID string       `json:"figi"`
	Time         string       `json:"time"`
	Open         domain.Money `json:"open"`
	High         domain.Money `json:"high"`
	Low          domain.Money `json:"low"`
	Close        domain.Money `json:"close"`
}

// ListInstruments handles GET /instruments?type=.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	list, err := h.instrumentSvc.ListInstruments(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"instruments": list})
}

// GetInstrument handles GET /instruments/{id_type}/{id}?class_code=.
func (h *MarketHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	inst, err := h.instrumentSvc.GetInstrumentBy(r.Context(),
		chi.URLParam(r, "id_type"), chi.URLParam(r, "id"), r.URL.Query().Get("class_code"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inst)
}

// GetLastPrices handles GET /market/last-prices?instrument_id=...
func (h *MarketHandler) GetLastPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.marketSvc.GetLastPrices(r.Context(), r.URL.Query()["instrument_id"])
	if err != nil {
		mapError(w, err)
		return
	}
	result := make([]lastPriceResponse, len(prices))
	for i, p := range prices {
		result[i] = lastPriceResponse{
			InstrumentID: p.InstrumentID,
			Price:        p.Price,
			Time:         formatTimePtr(p.Time),
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"last_prices": result})
}

// GetLastCandle handles GET /market/{instrument_id}/candle.
func (h *MarketHandler) GetLastCandle(w http.ResponseWriter, r *http.Request) {
	c, err := h.marketSvc.GetLastCandle(chi.URLParam(r, "instrument_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, candleResponse{
		InstrumentID: c.InstrumentID,
		Time:         formatTime(c.Time),
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
	})
}
