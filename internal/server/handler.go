package server

import (
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/multibroker/oms/internal/command"
	"github.com/multibroker/oms/internal/dispatch"
	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"github.com/multibroker/oms/internal/registry"
)

// Handler exposes the dispatcher over HTTP. Routes mirror the operator
// workflow: everything is a GET so commands can be fired from browser
// bookmarks and keyboard shortcuts.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry

	shortcuts       map[string]string
	defaultExchange string
	logger          logger.Logger
}

func NewHandler(d *dispatch.Dispatcher, reg *registry.Registry, shortcuts map[string]string, defaultExchange string, log logger.Logger) *Handler {
	return &Handler{
		dispatcher:      d,
		registry:        reg,
		shortcuts:       shortcuts,
		defaultExchange: defaultExchange,
		logger:          log,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /order/{args...}", h.order)
	mux.HandleFunc("GET /bracket/{args...}", h.bracket)
	mux.HandleFunc("GET /modify/{args...}", h.modify)
	mux.HandleFunc("GET /cancel/{args...}", h.cancel)

	mux.HandleFunc("GET /bs/{symbol}/{stop}", h.bracketStop)
	mux.HandleFunc("GET /bt/{symbol}/{target}", h.bracketTarget)
	mux.HandleFunc("GET /be/{symbol}", h.bracketExit)
	mux.HandleFunc("GET /me/{symbol}", h.misExit)
	mux.HandleFunc("GET /ne/{symbol}", h.nrmlExit)
	mux.HandleFunc("GET /stop/{symbol}/{trigger}", h.stopBySymbol)
	mux.HandleFunc("GET /target/{symbol}/{price}", h.targetBySymbol)

	mux.HandleFunc("GET /positions", h.positions)
	mux.HandleFunc("GET /pending", h.pending)
	mux.HandleFunc("GET /mtm", h.mtm)
	mux.HandleFunc("GET /panic", h.panicExit)
	mux.HandleFunc("GET /cancel_all", h.cancelAll)

	mux.HandleFunc("GET /users", h.users)
	mux.HandleFunc("GET /enable/{client_id}", h.enable)
	mux.HandleFunc("GET /disable/{client_id}", h.disable)

	return mux
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Errorf("%s: can't marshal response", err)
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) {
	cmd := command.BuildPlace(r.PathValue("args"), h.shortcuts, h.defaultExchange)
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) bracket(w http.ResponseWriter, r *http.Request) {
	cmd := command.BuildPlaceBracket(r.PathValue("args"), h.shortcuts, h.defaultExchange)
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	cmd := command.BuildModify(r.PathValue("args"), h.shortcuts)
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	cmd := command.BuildCancel(r.PathValue("args"), h.shortcuts)
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

// bracketStop moves the stop-loss leg of a bracket order.
func (h *Handler) bracketStop(w http.ResponseWriter, r *http.Request) {
	stop, err := strconv.ParseFloat(r.PathValue("stop"), 64)
	if err != nil {
		http.Error(w, "invalid stop price", http.StatusBadRequest)
		return
	}

	n := 0
	if r.URL.Query().Get("first") != "" {
		n = 1
	}
	cmd := model.Command{
		Kind: model.Modify,
		Filters: model.OrderFilters{
			Symbol:    r.PathValue("symbol"),
			Product:   model.ProductBracket,
			OrderType: model.OrderTypeSL,
			Status:    model.StatusTriggerPending,
		},
		Modifications: model.Modifications{Price: stop, TriggerPrice: stop},
		N:             n,
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

// bracketTarget moves the target leg of a bracket order.
func (h *Handler) bracketTarget(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseFloat(r.PathValue("target"), 64)
	if err != nil {
		http.Error(w, "invalid target price", http.StatusBadRequest)
		return
	}

	n := 0
	if r.URL.Query().Get("first") != "" {
		n = 1
	}
	cmd := model.Command{
		Kind: model.Modify,
		Filters: model.OrderFilters{
			Symbol:    r.PathValue("symbol"),
			Product:   model.ProductBracket,
			OrderType: model.OrderTypeLimit,
			Status:    model.StatusOpen,
		},
		Modifications: model.Modifications{Price: target},
		N:             n,
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) bracketExit(w http.ResponseWriter, r *http.Request) {
	cmd := model.Command{
		Kind:   model.ExitBracket,
		Symbol: r.PathValue("symbol"),
		First:  r.URL.Query().Get("first") != "",
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) misExit(w http.ResponseWriter, r *http.Request) {
	h.exitBySymbol(w, r, model.ProductMIS)
}

func (h *Handler) nrmlExit(w http.ResponseWriter, r *http.Request) {
	h.exitBySymbol(w, r, model.ProductNRML)
}

func (h *Handler) exitBySymbol(w http.ResponseWriter, r *http.Request, product string) {
	cmd := model.Command{
		Kind:    model.ExitBySymbol,
		Symbol:  r.PathValue("symbol"),
		Percent: queryFloat(r, "p", command.PercentDefault),
		Product: product,
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) stopBySymbol(w http.ResponseWriter, r *http.Request) {
	trigger, err := strconv.ParseFloat(r.PathValue("trigger"), 64)
	if err != nil {
		http.Error(w, "invalid trigger price", http.StatusBadRequest)
		return
	}

	cmd := model.Command{
		Kind:         model.StopBySymbol,
		Symbol:       r.PathValue("symbol"),
		TriggerPrice: trigger,
		Percent:      queryFloat(r, "p", command.PercentDefault),
		Product:      r.URL.Query().Get("prd"),
	}
	if cmd.Product == "" {
		cmd.Product = model.ProductNRML
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

func (h *Handler) targetBySymbol(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(r.PathValue("price"), 64)
	if err != nil {
		http.Error(w, "invalid limit price", http.StatusBadRequest)
		return
	}

	cmd := model.Command{
		Kind:       model.TargetBySymbol,
		Symbol:     r.PathValue("symbol"),
		LimitPrice: price,
		Percent:    queryFloat(r, "p", command.PercentDefault),
		Product:    r.URL.Query().Get("prd"),
	}
	if cmd.Product == "" {
		cmd.Product = model.ProductNRML
	}
	h.writeJSON(w, h.dispatcher.Dispatch(r.Context(), cmd))
}

// positions doubles as the risk poll: every fetch feeds the per-account
// risk state and enforces any exit verdict. The reporter hits this endpoint
// on its refresh interval, which is what keeps the risk machine ticking.
func (h *Handler) positions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dispatcher.SweepRisk(r.Context()))
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dispatcher.PendingOrders(r.Context()))
}

func (h *Handler) mtm(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dispatcher.MTM(r.Context()))
}

func (h *Handler) panicExit(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dispatcher.ExitAll(r.Context()))
}

func (h *Handler) cancelAll(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dispatcher.CancelAll(r.Context()))
}

func (h *Handler) users(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.registry.ClientIDs())
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.registry.Enable(r.PathValue("client_id")))
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.registry.Disable(r.PathValue("client_id")))
}
