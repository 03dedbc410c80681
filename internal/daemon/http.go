package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/internal/logging"
	"github.com/shiwa/hmc7044/pkg/hmc7044"
)

// envelope — формат ответов API: {"type": ..., "data": ...}.
type envelope struct {
	Type  string      `json:"type,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ChannelInfo — канал с текущей частотой.
type ChannelInfo struct {
	Num     uint32 `json:"num"`
	Name    string `json:"name,omitempty"`
	Disable bool   `json:"disable"`
	Divider uint32 `json:"divider"`
	Rate    uint64 `json:"rate_hz"`
}

type rateRequest struct {
	// Rate — число Гц или строка с единицами.
	Rate json.RawMessage `json:"rate"`
}

type httpAPI struct {
	dev    Controller
	logger *logging.Logger
}

// NewHTTPHandler возвращает обработчик JSON API.
func NewHTTPHandler(dev Controller) http.Handler {
	h := &httpAPI{dev: dev, logger: logging.NewLogger("http")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/plan", h.handlePlan)
	mux.HandleFunc("GET /api/channels", h.handleChannels)
	mux.HandleFunc("GET /api/channels/{num}", h.handleChannel)
	mux.HandleFunc("PUT /api/channels/{num}", h.handleSetRate)
	mux.HandleFunc("GET /api/round", h.handleRound)
	mux.HandleFunc("POST /api/restart", h.handleRestart)
	mux.HandleFunc("POST /api/pulse", h.handlePulse)
	return mux
}

// outputFormattedJSON пишет ответ в формате envelope.
func outputFormattedJSON(w http.ResponseWriter, code int, typ string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Type: typ, Data: data})
}

func (h *httpAPI) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, hmc7044.ErrChannelNotFound):
		code = http.StatusNotFound
	case errors.Is(err, hmc7044.ErrInvalidRate), errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Error: err.Error()})
}

var errBadRequest = errors.New("bad request")

func (h *httpAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s, err := h.dev.Status()
	if err != nil {
		h.fail(w, err)
		return
	}
	outputFormattedJSON(w, http.StatusOK, "status", struct {
		Variant  string `json:"variant"`
		PLL2Rate uint64 `json:"pll2_hz"`
		PLL1FSM  string `json:"pll1_fsm"`
		hmc7044.Status
	}{h.dev.Variant().String(), h.dev.PLL2Rate(), s.PLL1FSMString(), s})
}

func (h *httpAPI) handlePlan(w http.ResponseWriter, _ *http.Request) {
	outputFormattedJSON(w, http.StatusOK, "plan", h.dev.Plan())
}

func (h *httpAPI) channelInfo(ch hmc7044.ChannelSpec) (ChannelInfo, error) {
	rate, err := h.dev.RecalcRate(ch.Num)
	if err != nil {
		return ChannelInfo{}, err
	}
	return ChannelInfo{Num: ch.Num, Name: ch.Name, Disable: ch.Disable, Divider: ch.Divider, Rate: rate}, nil
}

func (h *httpAPI) handleChannels(w http.ResponseWriter, _ *http.Request) {
	chs := h.dev.Channels()
	out := make([]ChannelInfo, 0, len(chs))
	for _, ch := range chs {
		info, err := h.channelInfo(ch)
		if err != nil {
			h.fail(w, err)
			return
		}
		out = append(out, info)
	}
	outputFormattedJSON(w, http.StatusOK, "channels", out)
}

func (h *httpAPI) lookup(r *http.Request) (hmc7044.ChannelSpec, error) {
	n, err := strconv.ParseUint(r.PathValue("num"), 10, 32)
	if err != nil {
		return hmc7044.ChannelSpec{}, errBadRequest
	}
	for _, ch := range h.dev.Channels() {
		if ch.Num == uint32(n) {
			return ch, nil
		}
	}
	return hmc7044.ChannelSpec{}, hmc7044.ErrChannelNotFound
}

func (h *httpAPI) handleChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.lookup(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	info, err := h.channelInfo(ch)
	if err != nil {
		h.fail(w, err)
		return
	}
	outputFormattedJSON(w, http.StatusOK, "channel", info)
}

func (h *httpAPI) handleSetRate(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("num"), 10, 32)
	if err != nil {
		h.fail(w, errBadRequest)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errBadRequest)
		return
	}
	rate, err := parseJSONRate(req.Rate)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.dev.SetRate(uint32(n), rate); err != nil {
		h.fail(w, err)
		return
	}
	ch, err := h.lookup(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	info, err := h.channelInfo(ch)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("channel %d set to %d Hz (requested %d)", info.Num, info.Rate, rate)
	outputFormattedJSON(w, http.StatusOK, "channel", info)
}

// parseJSONRate принимает 122880000 или "122.88MHz".
func parseJSONRate(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, errBadRequest
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errBadRequest
	}
	f, err := config.ParseFrequency(s)
	if err != nil {
		return 0, errBadRequest
	}
	return f.Hz(), nil
}

func (h *httpAPI) handleRound(w http.ResponseWriter, r *http.Request) {
	f, err := config.ParseFrequency(r.URL.Query().Get("rate"))
	if err != nil {
		h.fail(w, errBadRequest)
		return
	}
	rounded, err := h.dev.RoundRate(f.Hz())
	if err != nil {
		h.fail(w, err)
		return
	}
	outputFormattedJSON(w, http.StatusOK, "round", map[string]uint64{
		"requested_hz": f.Hz(),
		"rate_hz":      rounded,
	})
}

func (h *httpAPI) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Restart(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	outputFormattedJSON(w, http.StatusOK, "restart", "ok")
}

func (h *httpAPI) handlePulse(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.RequestPulse(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	outputFormattedJSON(w, http.StatusOK, "pulse", "ok")
}
