package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/ledger"
)

// CallHandler exposes the ledger as named contract methods: the body of
// POST /call/{method} holds the method's JSON arguments and the response
// body is its JSON return value.
type CallHandler struct {
	ledger  *ledger.Ledger
	methods map[string]callMethod
}

type callMethod func(r *http.Request, call ledger.Call, args []byte) (any, *domain.Receipt, error)

// NewCallHandler creates a new CallHandler.
func NewCallHandler(l *ledger.Ledger) *CallHandler {
	h := &CallHandler{ledger: l}
	h.methods = map[string]callMethod{
		"new":             h.newLedger,
		"add_command":     h.addCommand,
		"get_command":     h.getCommand,
		"certify_command": h.certifyCommand,
		"cancel_command":  h.cancelCommand,
	}
	return h
}

// Call handles POST /call/{method}.
func (h *CallHandler) Call(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	fn, ok := h.methods[method]
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown_method", "Unknown method: "+method)
		return
	}

	call, err := callFromRequest(r)
	if err != nil {
		mapLedgerError(w, err, nil)
		return
	}
	args, err := readCallBody(w, r)
	if err != nil {
		mapLedgerError(w, err, h.ledger.Reject(call, method, err))
		return
	}

	result, refund, err := fn(r, call, args)
	if err != nil {
		mapLedgerError(w, err, refund)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// decodeArgs strictly decodes method arguments into v.
func decodeArgs(args []byte, v any) error {
	if err := strictUnmarshal(args, v); err != nil {
		return &domain.ValidationError{Message: "malformed arguments: " + err.Error()}
	}
	return nil
}

func (h *CallHandler) newLedger(r *http.Request, _ ledger.Call, args []byte) (any, *domain.Receipt, error) {
	var in struct {
		OwnerID string `json:"owner_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	return nil, nil, h.ledger.Init(r.Context(), domain.AccountID(in.OwnerID))
}

func (h *CallHandler) addCommand(r *http.Request, call ledger.Call, args []byte) (any, *domain.Receipt, error) {
	res, err := h.ledger.AddCommandJSON(r.Context(), call, args)
	if err != nil {
		return nil, res.Refund, err
	}
	return res.CommandID, nil, nil
}

type commandIDArgs struct {
	CommandID string `json:"command_id"`
}

func (h *CallHandler) getCommand(r *http.Request, _ ledger.Call, args []byte) (any, *domain.Receipt, error) {
	var in commandIDArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	c, err := h.ledger.GetCommand(r.Context(), in.CommandID)
	if err != nil {
		return nil, nil, err
	}
	return newCommandResponse(c), nil, nil
}

func (h *CallHandler) certifyCommand(r *http.Request, call ledger.Call, args []byte) (any, *domain.Receipt, error) {
	var in struct {
		CommandID string `json:"command_id"`
		Kind      string `json:"kind"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, h.ledger.Reject(call, "certify_command", err), err
	}
	c, refunds, err := h.ledger.CertifyCommand(r.Context(), call, in.CommandID, domain.CertificationKind(in.Kind))
	if err != nil {
		return nil, firstReceipt(refunds), err
	}
	return newCommandResponse(c), nil, nil
}

func (h *CallHandler) cancelCommand(r *http.Request, call ledger.Call, args []byte) (any, *domain.Receipt, error) {
	var in commandIDArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, h.ledger.Reject(call, "cancel_command", err), err
	}
	c, refunds, err := h.ledger.CancelCommand(r.Context(), call, in.CommandID)
	if err != nil {
		return nil, firstReceipt(refunds), err
	}
	return newCommandResponse(c), nil, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
