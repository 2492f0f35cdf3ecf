package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/services/wallet"
	"github.com/stableminer/stableminer/state"
)

type dexyRequest struct {
	SessionID string `json:"sessionId"`
	ErgAmount string `json:"ergAmount"`
	Mode      string `json:"mode"`
}

// mintStatusCode maps quote and mint failures onto HTTP statuses. Everything
// the caller can fix by changing the request or retrying later is a 400.
func mintStatusCode(err error) int {
	switch {
	case errors.Is(err, state.ErrMintInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func DexyStatus(wallets *wallet.Service, svc *dexy.Service) httprouter.Handle {
	type unavailable struct {
		Connected bool   `json:"connected"`
		DexyReady bool   `json:"dexyReady"`
		Address   string `json:"address,omitempty"`
		Network   string `json:"network,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cors(w)

		node, account, err := wallets.Account(r.URL.Query().Get("session"))
		if err != nil {
			writeJSON(w, http.StatusOK, unavailable{})
			return
		}

		resp, err := svc.Status(r.Context(), node, account)
		if err != nil {
			zap.L().Info("dexy state unavailable", zap.Error(err), zap.String("session_id", account.SessionID))
			writeJSON(w, http.StatusOK, unavailable{
				Connected: true,
				Address:   account.Address,
				Network:   account.Network,
				Error:     err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func DexyQuote(wallets *wallet.Service, svc *dexy.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cors(w)

		var req dexyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		node, account, err := wallets.Account(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Wallet session not found.")
			return
		}

		resp, err := svc.Quote(r.Context(), node, account, req.ErgAmount, req.Mode)
		if err != nil {
			writeError(w, mintStatusCode(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func DexyMint(wallets *wallet.Service, svc *dexy.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		start := time.Now()
		cors(w)

		var req dexyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		node, account, err := wallets.Account(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Wallet session not found.")
			return
		}

		resp, err := svc.Mint(r.Context(), node, account, req.ErgAmount, req.Mode)
		if err != nil {
			zap.L().Info("mint failed",
				zap.Error(err),
				zap.String("session_id", account.SessionID),
				zap.String("wallet_addr", account.Address),
				zap.Int64("durationMs", time.Since(start).Milliseconds()),
			)
			writeError(w, mintStatusCode(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
