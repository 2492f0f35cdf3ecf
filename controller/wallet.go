package controller

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/services/wallet"
)

func WalletConnect(wallets *wallet.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		start := time.Now()
		cors(w)

		var req wallet.ConnectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := wallets.Connect(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		zap.L().Debug("wallet connect",
			zap.String("status", string(result.Status)),
			zap.String("endpoint", result.Endpoint),
			zap.Int64("durationMs", time.Since(start).Milliseconds()),
		)
		writeJSON(w, http.StatusOK, result)
	}
}

func WalletStatus(wallets *wallet.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cors(w)
		writeJSON(w, http.StatusOK, wallets.Status(r.Context(), r.URL.Query().Get("session")))
	}
}

func WalletDisconnect(wallets *wallet.Service) httprouter.Handle {
	type request struct {
		SessionID string `json:"sessionId"`
	}
	type response struct {
		Disconnected bool `json:"disconnected"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cors(w)

		var req request
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		wallets.Disconnect(req.SessionID)
		writeJSON(w, http.StatusOK, response{Disconnected: true})
	}
}

func NodeScan(wallets *wallet.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		cors(w)
		writeJSON(w, http.StatusOK, wallets.Scan(r.Context()))
	}
}
