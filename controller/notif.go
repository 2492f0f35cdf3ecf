package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/services/notif"
)

// SendNotifs republishes the mint notifications a wallet has not
// acknowledged yet.
func SendNotifs(notifs *notif.Service) httprouter.Handle {
	type response struct {
		Sent int `json:"sent"`
	}

	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		log := zap.L()
		start := time.Now()
		cors(w)

		walletAddr := params.ByName("walletAddr")
		log.Debug("SendNotifs called",
			zap.String("url_path", req.URL.Path),
			zap.String("wallet_addr", walletAddr),
		)

		if notifs == nil {
			writeJSON(w, http.StatusOK, response{})
			return
		}

		count, err := notifs.ResendPending(req.Context(), walletAddr)
		if err != nil {
			log.Error("failed to send notification(s)",
				zap.Error(err),
				zap.Int64("durationMs", time.Since(start).Milliseconds()),
				zap.String("wallet_addr", walletAddr),
			)
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("failed to send some or all notification(s) to wallet address %s please try again", walletAddr))
			return
		}

		log.Info("send notification(s) complete",
			zap.Int64("durationMs", time.Since(start).Milliseconds()),
			zap.String("wallet_addr", walletAddr),
			zap.Int("total_sent", count),
		)
		writeJSON(w, http.StatusOK, response{Sent: count})
	}
}
