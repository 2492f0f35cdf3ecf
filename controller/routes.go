package controller

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/services/notif"
	"github.com/stableminer/stableminer/services/wallet"
)

type Router struct {
	http.Handler
}

// Services are the collaborators the HTTP API is served from. Notifs may be
// nil when no NATS server is configured.
type Services struct {
	Wallets       *wallet.Service
	Dexy          *dexy.Service
	Notifs        *notif.Service
	RatePerSecond float64
}

func opts(methods string) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusOK)
	}
}

// limited rejects requests over the per-client rate before h runs.
func limited(lmt *limiter.Limiter, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if httpErr := tollbooth.LimitByRequest(lmt, w, r); httpErr != nil {
			cors(w)
			writeError(w, httpErr.StatusCode, httpErr.Message)
			return
		}
		h(w, r, p)
	}
}

func NewRouter(s Services) *Router {
	h := httprouter.New()
	h.RedirectTrailingSlash = false
	h.RedirectFixedPath = false

	r := &Router{
		Handler: h,
	}

	rate := s.RatePerSecond
	if rate <= 0 {
		rate = 2
	}
	lmt := tollbooth.NewLimiter(rate, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetMessage("too many requests, slow down")

	h.POST("/api/wallet/connect", WalletConnect(s.Wallets))
	h.OPTIONS("/api/wallet/connect", opts("POST, OPTIONS"))
	h.GET("/api/wallet/status", WalletStatus(s.Wallets))
	h.POST("/api/wallet/disconnect", WalletDisconnect(s.Wallets))
	h.OPTIONS("/api/wallet/disconnect", opts("POST, OPTIONS"))

	h.GET("/api/dexy/status", DexyStatus(s.Wallets, s.Dexy))
	h.POST("/api/dexy/quote", limited(lmt, DexyQuote(s.Wallets, s.Dexy)))
	h.OPTIONS("/api/dexy/quote", opts("POST, OPTIONS"))
	h.POST("/api/dexy/mint", limited(lmt, DexyMint(s.Wallets, s.Dexy)))
	h.OPTIONS("/api/dexy/mint", opts("POST, OPTIONS"))

	h.GET("/api/node/scan", NodeScan(s.Wallets))

	h.GET("/api/v1/notifs/:walletAddr", SendNotifs(s.Notifs))
	h.GET("/api/v1/verbosity", Verbosity())
	h.PUT("/api/v1/verbosity", SetVerbosity())
	h.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	h.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	return r
}
