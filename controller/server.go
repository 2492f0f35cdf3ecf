package controller

import (
	"net/http"
	"strconv"
	"time"

	httpsrv "github.com/stableminer/stableminer/http"
)

func NewServer(handler http.Handler, port int) *httpsrv.Server {
	// mints wait on several sequential node round trips
	return httpsrv.NewServer(":"+strconv.Itoa(port),
		handler,
		httpsrv.ReadTimeout(1*time.Minute),
		httpsrv.WriteTimeout(2*time.Minute),
		httpsrv.IdleTimeout(2*time.Minute))
}
