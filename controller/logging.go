package controller

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/logger"
)

type verbosity struct {
	Level string `json:"verbosity"`
}

func Verbosity() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		level := logger.GetLevel()
		zap.L().Debug("current logging level", zap.String("level", level))

		writeJSON(w, http.StatusOK, verbosity{Level: level})
	}
}

// SetVerbosity allows the user to remotely modify the verbosity of all log messages
// Expects a "v" parameter in the query string of a PUT request:
//
//	curl -X PUT http://host:port/api/v1/verbosity?v=debug
//
// options are:
//
//	debug
//	info
//	warn
//	error
func SetVerbosity() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		level := r.URL.Query().Get("v")
		if !logger.ValidLevel(level) {
			writeError(w, http.StatusBadRequest, "missing or incorrect query parameter 'v='")
			return
		}
		logger.SetLevel(level)

		zap.L().Info("updating logging level", zap.String("level", level))

		w.WriteHeader(http.StatusNoContent)
	}
}
