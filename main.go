package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/stableminer/stableminer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		zap.L().Error("failed to execute stableminer", zap.Error(err))
		os.Exit(1)
	}
}
