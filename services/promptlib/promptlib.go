package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/relabs-tech/promptlib/core/app"
	"github.com/relabs-tech/promptlib/core/logger"
)

func main() {
	service, err := app.Decode()
	if err != nil {
		panic(err)
	}
	a, err := app.New(context.Background(), service)
	if err != nil {
		panic(err)
	}
	defer a.Close()

	addr := ":" + strconv.Itoa(service.Port)
	logger.Default().Infoln("listen on port", addr)
	if err := http.ListenAndServe(addr, a.Handler()); err != nil {
		logger.Default().WithError(err).Fatalln("server stopped")
	}
}
