package api

import (
	"net/http"
)

func NewRouter(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", handler.Health)
	mux.HandleFunc("/v1/run", handler.Run)
	mux.HandleFunc("/v1/batches", handler.Batches)
	mux.HandleFunc("/v1/batches/", handler.Batches)

	return mux
}
