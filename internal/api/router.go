// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commercelens/lookalike/internal/config"
)

// Router assembles the middleware stack and route tree.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router for the given handler.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(&cfg.Security),
	}
}

// Setup returns the configured http.Handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())
	r.Use(RequestLogging())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())

		r.Get("/health", rt.handler.Health)
		r.Get("/lookalikes/{customerID}", rt.handler.GetLookalikes)
		r.Get("/customers", rt.handler.ListCustomers)
		r.Post("/pipeline/run", rt.handler.RunPipeline)
		r.Get("/pipeline/status", rt.handler.PipelineStatus)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
