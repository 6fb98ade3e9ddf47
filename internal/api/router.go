// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stemmahq/stemma/internal/auth"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/middleware"
)

// Router wires handlers and middleware into the HTTP mux.
type Router struct {
	handler       *Handler
	authMW        *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter builds a Router from its components.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		authMW:        authMW,
		chiMiddleware: chiMW,
	}
}

// linkedMount pairs a URL segment with its entity kind.
type linkedMount struct {
	path string
	kind database.EntityKind
}

var linkedMounts = []linkedMount{
	{"events", database.KindEvent},
	{"life-events", database.KindLifeEvent},
	{"turning-points", database.KindTurningPoint},
	{"classifications", database.KindClassification},
	{"patterns", database.KindPattern},
}

// SetupChi assembles the route tree. Ops endpoints sit at the root; the
// client API lives under /api/v1 with per-group rate limits and JWT
// authentication on everything that touches user data.
func (rt *Router) SetupChi() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMiddleware.CORS())
	r.Use(APISecurityHeaders())
	r.Use(chiPathValue)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	if rt.handler.perf != nil {
		r.Use(rt.handler.perf.Middleware)
	}
	r.Use(chiMiddleware(middleware.Compression))

	r.With(rt.chiMiddleware.RateLimitHealth()).Get("/health", rt.handler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rt.chiMiddleware.RateLimitAuth())
				r.Post("/register", rt.handler.HandleRegister)
				r.Post("/refresh", rt.handler.HandleRefresh)
				r.Get("/verify", rt.handler.HandleVerify)
			})

			// Login has its own limiter: failed credential attempts burn
			// budget even when the group limiter would still admit them.
			r.With(chiMiddleware(rt.authMW.RateLimitLogin)).Post("/login", rt.handler.HandleLogin)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware(rt.authMW.Authenticate))
				r.Use(rt.chiMiddleware.RateLimitAPI())
				r.Get("/me", rt.handler.HandleMe)
				r.Post("/logout", rt.handler.HandleLogout)
			})
		})

		r.With(rt.chiMiddleware.RateLimitAuth()).Post("/waitlist", rt.handler.HandleWaitlistJoin)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(rt.authMW.Authenticate))

			r.With(rt.chiMiddleware.RateLimitWebSocket()).Get("/ws", rt.handler.HandleWebSocket)
			r.With(rt.chiMiddleware.RateLimitAPI()).Post("/feedback", rt.handler.HandleFeedbackSubmit)

			r.Route("/trees", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(rt.chiMiddleware.RateLimitAPI())
					r.Post("/", rt.handler.HandleTreeCreate)
					r.Get("/", rt.handler.HandleTreeList)
				})

				r.Route("/{treeID}", func(r chi.Router) {
					r.With(rt.chiMiddleware.RateLimitSync()).Post("/sync", rt.handler.HandleSync)

					r.Group(func(r chi.Router) {
						r.Use(rt.chiMiddleware.RateLimitAPI())

						r.Get("/", rt.handler.HandleTreeGet)
						r.Put("/", rt.handler.HandleTreeUpdate)
						r.Delete("/", rt.handler.HandleTreeDelete)
						r.Get("/stats", rt.handler.HandleTreeStats)

						r.Route("/persons", func(r chi.Router) {
							r.Post("/", rt.handler.HandlePersonCreate)
							r.Get("/", rt.handler.HandlePersonList)
							r.Get("/{personID}", rt.handler.HandlePersonGet)
							r.Put("/{personID}", rt.handler.HandlePersonUpdate)
							r.Delete("/{personID}", rt.handler.HandlePersonDelete)
						})

						r.Route("/relationships", func(r chi.Router) {
							r.Post("/", rt.handler.HandleRelationshipCreate)
							r.Get("/", rt.handler.HandleRelationshipList)
							r.Get("/{relationshipID}", rt.handler.HandleRelationshipGet)
							r.Put("/{relationshipID}", rt.handler.HandleRelationshipUpdate)
							r.Delete("/{relationshipID}", rt.handler.HandleRelationshipDelete)
						})

						for _, mount := range linkedMounts {
							rt.mountLinked(r, mount.path, mount.kind)
						}
					})
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(rt.authMW.RequireAdmin))
			r.Use(rt.chiMiddleware.RateLimitAPI())

			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", rt.handler.HandleAdminStats)
				r.Get("/performance", rt.handler.HandleAdminPerformance)
				r.Get("/waitlist", rt.handler.HandleAdminWaitlist)
				r.Delete("/waitlist/{email}", rt.handler.HandleAdminWaitlistRemove)
			})
		})
	})

	return r
}

// mountLinked registers the CRUD set for one linked-entity kind.
func (rt *Router) mountLinked(r chi.Router, path string, kind database.EntityKind) {
	r.Route("/"+path, func(r chi.Router) {
		r.Post("/", rt.handler.LinkedCreateHandler(kind))
		r.Get("/", rt.handler.LinkedListHandler(kind))
		r.Get("/{entityID}", rt.handler.LinkedGetHandler(kind))
		r.Put("/{entityID}", rt.handler.LinkedUpdateHandler(kind))
		r.Delete("/{entityID}", rt.handler.LinkedDeleteHandler(kind))
	})
}
