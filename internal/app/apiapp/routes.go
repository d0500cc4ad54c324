package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/config"
	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
	cartsvc "github.com/creatorhub/backend/internal/services/cart"
	checkoutsvc "github.com/creatorhub/backend/internal/services/checkout"
	downloadsvc "github.com/creatorhub/backend/internal/services/downloads"
	ratesvc "github.com/creatorhub/backend/internal/services/rate"
	reconcilesvc "github.com/creatorhub/backend/internal/services/reconcile"
	"github.com/creatorhub/backend/internal/transport/http/handlers"
	"github.com/creatorhub/backend/internal/validate"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	CartService      *cartsvc.Service
	CheckoutService  *checkoutsvc.Service
	ReconcileService *reconcilesvc.Service
	DownloadService  *downloadsvc.Service
	PurchaseRepo     *pgrepo.PurchaseRepo
	RateLimiter      *ratesvc.Limiter
	Validator        *validate.Validator
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Validator)
	cartHandler := handlers.NewCartHandler(deps.CartService, deps.Validator)
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService, deps.CartService, deps.RateLimiter, deps.Validator)
	paymentsHandler := handlers.NewPaymentsHandler(deps.ReconcileService, deps.RateLimiter, deps.Validator)
	downloadHandler := handlers.NewDownloadHandler(deps.DownloadService, deps.RateLimiter, deps.Validator)
	purchasesHandler := handlers.NewPurchasesHandler(deps.PurchaseRepo)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.Token)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/", cartHandler.Get)
		r.Delete("/", cartHandler.Clear)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items/{itemID}", cartHandler.SetQuantity)
		r.Delete("/items/{itemID}", cartHandler.RemoveItem)
	})

	r.With(authMW).Post("/checkout", checkoutHandler.Start)
	r.With(authMW).Post("/payments/verify", paymentsHandler.Verify)
	r.With(authMW).Post("/downloads", downloadHandler.Redeem)
	r.With(authMW).Get("/purchases", purchasesHandler.List)
}
