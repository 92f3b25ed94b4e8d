package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
)

// Services is everything the HTTP surface calls into
type Services struct {
	Integrity *integrity.Service
	Ledger    *service.LedgerService
	Approval  *service.ApprovalService
	Lots      *service.LotService
	Assets    *service.AssetService
	Locations *service.LocationService
	Dispatch  *service.DispatchService
	Audit     *service.AuditLogService
	Sensitive *service.SensitiveService
	Labels    *service.LabelService
	Stocktake *service.StocktakeService

	// Health names the dependencies /health probes
	Health map[string]HealthCheck
}

// HealthCheck reports one dependency; status "up" means healthy
type HealthCheck func(ctx context.Context) map[string]string

// NewRouter mounts every endpoint under /api/v1. Everything except /health
// requires a bearer token; each route then checks one permission.
func NewRouter(svc Services, tokens *httputil.Tokens, corsOrigins []string, log *logger.Logger) http.Handler {
	ledger := NewLedgerHandler(svc.Ledger, log)
	approvals := NewApprovalHandler(svc.Approval, log)
	lots := NewLotHandler(svc.Lots, log)
	assets := NewAssetHandler(svc.Assets, log)
	locations := NewLocationHandler(svc.Locations, log)
	scan := NewScanHandler(svc.Integrity, svc.Lots, svc.Assets, svc.Locations, log)
	dispatch := NewDispatchHandler(svc.Dispatch, log)
	audit := NewAuditHandler(svc.Audit, log)
	sensitive := NewSensitiveHandler(svc.Sensitive, log)
	labels := NewLabelHandler(svc.Labels, log)
	stocktake := NewStocktakeHandler(svc.Stocktake, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health(svc.Health))

	read := httputil.RequirePermission(permissions.InventoryRead)
	write := httputil.RequirePermission(permissions.InventoryWrite)
	assetsWrite := httputil.RequirePermission(permissions.AssetsWrite)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Authenticate(tokens, log))

		r.Route("/resources", func(r chi.Router) {
			r.With(read).Get("/", ledger.ListResources)
			r.With(write).Post("/", ledger.CreateResource)
			r.With(read).Get("/{id}", ledger.GetResource)
			r.With(read).Get("/{id}/transactions", ledger.ListTransactions)
			r.With(write).Post("/{id}/transactions", ledger.RecordTransaction)
			r.With(write).Post("/{id}/donations", ledger.RecordDonation)
			r.With(read).Get("/{id}/lots", lots.ListByItem)
			r.With(httputil.RequirePermission(permissions.DispatchCreate)).Post("/{id}/approval-requests", approvals.Request)
		})

		r.With(read).Get("/transactions", ledger.ListTransactions)

		r.Route("/donation-sources", func(r chi.Router) {
			r.With(read).Get("/", ledger.ListDonationSources)
			r.With(write).Post("/", ledger.CreateDonationSource)
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.ApprovalDecide))
			r.Get("/", approvals.ListPending)
			r.Post("/{id}/approve", approvals.Approve)
			r.Post("/{id}/reject", approvals.Reject)
		})

		r.Route("/lots", func(r chi.Router) {
			r.With(write).Post("/", lots.Create)
			r.With(read).Get("/expiring", lots.ListExpiring)
			r.With(read).Get("/{id}", lots.Get)
			r.With(write).Post("/{id}/quantity", lots.UpdateQuantity)
			r.With(write).Post("/{id}/expire", lots.MarkExpired)
		})

		r.Route("/assets", func(r chi.Router) {
			r.With(read).Get("/", assets.List)
			r.With(assetsWrite).Post("/", assets.Create)
			r.With(read).Get("/stats", assets.Stats)
			r.With(read).Get("/overdue", assets.Overdue)
			r.With(read).Get("/{id}", assets.Get)
			r.With(read).Get("/{id}/history", assets.History)

			r.Group(func(r chi.Router) {
				r.Use(assetsWrite)
				r.Post("/{id}/borrow", assets.Borrow)
				r.Post("/{id}/return", assets.Return)
				r.Post("/{id}/transfer", assets.Transfer)
				r.Post("/{id}/maintenance", assets.StartMaintenance)
				r.Post("/{id}/maintenance/complete", assets.CompleteMaintenance)
				r.Post("/{id}/dispose", assets.Dispose)
				r.Post("/{id}/lost", assets.ReportLost)
			})
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.With(read).Get("/", locations.ListWarehouses)
			r.With(write).Post("/", locations.CreateWarehouse)
			r.With(read).Get("/{id}/locations", locations.ListLocations)
			r.With(write).Post("/{id}/locations", locations.CreateLocation)
		})

		r.Route("/locations", func(r chi.Router) {
			r.With(read).Get("/{id}", locations.GetLocation)
			r.With(read).Get("/{id}/qr", locations.BinQRCode)
		})

		r.Route("/scan", func(r chi.Router) {
			r.Use(read)
			r.Post("/verify", scan.Verify)
			r.Post("/resolve", scan.Resolve)
		})

		r.Route("/dispatch-orders", func(r chi.Router) {
			r.With(read).Get("/", dispatch.List)
			r.With(httputil.RequirePermission(permissions.DispatchCreate)).Post("/", dispatch.Create)
			r.With(read).Get("/{id}", dispatch.Get)

			approve := httputil.RequirePermission(permissions.DispatchApprove)
			r.With(approve).Post("/{id}/approve", dispatch.Approve)
			r.With(approve).Post("/{id}/reject", dispatch.Reject)
			r.With(approve).Post("/{id}/cancel", dispatch.Cancel)

			pick := httputil.RequirePermission(permissions.DispatchPick)
			r.With(pick).Post("/{id}/pick", dispatch.StartPicking)
			r.With(pick).Post("/{id}/pick/complete", dispatch.CompletePicking)
			r.With(pick).Post("/{id}/complete", dispatch.Complete)
		})

		r.Route("/labels", func(r chi.Router) {
			printLabels := httputil.RequirePermission(permissions.LabelsPrint)
			r.With(printLabels).Get("/templates", labels.Templates)
			r.With(printLabels).Post("/lots", labels.PrintLot)
			r.With(printLabels).Post("/assets", labels.PrintAssets)
			r.With(printLabels).Post("/{type}/{id}/reprint", labels.Reprint)
			r.With(httputil.RequirePermission(permissions.LabelsRevoke)).Post("/{type}/{id}/revoke", labels.Revoke)
			r.With(read).Get("/{type}/{id}/history", labels.History)
		})

		r.Route("/stocktakes", func(r chi.Router) {
			run := httputil.RequirePermission(permissions.StocktakeRun)
			r.With(run).Post("/", stocktake.Start)
			r.With(read).Get("/{id}", stocktake.Get)
			r.With(run).Post("/{id}/counts", stocktake.RecordCount)
			r.With(run).Post("/{id}/scans", stocktake.ScanAsset)
			r.With(run).Post("/{id}/missing", stocktake.MarkMissing)
			r.With(run).Post("/{id}/cancel", stocktake.Cancel)
			r.With(httputil.RequirePermission(permissions.StocktakeReview)).Post("/{id}/complete", stocktake.Complete)
		})

		// No route permission here: denied reads must reach the service so
		// they are audited.
		r.Post("/sensitive/read", sensitive.Read)

		r.Route("/audit", func(r chi.Router) {
			r.Use(httputil.RequirePermission(permissions.AuditRead))
			r.Get("/sensitive-reads", audit.SensitiveReads)
			r.Get("/label-prints", audit.LabelPrints)
			r.Get("/sensitive-reads/{type}/{id}", audit.ReadsOfTarget)
		})
	})

	return r
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		results := make(map[string]map[string]string, len(checks))
		for name, check := range checks {
			res := check(r.Context())
			if res["status"] != "up" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
			results[name] = res
		}
		httputil.JSON(w, code, map[string]any{"status": status, "checks": results})
	}
}
