package internal

import (
	"net/http"

	"stw/internal/controllers"
	"stw/internal/providers"
	"stw/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, backupController *controllers.BackupController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/list", http.HandlerFunc(apiController.GetTickets))
	routers.Get("/expiring", http.HandlerFunc(apiController.GetExpiring))
	routers.Get("/tags", http.HandlerFunc(apiController.GetTags))
	routers.Post("/", http.HandlerFunc(apiController.CreateTicket))
	routers.Post("/update", http.HandlerFunc(apiController.UpdateTicket))
	routers.Post("/batch", http.HandlerFunc(apiController.BatchUpdate))
	routers.Post("/complete", http.HandlerFunc(apiController.CompleteTicket))
	routers.Post("/delete", http.HandlerFunc(apiController.DeleteTicket))
	routers.Post("/restore", http.HandlerFunc(apiController.RestoreTicket))
	routers.Post("/purge", http.HandlerFunc(apiController.PurgeTicket))

	routers.Get("/templates", http.HandlerFunc(apiController.GetTemplates))
	routers.Post("/templates", http.HandlerFunc(apiController.CreateTemplate))
	routers.Post("/templates/delete", http.HandlerFunc(apiController.DeleteTemplate))

	routers.Get("/settings", http.HandlerFunc(apiController.GetSettings))
	routers.Post("/settings", http.HandlerFunc(apiController.PutSettings))

	routers.Get("/bg-history", http.HandlerFunc(apiController.GetBgHistory))
	routers.Post("/bg-history", http.HandlerFunc(apiController.AddBgHistory))
	routers.Post("/bg-history/delete", http.HandlerFunc(apiController.RemoveBgHistory))

	routers.Get("/export", http.HandlerFunc(apiController.Export))
	routers.Post("/import", http.HandlerFunc(apiController.Import))

	routers.Post("/backup/run", http.HandlerFunc(backupController.RunBackup))
	routers.Post("/backup/restore", http.HandlerFunc(backupController.RestoreBackup))
	routers.Get("/backup/status", http.HandlerFunc(backupController.BackupStatus))

	return routers
}
