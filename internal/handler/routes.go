package handler

import "github.com/gin-gonic/gin"

// BookRoutes groups the handlers mounted under /books.
type BookRoutes struct {
	Books  *BookHandler
	Import *ImportHandler
	Bulk   *BulkHandler
	Export *ExportHandler
}

// RegisterBookRoutes mounts the catalog endpoints on group.
func RegisterBookRoutes(group *gin.RouterGroup, routes BookRoutes) {
	books := group.Group("/books")

	books.GET("", routes.Books.List)
	books.POST("", routes.Books.Create)
	books.GET("/deleted", routes.Books.ListDeleted)
	books.POST("/archive-all", routes.Books.ArchiveAll)
	books.POST("/restore-all", routes.Books.RestoreAll)

	if routes.Bulk != nil {
		books.POST("/bulk", routes.Bulk.Apply)
	}
	if routes.Import != nil {
		books.POST("/import", routes.Import.Import)
	}
	if routes.Export != nil {
		books.GET("/import/template", routes.Export.Template)
		books.GET("/export", routes.Export.Export)
	}

	books.GET("/:id", routes.Books.Get)
	books.PUT("/:id", routes.Books.Update)
	books.DELETE("/:id", routes.Books.Delete)
	books.POST("/:id/restore", routes.Books.Restore)
	books.POST("/:id/archive", routes.Books.Archive)
	books.PATCH("/:id/category", routes.Books.SetCategory)
}

// RegisterOpsRoutes mounts health, readiness and metrics endpoints on the root router.
func RegisterOpsRoutes(r gin.IRoutes, metrics *MetricsHandler) {
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)
}
