package routes

import (
	"github.com/yashrajoria/equipment-workflow-service/controllers"
	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the workflow API. protected runs, in order, on every
// route that needs a caller identity. Errors handlers attach with c.Error are
// rendered by apperrors.ErrorMiddleware.
func RegisterRoutes(r *gin.Engine, ctrl *controllers.WorkflowController, protected ...gin.HandlerFunc) {
	r.GET("/health", ctrl.Health)

	api := r.Group("/api/v1")
	api.Use(apperrors.ErrorMiddleware())
	api.Use(protected...)
	{
		api.GET("/sites", ctrl.Sites)

		wf := api.Group("/workflows")
		wf.POST("", ctrl.Open)
		wf.GET("/:id", ctrl.Get)
		wf.DELETE("/:id", ctrl.Close)
		wf.POST("/:id/reset", ctrl.Reset)

		wf.POST("/:id/batch", ctrl.ValidateBatch)
		wf.DELETE("/:id/batch", ctrl.ChangeBatch)

		wf.PUT("/:id/site", ctrl.SelectSite)
		wf.PUT("/:id/warehouse", ctrl.SelectWarehouse)
		wf.POST("/:id/items", ctrl.AddItem)
		wf.PATCH("/:id/items/:index", ctrl.ChangeItem)
		wf.DELETE("/:id/items/:index", ctrl.RemoveItem)
		wf.GET("/:id/items/:index/options", ctrl.ItemOptions)
		wf.POST("/:id/submit", ctrl.Submit)

		wf.PATCH("/:id/validation-items/:index", ctrl.UpdateValidationItem)
		wf.POST("/:id/accept", ctrl.Accept)
	}
}
