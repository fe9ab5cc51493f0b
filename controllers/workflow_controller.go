package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/middleware"
	"github.com/yashrajoria/equipment-workflow-service/models"
	"github.com/yashrajoria/equipment-workflow-service/services"
	"github.com/yashrajoria/equipment-workflow-service/workflow"

	"github.com/gin-gonic/gin"
)

const IdempotencyHeader = "Idempotency-Key"

// WorkflowController handles HTTP requests for workflow sessions.
type WorkflowController struct {
	workflowService services.WorkflowService
}

// NewWorkflowController creates a new WorkflowController.
func NewWorkflowController(workflowService services.WorkflowService) *WorkflowController {
	return &WorkflowController{workflowService: workflowService}
}

type OpenWorkflowRequest struct {
	EquipmentID              string                    `json:"equipmentId" binding:"required"`
	MaintenanceID            string                    `json:"maintenanceId"`
	UseMaintenanceValidation bool                      `json:"useMaintenanceValidation"`
	TransactionPurpose       models.TransactionPurpose `json:"transactionPurpose" binding:"omitempty,oneof=CONSUMABLE MAINTENANCE"`
	MaintenanceData          json.RawMessage           `json:"maintenanceData"`
}

type ValidateBatchRequest struct {
	BatchNumber string `json:"batchNumber"`
}

type SelectSiteRequest struct {
	SiteID string `json:"siteId"`
}

type SelectWarehouseRequest struct {
	WarehouseID string `json:"warehouseId"`
}

type SubmitRequest struct {
	Description string `json:"description" binding:"max=1000"`
}

func (wc *WorkflowController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sites handles GET /api/v1/sites.
func (wc *WorkflowController) Sites(ctx *gin.Context) {
	sites, err := wc.workflowService.Sites(ctx.Request.Context())
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sites": sites})
}

// Open handles POST /api/v1/workflows.
func (wc *WorkflowController) Open(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req OpenWorkflowRequest
	if !bind(ctx, &req) {
		return
	}

	view, err := wc.workflowService.Open(ctx.Request.Context(), userID, workflow.Options{
		EquipmentID:              req.EquipmentID,
		MaintenanceID:            req.MaintenanceID,
		UseMaintenanceValidation: req.UseMaintenanceValidation,
		TransactionPurpose:       req.TransactionPurpose,
		MaintenanceData:          req.MaintenanceData,
	})
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"workflow": view})
}

// Get handles GET /api/v1/workflows/:id.
func (wc *WorkflowController) Get(ctx *gin.Context) {
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.Get(ctx.Request.Context(), userID, id)
	})
}

// Close handles DELETE /api/v1/workflows/:id.
func (wc *WorkflowController) Close(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	if err := wc.workflowService.Close(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Reset handles POST /api/v1/workflows/:id/reset.
func (wc *WorkflowController) Reset(ctx *gin.Context) {
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.Reset(ctx.Request.Context(), userID, id)
	})
}

// ValidateBatch handles POST /api/v1/workflows/:id/batch.
func (wc *WorkflowController) ValidateBatch(ctx *gin.Context) {
	var req ValidateBatchRequest
	if !bind(ctx, &req) {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.ValidateBatch(ctx.Request.Context(), userID, id, req.BatchNumber)
	})
}

// ChangeBatch handles DELETE /api/v1/workflows/:id/batch.
func (wc *WorkflowController) ChangeBatch(ctx *gin.Context) {
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.ChangeBatch(ctx.Request.Context(), userID, id)
	})
}

// SelectSite handles PUT /api/v1/workflows/:id/site.
func (wc *WorkflowController) SelectSite(ctx *gin.Context) {
	var req SelectSiteRequest
	if !bind(ctx, &req) {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.SelectSite(ctx.Request.Context(), userID, id, req.SiteID)
	})
}

// SelectWarehouse handles PUT /api/v1/workflows/:id/warehouse.
func (wc *WorkflowController) SelectWarehouse(ctx *gin.Context) {
	var req SelectWarehouseRequest
	if !bind(ctx, &req) {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.SelectWarehouse(ctx.Request.Context(), userID, id, req.WarehouseID)
	})
}

// AddItem handles POST /api/v1/workflows/:id/items.
func (wc *WorkflowController) AddItem(ctx *gin.Context) {
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.AddItem(ctx.Request.Context(), userID, id)
	})
}

// ChangeItem handles PATCH /api/v1/workflows/:id/items/:index.
func (wc *WorkflowController) ChangeItem(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	var patch services.ItemPatch
	if !bind(ctx, &patch) {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.ChangeItem(ctx.Request.Context(), userID, id, index, patch)
	})
}

// RemoveItem handles DELETE /api/v1/workflows/:id/items/:index.
func (wc *WorkflowController) RemoveItem(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.RemoveItem(ctx.Request.Context(), userID, id, index)
	})
}

// ItemOptions handles GET /api/v1/workflows/:id/items/:index/options.
func (wc *WorkflowController) ItemOptions(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	opts, err := wc.workflowService.ItemOptions(ctx.Request.Context(), userID, ctx.Param("id"), index)
	if err != nil {
		abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, opts)
}

// UpdateValidationItem handles PATCH /api/v1/workflows/:id/validation-items/:index.
func (wc *WorkflowController) UpdateValidationItem(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	var patch workflow.ValidationItemPatch
	if !bind(ctx, &patch) {
		return
	}
	wc.withSession(ctx, func(userID, id string) (*services.SessionView, error) {
		return wc.workflowService.UpdateValidationItem(ctx.Request.Context(), userID, id, index, patch)
	})
}

// Submit handles POST /api/v1/workflows/:id/submit.
func (wc *WorkflowController) Submit(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req SubmitRequest
	if ctx.Request.ContentLength != 0 && !bind(ctx, &req) {
		return
	}

	res, err := wc.workflowService.Submit(ctx.Request.Context(), userID, ctx.Param("id"), req.Description, ctx.GetHeader(IdempotencyHeader))
	wc.submitted(ctx, userID, res, err)
}

// Accept handles POST /api/v1/workflows/:id/accept.
func (wc *WorkflowController) Accept(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	res, err := wc.workflowService.Accept(ctx.Request.Context(), userID, ctx.Param("id"), ctx.GetHeader(IdempotencyHeader))
	wc.submitted(ctx, userID, res, err)
}

// submitted answers a submission. A failure includes the kept workflow so
// the form can show what was entered next to the error.
func (wc *WorkflowController) submitted(ctx *gin.Context, userID string, res *services.SubmitResult, err error) {
	if err != nil {
		view, _ := wc.workflowService.Get(ctx.Request.Context(), userID, ctx.Param("id"))
		respondView(ctx, view, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{"result": res})
}

func (wc *WorkflowController) withSession(ctx *gin.Context, fn func(userID, id string) (*services.SessionView, error)) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	view, err := fn(userID, ctx.Param("id"))
	respondView(ctx, view, err)
}

func respondView(ctx *gin.Context, view *services.SessionView, err error) {
	if err == nil {
		ctx.JSON(http.StatusOK, gin.H{"workflow": view})
		return
	}
	appErr := apperrors.As(err)
	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if view != nil {
		body["workflow"] = view
	}
	ctx.JSON(appErr.Code, body)
}

// abortWithError hands err to apperrors.ErrorMiddleware and stops the chain.
func abortWithError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func currentUser(ctx *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		abortWithError(ctx, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func bind(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortWithError(ctx, apperrors.New(apperrors.KindValidation, "Invalid request", err))
		return false
	}
	return true
}

func indexParam(ctx *gin.Context) (int, bool) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil || index < 0 {
		abortWithError(ctx, apperrors.Validation("Item index must be a non-negative integer"))
		return 0, false
	}
	return index, true
}
