package services

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/logger"
	"github.com/yashrajoria/equipment-workflow-service/models"
	awspkg "github.com/yashrajoria/equipment-workflow-service/pkg/aws"
	"github.com/yashrajoria/equipment-workflow-service/repository"
	"github.com/yashrajoria/equipment-workflow-service/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published on the workflow topic.
const (
	EventTransactionCreated   = "workflow.transaction_created"
	EventTransactionValidated = "workflow.transaction_validated"
)

// SessionView is what the SPA renders for one workflow.
type SessionView struct {
	ID string `json:"id"`
	workflow.View
}

// ItemPatch edits one draft row. Fields left nil are untouched; the item
// type is applied before the quantity.
type ItemPatch struct {
	ItemTypeID *string `json:"itemTypeId"`
	Quantity   *string `json:"quantity"`
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	SessionID     string `json:"sessionId"`
	Action        string `json:"action"`
	TransactionID string `json:"transactionId,omitempty"`
	Replayed      bool   `json:"replayed"`
}

// MetricsRecorder is satisfied by *awspkg.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// WorkflowService defines the operations behind the workflow API. Every
// session-scoped call is checked against the caller that opened it.
type WorkflowService interface {
	Sites(ctx context.Context) ([]models.Site, error)
	Open(ctx context.Context, owner string, opts workflow.Options) (*SessionView, error)
	Get(ctx context.Context, owner, id string) (*SessionView, error)
	Close(ctx context.Context, owner, id string) error
	Reset(ctx context.Context, owner, id string) (*SessionView, error)
	ValidateBatch(ctx context.Context, owner, id, batchNumber string) (*SessionView, error)
	ChangeBatch(ctx context.Context, owner, id string) (*SessionView, error)
	SelectSite(ctx context.Context, owner, id, siteID string) (*SessionView, error)
	SelectWarehouse(ctx context.Context, owner, id, warehouseID string) (*SessionView, error)
	AddItem(ctx context.Context, owner, id string) (*SessionView, error)
	ChangeItem(ctx context.Context, owner, id string, index int, patch ItemPatch) (*SessionView, error)
	RemoveItem(ctx context.Context, owner, id string, index int) (*SessionView, error)
	ItemOptions(ctx context.Context, owner, id string, index int) (*workflow.ItemOptions, error)
	UpdateValidationItem(ctx context.Context, owner, id string, index int, patch workflow.ValidationItemPatch) (*SessionView, error)
	Submit(ctx context.Context, owner, id, description, idempotencyKey string) (*SubmitResult, error)
	Accept(ctx context.Context, owner, id, idempotencyKey string) (*SubmitResult, error)
}

type workflowServiceImpl struct {
	deps        workflow.Dependencies
	sessions    repository.SessionRegistry
	idem        repository.IdempotencyRepository
	snsClient   awspkg.SNSPublisher
	snsTopicArn string
	metrics     MetricsRecorder
	now         func() time.Time
}

// NewWorkflowService creates a WorkflowService. idem, snsClient and metrics
// may be nil; the matching feature is then off.
func NewWorkflowService(
	deps workflow.Dependencies,
	sessions repository.SessionRegistry,
	idem repository.IdempotencyRepository,
	snsClient awspkg.SNSPublisher,
	snsTopicArn string,
	metrics MetricsRecorder,
) WorkflowService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &workflowServiceImpl{
		deps:        deps,
		sessions:    sessions,
		idem:        idem,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		metrics:     metrics,
		now:         now,
	}
}

func (s *workflowServiceImpl) Sites(ctx context.Context) ([]models.Site, error) {
	return s.deps.Catalog.Sites(ctx)
}

// Open starts a fresh workflow for the equipment and loads the site list.
// A failed site load is reported through the view, not as an error.
func (s *workflowServiceImpl) Open(ctx context.Context, owner string, opts workflow.Options) (*SessionView, error) {
	if opts.EquipmentID == "" {
		return nil, apperrors.Validation("Equipment is required")
	}

	sess := &repository.Session{
		ID:        uuid.NewString(),
		Owner:     owner,
		CreatedAt: s.now(),
		Workflow:  workflow.New(opts, s.deps),
	}
	if err := sess.Workflow.LoadSites(ctx); err != nil {
		logger.Warn(ctx, "failed to load sites for new workflow",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	s.sessions.Put(sess)

	logger.Info(ctx, "workflow opened",
		zap.String("session_id", sess.ID),
		zap.String("equipment_id", opts.EquipmentID),
		zap.Bool("maintenance_validation", opts.UseMaintenanceValidation),
	)
	s.record(awspkg.MetricWorkflowsOpened, nil)
	return viewOf(sess), nil
}

func (s *workflowServiceImpl) Get(ctx context.Context, owner, id string) (*SessionView, error) {
	sess, err := s.session(owner, id)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// Close discards the session. Closing an unknown session is not an error.
func (s *workflowServiceImpl) Close(ctx context.Context, owner, id string) error {
	sess, err := s.session(owner, id)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil
		}
		return err
	}
	s.sessions.Remove(sess.ID)
	logger.Info(ctx, "workflow closed", zap.String("session_id", sess.ID))
	return nil
}

func (s *workflowServiceImpl) Reset(ctx context.Context, owner, id string) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.ResetForm() })
}

func (s *workflowServiceImpl) ValidateBatch(ctx context.Context, owner, id, batchNumber string) (*SessionView, error) {
	view, err := s.apply(owner, id, func(wf *workflow.Workflow) error {
		return wf.ValidateBatch(ctx, batchNumber)
	})
	if err == nil && view.Result != nil {
		s.record(awspkg.MetricBatchesResolved, map[string]string{"Scenario": string(view.Result.Scenario)})
	}
	return view, err
}

func (s *workflowServiceImpl) ChangeBatch(ctx context.Context, owner, id string) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.ChangeBatch() })
}

func (s *workflowServiceImpl) SelectSite(ctx context.Context, owner, id, siteID string) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.SelectSite(ctx, siteID) })
}

func (s *workflowServiceImpl) SelectWarehouse(ctx context.Context, owner, id, warehouseID string) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.SelectWarehouse(ctx, warehouseID) })
}

func (s *workflowServiceImpl) AddItem(ctx context.Context, owner, id string) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.AddItem() })
}

func (s *workflowServiceImpl) ChangeItem(ctx context.Context, owner, id string, index int, patch ItemPatch) (*SessionView, error) {
	if patch.ItemTypeID == nil && patch.Quantity == nil {
		return nil, apperrors.Validation("Nothing to change")
	}
	return s.apply(owner, id, func(wf *workflow.Workflow) error {
		if patch.ItemTypeID != nil {
			if err := wf.ChangeItem(index, workflow.FieldItemTypeID, *patch.ItemTypeID); err != nil {
				return err
			}
		}
		if patch.Quantity != nil {
			return wf.ChangeItem(index, workflow.FieldQuantity, *patch.Quantity)
		}
		return nil
	})
}

func (s *workflowServiceImpl) RemoveItem(ctx context.Context, owner, id string, index int) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.RemoveItem(index) })
}

func (s *workflowServiceImpl) ItemOptions(ctx context.Context, owner, id string, index int) (*workflow.ItemOptions, error) {
	sess, err := s.session(owner, id)
	if err != nil {
		return nil, err
	}
	return sess.Workflow.ItemOptions(index)
}

func (s *workflowServiceImpl) UpdateValidationItem(ctx context.Context, owner, id string, index int, patch workflow.ValidationItemPatch) (*SessionView, error) {
	return s.apply(owner, id, func(wf *workflow.Workflow) error { return wf.UpdateValidationItem(index, patch) })
}

// Submit creates the transaction. A repeated idempotency key returns the
// first outcome without touching the ERP.
func (s *workflowServiceImpl) Submit(ctx context.Context, owner, id, description, idempotencyKey string) (*SubmitResult, error) {
	scope := idempotencyScope("submit", owner, id)
	if res := s.replay(ctx, scope, idempotencyKey); res != nil {
		return res, nil
	}

	sess, err := s.session(owner, id)
	if err != nil {
		return nil, err
	}
	ref, err := sess.Workflow.SubmitCreate(ctx, description)
	if err != nil {
		s.submissionFailed(ctx, sess, workflow.ActionCreated, err)
		return nil, err
	}

	res := &SubmitResult{SessionID: sess.ID, Action: workflow.ActionCreated}
	if ref != nil {
		res.TransactionID = ref.ID
	}
	s.finish(ctx, sess, scope, idempotencyKey, res, EventTransactionCreated, awspkg.MetricTransactionsCreated)
	return res, nil
}

// Accept sends the acceptance of the incoming transaction.
func (s *workflowServiceImpl) Accept(ctx context.Context, owner, id, idempotencyKey string) (*SubmitResult, error) {
	scope := idempotencyScope("accept", owner, id)
	if res := s.replay(ctx, scope, idempotencyKey); res != nil {
		return res, nil
	}

	sess, err := s.session(owner, id)
	if err != nil {
		return nil, err
	}
	payload, err := sess.Workflow.SubmitValidation(ctx)
	if err != nil {
		s.submissionFailed(ctx, sess, workflow.ActionValidated, err)
		return nil, err
	}

	res := &SubmitResult{SessionID: sess.ID, Action: workflow.ActionValidated, TransactionID: payload.TransactionID}
	s.finish(ctx, sess, scope, idempotencyKey, res, EventTransactionValidated, awspkg.MetricTransactionsValidated)
	return res, nil
}

// idempotencyScope ties a key to one caller and one session, so a key
// reused on another session never answers for it.
func idempotencyScope(action, owner, sessionID string) string {
	return action + ":" + owner + ":" + sessionID
}

func (s *workflowServiceImpl) session(owner, id string) (*repository.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok || sess.Owner != owner {
		return nil, apperrors.ErrSessionNotFound
	}
	return sess, nil
}

// apply runs fn on the session's workflow. The view is returned even when fn
// fails so the caller can render the kept state.
func (s *workflowServiceImpl) apply(owner, id string, fn func(wf *workflow.Workflow) error) (*SessionView, error) {
	sess, err := s.session(owner, id)
	if err != nil {
		return nil, err
	}
	err = fn(sess.Workflow)
	return viewOf(sess), err
}

func (s *workflowServiceImpl) replay(ctx context.Context, scope, key string) *SubmitResult {
	if key == "" || s.idem == nil {
		return nil
	}
	raw, found, err := s.idem.Get(ctx, scope, key)
	if err != nil {
		logger.Warn(ctx, "idempotency lookup failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var res SubmitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		logger.Warn(ctx, "discarding unreadable idempotency record", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	res.Replayed = true
	s.record(awspkg.MetricIdempotentReplays, map[string]string{"Action": res.Action})
	return &res
}

// finish records a successful submission and discards the session.
func (s *workflowServiceImpl) finish(ctx context.Context, sess *repository.Session, scope, key string, res *SubmitResult, eventType, metric string) {
	s.sessions.Remove(sess.ID)

	if key != "" && s.idem != nil {
		if raw, err := json.Marshal(res); err == nil {
			if err := s.idem.Save(ctx, scope, key, raw); err != nil {
				logger.Warn(ctx, "failed to store idempotency record", zap.String("scope", scope), zap.Error(err))
			}
		}
	}

	logger.Info(ctx, "workflow submitted",
		zap.String("session_id", sess.ID),
		zap.String("action", res.Action),
		zap.String("transaction_id", res.TransactionID),
	)
	s.publish(ctx, sess, res, eventType)
	s.record(metric, nil)
}

func (s *workflowServiceImpl) submissionFailed(ctx context.Context, sess *repository.Session, action string, err error) {
	kind := apperrors.KindOf(err)
	logger.Warn(ctx, "workflow submission failed",
		zap.String("session_id", sess.ID),
		zap.String("action", action),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	if kind != apperrors.KindValidation {
		s.record(awspkg.MetricSubmissionsFailed, map[string]string{"Action": action, "Kind": string(kind)})
	}
}

type workflowEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"sessionId"`
	EquipmentID   string    `json:"equipmentId"`
	MaintenanceID string    `json:"maintenanceId,omitempty"`
	BatchNumber   string    `json:"batchNumber"`
	TransactionID string    `json:"transactionId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// publish is best effort; the ERP already holds the transaction.
func (s *workflowServiceImpl) publish(ctx context.Context, sess *repository.Session, res *SubmitResult, eventType string) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	view := sess.Workflow.View()
	evt := workflowEvent{
		Type:          eventType,
		SessionID:     sess.ID,
		EquipmentID:   view.EquipmentID,
		MaintenanceID: view.MaintenanceID,
		BatchNumber:   view.BatchNumber,
		TransactionID: res.TransactionID,
		OccurredAt:    s.now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error(ctx, "failed to marshal workflow event", err)
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventType, body); err != nil {
		logger.Warn(ctx, "failed to publish workflow event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *workflowServiceImpl) record(metric string, dims map[string]string) {
	if s.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, dims)
	}()
}

func viewOf(sess *repository.Session) *SessionView {
	return &SessionView{ID: sess.ID, View: sess.Workflow.View()}
}
