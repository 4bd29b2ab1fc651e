package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domainCrisis "github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/service/backups"
	"github.com/mindhaven/crisis-safety-backend/internal/service/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/service/dispatch"
	"github.com/mindhaven/crisis-safety-backend/internal/service/migration"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
)

// Services holds the services the REST API fronts
type Services struct {
	Crisis     crisis.Service
	Dispatch   dispatch.Service
	Backups    backups.Service
	Migrations migration.Service
	Monitor    *perfmon.Monitor
}

// Handler routes REST requests to the safety services
type Handler struct {
	services Services
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates the REST handler
func NewHandler(services Services, logger *slog.Logger) *Handler {
	return &Handler{
		services: services,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes registers every endpoint on a fresh mux
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/crisis/detect", h.detectCrisis)
	mux.HandleFunc("POST /api/v1/crisis/ideation", h.detectIdeation)
	mux.HandleFunc("POST /api/v1/crisis/manual", h.triggerManual)
	mux.HandleFunc("POST /api/v1/crisis/{id}/resolve", h.resolveCrisis)
	mux.HandleFunc("GET /api/v1/crisis/state", h.crisisState)
	mux.HandleFunc("PUT /api/v1/crisis/safety-plan", h.updateSafetyPlan)

	mux.HandleFunc("POST /api/v1/emergency/hotline", h.callHotline)
	mux.HandleFunc("POST /api/v1/emergency/operations", h.addOperation)
	mux.HandleFunc("POST /api/v1/emergency/operations/{id}/execute", h.executeOperation)

	mux.HandleFunc("POST /api/v1/backups/{storeType}", h.createBackup)
	mux.HandleFunc("GET /api/v1/backups/{storeType}", h.listBackups)
	mux.HandleFunc("POST /api/v1/backups/{storeType}/restore", h.restoreBackup)
	mux.HandleFunc("GET /api/v1/backups/{storeType}/{backupId}/verify", h.verifyBackup)
	mux.HandleFunc("DELETE /api/v1/backups/expired", h.cleanupExpired)

	mux.HandleFunc("POST /api/v1/migrations/{storeType}", h.migrateStore)
	mux.HandleFunc("POST /api/v1/migrations", h.migrateAll)
	mux.HandleFunc("GET /api/v1/migrations/{id}", h.getMigration)
	mux.HandleFunc("POST /api/v1/migrations/{storeType}/validate", h.validateStore)

	mux.HandleFunc("GET /api/v1/performance", h.performance)
	mux.HandleFunc("GET /healthz", h.health)

	return mux
}

type detectRequest struct {
	AssessmentType string `json:"assessment_type" validate:"required,oneof=phq9 gad7"`
	Answers        []int  `json:"answers" validate:"required"`
}

func (h *Handler) detectCrisis(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.services.Crisis.DetectCrisis(r.Context(),
		domainCrisis.AssessmentType(req.AssessmentType), req.Answers)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type ideationRequest struct {
	Answers []int `json:"answers" validate:"required,len=9"`
}

func (h *Handler) detectIdeation(w http.ResponseWriter, r *http.Request) {
	var req ideationRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.services.Crisis.DetectSuicidalIdeation(r.Context(), req.Answers)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) triggerManual(w http.ResponseWriter, r *http.Request) {
	result, err := h.services.Crisis.TriggerManualCrisis(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	Effectiveness int `json:"effectiveness" validate:"required,min=1,max=5"`
}

func (h *Handler) resolveCrisis(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.services.Crisis.ResolveCrisis(r.Context(), id, req.Effectiveness); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

func (h *Handler) crisisState(w http.ResponseWriter, r *http.Request) {
	state, err := h.services.Crisis.CurrentState(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

type safetyPlanRequest struct {
	WarningSigns     []string         `json:"warning_signs"`
	CopingStrategies []string         `json:"coping_strategies"`
	Contacts         []contactRequest `json:"contacts" validate:"dive"`
}

type contactRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

func (h *Handler) updateSafetyPlan(w http.ResponseWriter, r *http.Request) {
	var req safetyPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	contacts := make([]emergency.Contact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		phone, err := values.NewPhoneNumber(c.Phone)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		contacts = append(contacts, emergency.Contact{Name: c.Name, Phone: phone})
	}

	plan := emergency.NewSafetyPlan(req.WarningSigns, req.CopingStrategies, contacts)
	if err := h.services.Crisis.UpdateSafetyPlan(r.Context(), plan); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *Handler) callHotline(w http.ResponseWriter, r *http.Request) {
	result, err := h.services.Crisis.CallHotline(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type operationRequest struct {
	Kind                      string `json:"kind" validate:"required"`
	CrisisLevel               string `json:"crisis_level"`
	BypassesQueue             bool   `json:"bypasses_queue"`
	MaxExecutionTimeMs        int64  `json:"max_execution_time_ms" validate:"gt=0"`
	GuaranteedExecutionTimeMs int64  `json:"guaranteed_execution_time_ms" validate:"gt=0"`
	Contact                   string `json:"contact,omitempty"`
}

func (h *Handler) addOperation(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if !h.decode(w, r, &req) {
		return
	}

	level := domainCrisis.LevelNone
	if req.CrisisLevel != "" {
		parsed, err := domainCrisis.ParseLevel(req.CrisisLevel)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		level = parsed
	}

	svcReq := &dispatch.OperationRequest{
		Kind:                      emergency.ActionKind(req.Kind),
		CrisisLevel:               level,
		BypassesQueue:             req.BypassesQueue,
		MaxExecutionTimeMs:        req.MaxExecutionTimeMs,
		GuaranteedExecutionTimeMs: req.GuaranteedExecutionTimeMs,
	}
	if req.Contact != "" {
		phone, err := values.NewPhoneNumber(req.Contact)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		svcReq.Contact = &phone
	}

	id, err := h.services.Dispatch.AddOperation(r.Context(), svcReq)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"operation_id": id.String()})
}

func (h *Handler) executeOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.services.Dispatch.Execute(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) createBackup(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}

	record, err := h.services.Backups.Backup(r.Context(), storeType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *Handler) listBackups(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}

	records, err := h.services.Backups.ListBackups(r.Context(), storeType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"backups": records})
}

type restoreRequest struct {
	BackupID string `json:"backup_id" validate:"required,uuid"`
}

func (h *Handler) restoreBackup(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}

	var req restoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	backupID, err := uuid.Parse(req.BackupID)
	if err != nil {
		writeError(w, r, h.logger,
			errors.NewValidationError("INVALID_BACKUP_ID", "backup_id is not a valid UUID"))
		return
	}

	result, err := h.services.Backups.Restore(r.Context(), backupID, storeType)
	if err != nil {
		// The result still carries the gate that failed.
		if result != nil {
			status, _ := classifyError(err)
			respondJSON(w, status, result)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) verifyBackup(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}
	backupID, ok := h.pathUUID(w, r, "backupId")
	if !ok {
		return
	}

	valid, err := h.services.Backups.VerifyIntegrity(r.Context(), storeType, backupID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) cleanupExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := h.services.Backups.CleanupExpired(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) migrateStore(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}

	op, err := h.services.Migrations.Migrate(r.Context(), storeType)
	if err != nil {
		if op != nil {
			status, _ := classifyError(err)
			respondJSON(w, status, op)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, op)
}

func (h *Handler) migrateAll(w http.ResponseWriter, r *http.Request) {
	ops, err := h.services.Migrations.MigrateAll(r.Context())
	status := http.StatusOK
	if err != nil {
		status, _ = classifyError(err)
	}
	respondJSON(w, status, map[string]interface{}{"migrations": ops})
}

func (h *Handler) getMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	op, err := h.services.Migrations.GetMigration(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, op)
}

func (h *Handler) validateStore(w http.ResponseWriter, r *http.Request) {
	storeType, ok := h.pathStoreType(w, r)
	if !ok {
		return
	}

	report, err := h.services.Migrations.Validate(r.Context(), storeType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	snapshot := h.services.Monitor.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"aggregate":       snapshot,
		"compliance_rate": snapshot.ComplianceRate(),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// decode parses and validates a JSON request body
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, h.logger,
			errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, h.logger,
			errors.NewValidationError("INVALID_ID", name+" is not a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pathStoreType(w http.ResponseWriter, r *http.Request) (values.StoreType, bool) {
	storeType, err := values.NewStoreType(r.PathValue("storeType"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return "", false
	}
	return storeType, true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
