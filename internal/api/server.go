package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paperlens/internal/config"
	"paperlens/internal/domains"
	"paperlens/internal/ingest"
	"paperlens/internal/models"
	"paperlens/internal/pipeline"
	"paperlens/internal/providers"
	"paperlens/internal/render"
	"paperlens/internal/storage"
	"paperlens/internal/util"
	"paperlens/internal/viz"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	docRepo      *storage.DocumentRepo
	phaseRepo    *storage.PhaseRepo
	ledgerRepo   *storage.LedgerRepo
	vizRepo      *storage.VizRepo
	settingsRepo *storage.SettingsRepo
	texts        *ingest.TextCache
	domains      *domains.Router
	pipeline     *pipeline.Pipeline
	log          *logrus.Logger
}

func NewServer(cfg config.Config, log *logrus.Logger) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}

	docRepo := storage.NewDocumentRepo(db)
	phaseRepo := storage.NewPhaseRepo(db)
	ledgerRepo := storage.NewLedgerRepo(db)
	vizRepo := storage.NewVizRepo(db)
	settingsRepo := storage.NewSettingsRepo(db)
	texts := ingest.NewTextCache(cfg.DataRoot)

	gateway := providers.NewGateway(newModelClient(cfg), cfg.GatewayRetries, cfg.GatewayRPS, log)
	domainRouter := domains.NewRouter(domains.NewGatewayClassifier(gateway, cfg.ScreeningModel), log)
	vizRouter := viz.NewRouter(gateway, cfg.DiagramModel, log)
	renderers := []render.Renderer{
		render.NewDiagramRenderer(gateway, cfg.DiagramModel, log),
		render.NewIllustrationRenderer(gateway, cfg.ImageModel, cfg.RenderTimeout, log),
	}

	pipe := pipeline.New(pipeline.Deps{
		Registry:  pipeline.NewRegistry(cfg.RunEvictionTTL),
		Gateway:   gateway,
		Domains:   domainRouter,
		Viz:       vizRouter,
		Renderers: renderers,
		Docs:      docRepo,
		Phases:    phaseRepo,
		Ledger:    ledgerRepo,
		Plans:     vizRepo,
		Budget:    settingsRepo,
		Texts:     texts,
		Models: pipeline.Models{
			Screening: cfg.ScreeningModel,
			Recipe:    cfg.RecipeModel,
			DeepDive:  cfg.DeepDiveModel,
		},
		BudgetFallbackUSD: cfg.MonthlyBudgetUSD,
		DataRoot:          cfg.DataRoot,
		Log:               log,
	})

	return &Server{
		cfg:          cfg,
		db:           db,
		docRepo:      docRepo,
		phaseRepo:    phaseRepo,
		ledgerRepo:   ledgerRepo,
		vizRepo:      vizRepo,
		settingsRepo: settingsRepo,
		texts:        texts,
		domains:      domainRouter,
		pipeline:     pipe,
		log:          log,
	}
}

func newModelClient(cfg config.Config) providers.ModelClient {
	switch cfg.ModelProvider {
	case "gemini":
		return providers.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	case "anthropic":
		return providers.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBase)
	default:
		return providers.NewMockClient()
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/analysis/", s.handleAnalysisScoped)
	mux.HandleFunc("/settings/budget", s.handleBudget)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.docRepo.ListDocuments(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.docRepo.GetDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		resp := map[string]any{"document": doc}
		if dc, err := s.docRepo.GetClassification(r.Context(), documentID); err == nil {
			resp["classification"] = dc
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if len(parts) == 2 && parts[1] == "file" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.docRepo.GetDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.cfg.DataRoot, "uploads", filepath.Base(doc.Filename)))
		return
	}

	if len(parts) == 2 && parts[1] == "domain" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleDomainOverride(w, r, documentID)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleDomainOverride(w http.ResponseWriter, r *http.Request, documentID string) {
	if _, err := s.docRepo.GetDocument(r.Context(), documentID); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	dc, err := s.domains.Override(strings.TrimSpace(req.Domain))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.docRepo.SetDomain(r.Context(), documentID, dc); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classification": dc})
}

func (s *Server) handleAnalysisScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/analysis/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	switch parts[1] {
	case "run":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleRun(w, r, documentID)
	case "cancel":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if !s.pipeline.Cancel(documentID) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("no run for document"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
	case "status":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleStatus(w, r, documentID)
	case "results":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleResults(w, r, documentID)
	case "visualizations":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		plan, err := s.vizRepo.LatestPlan(r.Context(), documentID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, documentID string) {
	out, err := s.pipeline.Start(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	switch out.Code {
	case pipeline.StartAccepted:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"document_id": documentID,
			"status":      "accepted",
		})
	case pipeline.StartNotFound:
		writeErr(w, http.StatusNotFound, fmt.Errorf("document not found"))
	case pipeline.StartConflict:
		writeErr(w, http.StatusConflict, fmt.Errorf("analysis already running"))
	case pipeline.StartBudgetExceeded:
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error": map[string]any{
				"code":    "PL-BUDGET-4020",
				"message": "Monthly analysis budget exhausted.",
			},
			"spend_usd": out.SpendUSD,
			"limit_usd": out.LimitUSD,
		})
	default:
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("unexpected outcome %q", out.Code))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, documentID string) {
	if snap, ok := s.pipeline.Status(documentID); ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	// No in-memory run (evicted or never started this process): rebuild a
	// snapshot from the persisted rows.
	doc, err := s.docRepo.GetDocument(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	rows, err := s.phaseRepo.LatestPerPhase(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFromRows(doc, rows))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, documentID string) {
	if _, err := s.docRepo.GetDocument(r.Context(), documentID); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	rows, err := s.phaseRepo.LatestPerPhase(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	results := make(map[string]any, len(rows))
	for _, row := range rows {
		entry := map[string]any{
			"status":     row.Status,
			"model":      row.Model,
			"tokens_in":  row.TokensIn,
			"tokens_out": row.TokensOut,
			"cost_usd":   row.CostUSD,
		}
		if !row.StartedAt.IsZero() {
			entry["started_at"] = row.StartedAt
		}
		if !row.CompletedAt.IsZero() {
			entry["completed_at"] = row.CompletedAt
		}
		if len(row.Payload) > 0 {
			entry["payload"] = json.RawMessage(row.Payload)
		}
		if row.ErrorMsg != "" {
			entry["error_message"] = row.ErrorMsg
		}
		results[row.Phase] = entry
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": documentID, "results": results})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, err := s.settingsRepo.MonthlyBudget(r.Context(), s.cfg.MonthlyBudgetUSD)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		spend, err := s.ledgerRepo.SumMonth(r.Context(), time.Now().UTC())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"limit_usd": limit, "spend_usd": spend})
	case http.MethodPut:
		var req struct {
			LimitUSD float64 `json:"limit_usd"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if req.LimitUSD <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("limit_usd must be positive"))
			return
		}
		if err := s.settingsRepo.SetMonthlyBudget(r.Context(), req.LimitUSD); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"limit_usd": req.LimitUSD})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := firstFile(r.MultipartForm.File)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf files are accepted"))
		return
	}

	uploadDir := filepath.Join(s.cfg.DataRoot, "uploads")
	if err := util.EnsureDir(uploadDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	savedPath, err := saveUploadedFile(uploadDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	hash, err := s.texts.HashFile(savedPath)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if existing, err := s.docRepo.GetByContentHash(r.Context(), hash); err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"document": existing, "duplicate": true})
		return
	}

	parsed, err := ingest.ParsePDF(savedPath)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse pdf: %w", err))
		return
	}
	if err := s.texts.Put(hash, parsed.Text); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc := models.Document{
		DocumentID:  uuid.NewString(),
		Filename:    filepath.Base(savedPath),
		ContentHash: hash,
		Status:      models.DocPending,
	}
	if err := s.docRepo.CreateDocument(r.Context(), doc); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.docRepo.SetParsed(r.Context(), doc.DocumentID, parsed.Title, parsed.Abstract, parsed.PageCount, parsed.Figures); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	stored, err := s.docRepo.GetDocument(r.Context(), doc.DocumentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"document": doc.DocumentID,
		"pages":    parsed.PageCount,
		"figures":  len(parsed.Figures),
	}).Info("document ingested")
	writeJSON(w, http.StatusCreated, map[string]any{"document": stored})
}

// snapshotFromRows approximates a run snapshot from persisted phase rows for
// runs that are no longer in memory.
func snapshotFromRows(doc models.Document, rows []models.PhaseResult) pipeline.Snapshot {
	snap := pipeline.Snapshot{
		DocumentID: doc.DocumentID,
		Status:     doc.Status,
		CostUSD:    doc.TotalCost,
	}
	progress := 0
	for _, row := range rows {
		snap.Phases = append(snap.Phases, pipeline.PhaseState{
			Phase:    row.Phase,
			Status:   row.Status,
			CostUSD:  row.CostUSD,
			ErrorMsg: row.ErrorMsg,
		})
		snap.TokensIn += row.TokensIn
		snap.TokensOut += row.TokensOut
		if floor := pipeline.ProgressFloor(row.Phase); floor > progress {
			progress = floor
		}
	}
	snap.Progress = progress
	return snap
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	if _, err := tmp.ReadFrom(src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dstDir, filepath.Base(fh.Filename))
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func firstFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	if files := m["file"]; len(files) > 0 {
		return files[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PL-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PL-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PL-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PL-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PL-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PL-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "PL-API-4009"
		msg = "An analysis is already running for this document."
	case status == http.StatusMethodNotAllowed:
		code = "PL-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "only pdf"):
			msg = "Only PDF files are accepted."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "unknown domain"):
			msg = err.Error()
		case strings.Contains(raw, "limit_usd"):
			msg = err.Error()
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
