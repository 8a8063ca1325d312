// AngelaMos | 2026
// handler.go

package referral

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sikaplatform/referral-backend/internal/core"
)

type Handler struct {
	service   *Service
	validator *validator.Validate

	defaultPageSize int
	maxPageSize     int
}

type HandlerConfig struct {
	Service         *Service
	DefaultPageSize int
	MaxPageSize     int
}

func NewHandler(cfg HandlerConfig) *Handler {
	defaultPageSize := cfg.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}

	return &Handler{
		service:         cfg.Service,
		validator:       validator.New(validator.WithRequiredStructEnabled()),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// RegisterRoutes mounts the operator-facing read surface. Every route is
// behind the access-token authenticator plus the admin role check.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/referrals", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/{referrerID}", h.ListByReferrer)
		r.Get("/{referrerID}/stats", h.GetStats)
		r.Get("/{referrerID}/search", h.Search)
		r.Get("/{referrerID}/eligible", h.ListEligible)
		r.Get("/{referrerID}/filter", h.ListWithSubType)
	})
}

// RegisterInternalRoutes mounts the machine-to-machine write surface used
// by the enrollment and account services.
func (h *Handler) RegisterInternalRoutes(
	r chi.Router,
	serviceKey func(http.Handler) http.Handler,
) {
	r.Route("/internal/referrals", func(r chi.Router) {
		r.Use(serviceKey)

		r.Post("/", h.Create)
		r.Post("/bulk", h.CreateMany)
		r.Post("/users/{userID}/archive", h.ArchiveUser)
		r.Post("/users/{userID}/unarchive", h.UnarchiveUser)
		r.Patch("/users/{userID}/snapshot", h.UpdateSnapshot)
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")

	stats, err := h.service.GetReferralStats(r.Context(), referrerID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) ListByReferrer(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")

	params, err := h.listParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	level, err := h.levelParam(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	sort := SortRecent
	if r.URL.Query().Get("sort") == "name" {
		sort = SortName
	}

	if r.URL.Query().Get("populate") == "true" {
		records, total, err := h.service.ListByReferrerPopulated(
			r.Context(), referrerID, level, params, sort,
		)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		core.Paginated(w, records, params.Page, params.Limit, total)
		return
	}

	records, total, err := h.service.ListByReferrer(
		r.Context(), referrerID, level, params, sort,
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Paginated(w, records, params.Page, params.Limit, total)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")

	params, err := h.listParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	var levels []int
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			core.BadRequest(w, "level must be an integer")
			return
		}
		levels = []int{level}
	}

	results, total, err := h.service.Search(
		r.Context(),
		referrerID,
		r.URL.Query().Get("q"),
		levels,
		params,
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Paginated(w, results, params.Page, params.Limit, total)
}

func (h *Handler) ListEligible(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")

	params, err := h.listParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	since, until, err := dateRangeParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	records, total, err := h.service.ListEligible(
		r.Context(),
		referrerID,
		params,
		r.URL.Query().Get("sub_type"),
		since,
		until,
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Paginated(w, records, params.Page, params.Limit, total)
}

func (h *Handler) ListWithSubType(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")

	params, err := h.listParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	level, err := h.levelParam(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}
	if level == 0 {
		level = MinLevel
	}

	since, until, err := dateRangeParams(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	records, total, err := h.service.ListWithSubType(
		r.Context(),
		referrerID,
		level,
		params,
		r.URL.Query().Get("sub_type"),
		since,
		until,
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Paginated(w, records, params.Page, params.Limit, total)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	record, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Created(w, record)
}

func (h *Handler) CreateMany(w http.ResponseWriter, r *http.Request) {
	var req CreateManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	records, err := h.service.CreateMany(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.Created(w, records)
}

func (h *Handler) ArchiveUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	modified, err := h.service.ArchiveByUserID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.OK(w, LifecycleResponse{Modified: modified})
}

func (h *Handler) UnarchiveUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	modified, err := h.service.UnarchiveByUserID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.OK(w, LifecycleResponse{Modified: modified})
}

func (h *Handler) UpdateSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req UpdateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	modified, err := h.service.UpdateDenormalizedUserFields(
		r.Context(),
		userID,
		SnapshotUpdate{
			Name:        req.Name,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
		},
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	core.OK(w, LifecycleResponse{Modified: modified})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrDuplicateKey):
		core.BadRequest(w, "referral already recorded")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "referral")
	default:
		core.InternalServerError(w, err)
	}
}

// listParams reads pagination from the query string. Absent values fall
// back to defaults; explicit values are validated, never corrected, except
// that the page size is capped at the configured maximum.
func (h *Handler) listParams(r *http.Request) (ListParams, error) {
	params := ListParams{
		Page:  parseIntQuery(r, "page", 1),
		Limit: parseIntQuery(r, "limit", h.defaultPageSize),
	}
	if err := params.Validate(); err != nil {
		return ListParams{}, err
	}
	params.Clamp(h.maxPageSize)
	return params, nil
}

func (h *Handler) levelParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("level")
	if raw == "" {
		return 0, nil
	}

	level, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("level must be an integer")
	}
	if !ValidLevel(level) {
		return 0, errors.New("level must be between 1 and 3")
	}

	return level, nil
}

func dateRangeParams(r *http.Request) (since, until *time.Time, err error) {
	since, err = parseDateQuery(r, "since")
	if err != nil {
		return nil, nil, err
	}
	until, err = parseDateQuery(r, "until")
	if err != nil {
		return nil, nil, err
	}
	return since, until, nil
}

func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}

	return nil, errors.New(key + " must be RFC 3339 or YYYY-MM-DD")
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
