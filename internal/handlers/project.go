package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	multipartOverhead  = 1 << 20

	formFieldTitle     = "title"
	formFieldDesc      = "description"
	formFieldTechStack = "tech_stack"
	formFieldGithubURL = "github_url"
	formFieldLiveURL   = "live_url"
	formFieldImage     = "image"

	detailProjectNotFound = "Project not found"

	imageCacheControl = "public, max-age=300"
)

var errBodyTooLarge = errors.New("request body too large")

// ProjectService is the project use-case surface the handler depends on.
type ProjectService interface {
	List(ctx context.Context, offset, limit int) ([]types.Project, int, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, in services.ProjectCreate) (types.Project, error)
	Update(ctx context.Context, id int, in services.ProjectUpdate) (types.Project, error)
	Delete(ctx context.Context, id int) (types.Project, error)
	Image(ctx context.Context, id int) (services.ProjectImage, error)
}

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projects      ProjectService
	maxImageBytes int64
}

// NewProjectHandler constructs a handler. maxImageBytes bounds the request body.
func NewProjectHandler(projects ProjectService, maxImageBytes int64) *ProjectHandler {
	return &ProjectHandler{projects: projects, maxImageBytes: maxImageBytes}
}

// ProjectRouter registers project routes on the given router.
func ProjectRouter(r chi.Router, h *ProjectHandler, gk *Gatekeeper) {
	admin := gk.Require(auth.RequireAdmin)

	r.Get("/", h.ListProjects)
	r.With(admin).Post("/", h.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.GetProject)
		r.With(admin).Put("/", h.UpdateProject)
		r.With(admin).Delete("/", h.DeleteProject)
		r.Get("/image", h.GetProjectImage)
	})
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.projects.List(r.Context(), skip, limit)
	if err != nil {
		writeInternalError(w, r, err, "failed to list projects")
		return
	}

	w.Header().Set(headerTotalCount, strconv.Itoa(total))
	writeJSON(w, http.StatusOK, items)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, detailProjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseProjectForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}
	defer form.cleanup()

	in := form.update
	if in.Title == nil || in.Description == nil || in.TechStack == nil {
		writeError(w, http.StatusUnprocessableEntity, "title, description and tech_stack are required")
		return
	}

	created, err := h.projects.Create(r.Context(), services.ProjectCreate{
		Title:       *in.Title,
		Description: *in.Description,
		TechStack:   *in.TechStack,
		GithubURL:   in.GithubURL,
		LiveURL:     in.LiveURL,
		Image:       in.Image,
	})
	if err != nil {
		writeServiceError(w, r, err, detailProjectNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := h.parseProjectForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}
	defer form.cleanup()

	updated, err := h.projects.Update(r.Context(), id, form.update)
	if err != nil {
		writeServiceError(w, r, err, detailProjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.projects.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, detailProjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

// GetProjectImage streams the project's cover image from object storage.
func (h *ProjectHandler) GetProjectImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := h.projects.Image(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, detailProjectNotFound)
		return
	}
	defer img.Content.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, img.Content); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Int("project.id", id).Msg("project image stream interrupted")
	}
}

// ProjectRequest is the JSON form of a project create/update request.
type ProjectRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	TechStack   *[]string `json:"tech_stack"`
	GithubURL   *string   `json:"github_url"`
	LiveURL     *string   `json:"live_url"`
}

type projectForm struct {
	update  services.ProjectUpdate
	cleanup func()
}

// parseProjectForm reads a multipart form (fields plus an optional image) or
// a JSON body. Absent fields stay nil.
func (h *ProjectHandler) parseProjectForm(w http.ResponseWriter, r *http.Request) (projectForm, error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req ProjectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return projectForm{}, errors.New("invalid request")
		}
		return projectForm{
			update: services.ProjectUpdate{
				Title:       req.Title,
				Description: req.Description,
				TechStack:   req.TechStack,
				GithubURL:   req.GithubURL,
				LiveURL:     req.LiveURL,
			},
			cleanup: noop,
		}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return projectForm{}, errBodyTooLarge
		}
		return projectForm{}, errors.New("invalid multipart form")
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	var in services.ProjectUpdate
	in.Title = formValue(form, formFieldTitle)
	in.Description = formValue(form, formFieldDesc)
	in.GithubURL = formValue(form, formFieldGithubURL)
	in.LiveURL = formValue(form, formFieldLiveURL)

	if values, ok := form.Value[formFieldTechStack]; ok {
		stack, err := parseTechStack(values)
		if err != nil {
			cleanup()
			return projectForm{}, err
		}
		in.TechStack = &stack
	}

	files := form.File[formFieldImage]
	switch {
	case len(files) > 1:
		cleanup()
		return projectForm{}, errors.New("only one image file is allowed")
	case len(files) == 1:
		file, err := files[0].Open()
		if err != nil {
			cleanup()
			return projectForm{}, errors.New("failed to read image")
		}
		in.Image = &services.ImageUpload{Filename: files[0].Filename, Content: file}
		cleanup = func() {
			_ = file.Close()
			_ = form.RemoveAll()
		}
	}

	return projectForm{update: in, cleanup: cleanup}, nil
}

func writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Image is too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func formValue(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// parseTechStack accepts a JSON array, a comma-separated list or repeated fields.
func parseTechStack(values []string) ([]string, error) {
	if len(values) == 1 {
		raw := strings.TrimSpace(values[0])
		if strings.HasPrefix(raw, "[") {
			var stack []string
			if err := json.Unmarshal([]byte(raw), &stack); err != nil {
				return nil, errors.New("invalid tech_stack")
			}
			return stack, nil
		}
		return strings.Split(raw, ","), nil
	}
	return values, nil
}
