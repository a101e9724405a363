package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/internal/storage"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	projectImagePrefix = "projects"

	maxProjectTitleLength = 255
	maxProjectLinkLength  = 512
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Project, int, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// ImageStore is the part of object storage the project service needs.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ImageUpload is a cover image received with a create or update request.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ProjectImage is a stored cover image opened for reading.
type ProjectImage struct {
	Content     io.ReadCloser
	ContentType string
}

// ProjectCreate holds the fields of a new project.
type ProjectCreate struct {
	Title       string
	Description string
	TechStack   []string
	GithubURL   *string
	LiveURL     *string
	Image       *ImageUpload
}

// ProjectUpdate changes only the fields that are set. An empty link clears it.
type ProjectUpdate struct {
	Title       *string
	Description *string
	TechStack   *[]string
	GithubURL   *string
	LiveURL     *string
	Image       *ImageUpload
}

// ProjectService encapsulates project use-cases.
type ProjectService struct {
	repo          ProjectRepository
	images        ImageStore
	maxImageBytes int64
	now           func() time.Time
}

// NewProjectService builds the service. images may be nil, in which case
// requests carrying an image fail with ErrUploadsDisabled.
func NewProjectService(repo ProjectRepository, images ImageStore, maxImageBytes int64) *ProjectService {
	return &ProjectService{repo: repo, images: images, maxImageBytes: maxImageBytes, now: time.Now}
}

func (s *ProjectService) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, offset, clampLimit(limit))
}

func (s *ProjectService) Get(ctx context.Context, id int) (types.Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProjectService) Create(ctx context.Context, in ProjectCreate) (types.Project, error) {
	project := types.Project{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		TechStack:   cleanList(in.TechStack),
	}
	if err := checkTitle(project.Title); err != nil {
		return types.Project{}, err
	}
	if project.Description == "" {
		return types.Project{}, invalid("description", "must not be empty")
	}
	var err error
	if project.GithubURL, err = optionalLink("github_url", in.GithubURL); err != nil {
		return types.Project{}, err
	}
	if project.LiveURL, err = optionalLink("live_url", in.LiveURL); err != nil {
		return types.Project{}, err
	}

	var uploaded string
	if in.Image != nil {
		key, url, err := s.uploadImage(ctx, *in.Image)
		if err != nil {
			return types.Project{}, err
		}
		uploaded = key
		project.ImagePath = &key
		project.ImageURL = &url
	}

	created, err := s.repo.Create(ctx, project)
	if err != nil {
		s.discardImage(ctx, uploaded)
		return types.Project{}, err
	}
	return created, nil
}

func (s *ProjectService) Update(ctx context.Context, id int, in ProjectUpdate) (types.Project, error) {
	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}

	if in.Title != nil {
		project.Title = strings.TrimSpace(*in.Title)
		if err := checkTitle(project.Title); err != nil {
			return types.Project{}, err
		}
	}
	if in.Description != nil {
		if project.Description = strings.TrimSpace(*in.Description); project.Description == "" {
			return types.Project{}, invalid("description", "must not be empty")
		}
	}
	if in.TechStack != nil {
		project.TechStack = cleanList(*in.TechStack)
	}
	if in.GithubURL != nil {
		if project.GithubURL, err = optionalLink("github_url", in.GithubURL); err != nil {
			return types.Project{}, err
		}
	}
	if in.LiveURL != nil {
		if project.LiveURL, err = optionalLink("live_url", in.LiveURL); err != nil {
			return types.Project{}, err
		}
	}

	var uploaded, previous string
	if in.Image != nil {
		key, url, err := s.uploadImage(ctx, *in.Image)
		if err != nil {
			return types.Project{}, err
		}
		uploaded = key
		if project.ImagePath != nil {
			previous = *project.ImagePath
		}
		project.ImagePath = &key
		project.ImageURL = &url
	}

	updated, err := s.repo.Update(ctx, project)
	if err != nil {
		s.discardImage(ctx, uploaded)
		return types.Project{}, err
	}
	s.discardImage(ctx, previous)
	return updated, nil
}

// Delete removes the project and returns it as it was before deletion.
func (s *ProjectService) Delete(ctx context.Context, id int) (types.Project, error) {
	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return types.Project{}, err
	}
	if project.ImagePath != nil {
		s.discardImage(ctx, *project.ImagePath)
	}
	return project, nil
}

// Image opens the stored cover image of project id. The caller closes Content.
func (s *ProjectService) Image(ctx context.Context, id int) (ProjectImage, error) {
	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProjectImage{}, err
	}
	if project.ImagePath == nil {
		return ProjectImage{}, ErrImageNotFound
	}
	if s.images == nil {
		return ProjectImage{}, ErrUploadsDisabled
	}

	content, err := s.images.Get(ctx, *project.ImagePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return ProjectImage{}, ErrImageNotFound
	}
	if err != nil {
		return ProjectImage{}, fmt.Errorf("open image: %w", err)
	}

	contentType := mime.TypeByExtension(path.Ext(*project.ImagePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return ProjectImage{Content: content, ContentType: contentType}, nil
}

func (s *ProjectService) uploadImage(ctx context.Context, img ImageUpload) (string, string, error) {
	if s.images == nil {
		return "", "", ErrUploadsDisabled
	}

	data, err := io.ReadAll(io.LimitReader(img.Content, s.maxImageBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return "", "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return "", "", ErrInvalidImage
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", ErrInvalidImage
	}

	key := storage.ObjectKey(projectImagePrefix, imageExtension(img.Filename, contentType), s.now())
	if err := s.images.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", "", fmt.Errorf("store image: %w", err)
	}
	return key, s.images.URL(key), nil
}

// discardImage deletes key if set. Failures are logged, not returned.
func (s *ProjectService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Warn().Err(err).Str("object.key", key).Msg("unable to delete project image")
	}
}

func imageExtension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && mime.TypeByExtension(ext) == contentType {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func checkTitle(title string) error {
	switch {
	case title == "":
		return invalid("title", "must not be empty")
	case utf8.RuneCountInString(title) > maxProjectTitleLength:
		return invalid("title", "is too long")
	}
	return nil
}

func optionalLink(field string, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > maxProjectLinkLength {
		return nil, invalid(field, "is too long")
	}
	if !validLink(v) {
		return nil, invalid(field, "must be an absolute http(s) URL")
	}
	return &v, nil
}
