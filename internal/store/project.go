package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/nyxus-portfolio/apiserver/types"
)

// ProjectRepository handles persistence for portfolio projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, title, description, tech_stack, github_url, live_url, image_path, image_url, created_at, updated_at`

func scanProject(row rowScanner) (types.Project, error) {
	var project types.Project
	var techStack pq.StringArray
	err := row.Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&techStack,
		&project.GithubURL,
		&project.LiveURL,
		&project.ImagePath,
		&project.ImageURL,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return types.Project{}, err
	}
	project.TechStack = []string(techStack)
	if project.TechStack == nil {
		project.TechStack = []string{}
	}
	return project, nil
}

func (r *ProjectRepository) List(ctx context.Context, offset, limit int) ([]types.Project, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	const countQuery = `SELECT COUNT(1) FROM projects`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + projectColumns + `
		FROM projects
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	const query = `
		INSERT INTO projects (title, description, tech_stack, github_url, live_url, image_path, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		project.Title,
		project.Description,
		pq.Array(project.TechStack),
		project.GithubURL,
		project.LiveURL,
		project.ImagePath,
		project.ImageURL,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, translateWriteErr(err)
	}
	return project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()
	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	const query = `
		UPDATE projects
		SET title = $1,
			description = $2,
			tech_stack = $3,
			github_url = $4,
			live_url = $5,
			image_path = $6,
			image_url = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Title,
		project.Description,
		pq.Array(project.TechStack),
		project.GithubURL,
		project.LiveURL,
		project.ImagePath,
		project.ImageURL,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, translateWriteErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
