package types

import "time"

// Project is a portfolio entry shown on the public site.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the project.
	Title string `json:"title" db:"title"`

	// Description is the long-form project write-up.
	Description string `json:"description" db:"description"`

	// TechStack lists the technologies used, in display order.
	TechStack []string `json:"tech_stack" db:"tech_stack"`

	// GithubURL links to the source repository, if public.
	GithubURL *string `json:"github_url" db:"github_url"`

	// LiveURL links to a running deployment, if any.
	LiveURL *string `json:"live_url" db:"live_url"`

	// ImagePath is the object key of the cover image in object storage.
	ImagePath *string `json:"image_path" db:"image_path"`

	// ImageURL is the public URL of the cover image.
	ImageURL *string `json:"image_url" db:"image_url"`

	// CreatedAt is the timestamp at which the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
