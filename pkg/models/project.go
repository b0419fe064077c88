package models

import "time"

// ProjectType distinguishes projects that serve files from a managed
// directory from projects that redirect to an external URL. The type is
// fixed at creation and never changes.
type ProjectType string

const (
	TypeHosted   ProjectType = "hosted"
	TypeExternal ProjectType = "external"
)

// RuntimeState is the lifecycle state of a project's container runtime
// instance. Only meaningful for hosted projects.
type RuntimeState string

const (
	RuntimeStopped RuntimeState = "stopped"
	RuntimeRunning RuntimeState = "running"
)

// Project is a registered static site or external-link entry.
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        ProjectType `json:"type"`

	// ExternalURL is set only for external projects.
	ExternalURL string `json:"externalUrl,omitempty"`

	// PublicHash is the short token used in public /p/{hash} URLs.
	// Present only for hosted projects; never interchangeable with ID.
	PublicHash string `json:"publicHash,omitempty"`

	RuntimeState RuntimeState `json:"runtimeState,omitempty"`

	// Port and AccessURL are present only while RuntimeState is running.
	Port      string `json:"port,omitempty"`
	AccessURL string `json:"accessUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectView is a Project enriched with state derived from the project
// directory. View fields are computed per request and never persisted.
type ProjectView struct {
	Project
	HasFiles bool `json:"hasFiles"`
	IsLive   bool `json:"isLive"`
}

// PublicProject is the reduced shape exposed on the public gallery.
type PublicProject struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Type         ProjectType  `json:"type"`
	PublicHash   string       `json:"publicHash,omitempty"`
	ExternalURL  string       `json:"externalUrl,omitempty"`
	RuntimeState RuntimeState `json:"runtimeState,omitempty"`
	IsLive       bool         `json:"isLive"`
}

// FileInfo describes a file inside a hosted project's directory. Files are
// discovered by listing the directory, never tracked in the registry.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        ProjectType `json:"type"`
	ExternalURL string      `json:"externalUrl"`
}

// ProjectUpdate carries the mutable fields of a project. Nil fields are
// left untouched. Type is decoded only so update requests that try to
// change it can be rejected.
type ProjectUpdate struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	ExternalURL *string      `json:"externalUrl"`
	Type        *ProjectType `json:"type"`
}

// RenameFileRequest is the payload for renaming a project file.
type RenameFileRequest struct {
	NewName string `json:"newName"`
}

// LoginRequest is the payload for admin login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
