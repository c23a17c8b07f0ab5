package model

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an immutable identity value. Updates produce a new value with the
// same ID.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

// NewUser creates a user with a generated id.
func NewUser(name string) User {
	return User{
		ID:        "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:      name,
		CreatedAt: Timestamp(time.Now()),
		Tags:      []string{},
	}
}

// WithTag returns a copy of u carrying tag. The receiver is not modified.
func (u User) WithTag(tag string) User {
	if containsString(u.Tags, tag) {
		return u
	}
	tags := make([]string, 0, len(u.Tags)+1)
	tags = append(tags, u.Tags...)
	u.Tags = append(tags, tag)
	return u
}

// Validate checks the required fields of a user.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if u.Name == "" {
		return fmt.Errorf("%w: user name is required", ErrValidation)
	}
	return nil
}

// UnmarshalJSON decodes a user and normalizes its fields.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*u = User(a)
	u.CreatedAt = Timestamp(u.CreatedAt)
	if u.Tags == nil {
		u.Tags = []string{}
	}
	return u.Validate()
}

// Project identifies a codebase by a one-way hash of its absolute path.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PathHash      string    `json:"path_hash"`
	LastKnownPath string    `json:"last_known_path"`
	CreatedAt     time.Time `json:"created_at"`
	Tags          []string  `json:"tags"`
}

// projectIDLen is the number of hash characters used in a project id.
const projectIDLen = 12

// NewProject creates a project for absPath whose identity is pathHash.
func NewProject(absPath, pathHash string) Project {
	name := filepath.Base(strings.TrimRight(absPath, `/\`))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "root"
	}
	idPart := pathHash
	if len(idPart) > projectIDLen {
		idPart = idPart[:projectIDLen]
	}
	return Project{
		ID:            "proj_" + idPart,
		Name:          name,
		PathHash:      pathHash,
		LastKnownPath: absPath,
		CreatedAt:     Timestamp(time.Now()),
		Tags:          []string{},
	}
}

// WithTag returns a copy of p carrying tag. The receiver is not modified.
func (p Project) WithTag(tag string) Project {
	if containsString(p.Tags, tag) {
		return p
	}
	tags := make([]string, 0, len(p.Tags)+1)
	tags = append(tags, p.Tags...)
	p.Tags = append(tags, tag)
	return p
}

// Validate checks the required fields of a project.
func (p Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: project id is required", ErrValidation)
	}
	if p.PathHash == "" {
		return fmt.Errorf("%w: project path_hash is required", ErrValidation)
	}
	return nil
}

// UnmarshalJSON decodes a project and normalizes its fields.
func (p *Project) UnmarshalJSON(data []byte) error {
	type alias Project
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Project(a)
	p.CreatedAt = Timestamp(p.CreatedAt)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p.Validate()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
