// Package models defines the domain types for estatehub.
package models

import (
	"fmt"
	"time"
)

// Kind names one of the soft-deletable entity kinds.
type Kind string

const (
	KindProject   Kind = "project"
	KindProperty  Kind = "property"
	KindCaseStudy Kind = "case_study"
	KindPost      Kind = "post"
)

// Kinds lists every soft-deletable kind, parents before children.
var Kinds = []Kind{KindProject, KindProperty, KindCaseStudy, KindPost}

// ParseKind accepts the canonical kind name and the URL segment form.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "project", "projects":
		return KindProject, nil
	case "property", "properties":
		return KindProperty, nil
	case "case_study", "case-study", "case-studies", "case_studies":
		return KindCaseStudy, nil
	case "post", "posts":
		return KindPost, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Ref identifies one entity.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Record is the shape shared by every soft-deletable entity.
type Record interface {
	Ref() Ref
	// Binned returns the soft-delete timestamp, nil while active.
	Binned() *time.Time
	// ParentRef returns the owning entity; false for roots.
	ParentRef() (Ref, bool)
}

// Project is the root entity owned by a tenant.
type Project struct {
	ID          int64      `json:"id"`
	Owner       string     `json:"owner"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func (p *Project) Ref() Ref { return Ref{Kind: KindProject, ID: p.ID} }
func (p *Project) Binned() *time.Time { return p.DeletedAt }
func (p *Project) ParentRef() (Ref, bool) { return Ref{}, false }

// Property is a unit listed under a project.
type Property struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	Currency    string     `json:"currency"`
	AreaSqm     float64    `json:"area_sqm"`
	Bedrooms    int        `json:"bedrooms"`
	Bathrooms   int        `json:"bathrooms"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func (p *Property) Ref() Ref { return Ref{Kind: KindProperty, ID: p.ID} }
func (p *Property) Binned() *time.Time { return p.DeletedAt }
func (p *Property) ParentRef() (Ref, bool) {
	return Ref{Kind: KindProject, ID: p.ProjectID}, true
}

// CaseStudy is a marketing narrative for a project.
type CaseStudy struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Audience  string     `json:"audience"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func (c *CaseStudy) Ref() Ref { return Ref{Kind: KindCaseStudy, ID: c.ID} }
func (c *CaseStudy) Binned() *time.Time { return c.DeletedAt }
func (c *CaseStudy) ParentRef() (Ref, bool) {
	return Ref{Kind: KindProject, ID: c.ProjectID}, true
}

// Platform is a social network a post is published to.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformX         Platform = "x"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists the supported platforms.
var Platforms = []Platform{PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformX, PlatformTikTok}

// Post is a scheduled social-media post derived from a case study.
type Post struct {
	ID          int64      `json:"id"`
	CaseStudyID int64      `json:"case_study_id"`
	Platform    Platform   `json:"platform"`
	Content     string     `json:"content"`
	Locale      string     `json:"locale"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Published   bool       `json:"published"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func (p *Post) Ref() Ref { return Ref{Kind: KindPost, ID: p.ID} }
func (p *Post) Binned() *time.Time { return p.DeletedAt }
func (p *Post) ParentRef() (Ref, bool) {
	return Ref{Kind: KindCaseStudy, ID: p.CaseStudyID}, true
}

// Image is a stored picture attached to a post. Images are not binned; they
// go away with their post.
type Image struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// BinItem is one row of the cross-kind bin listing.
type BinItem struct {
	Ref       Ref       `json:"ref"`
	Title     string    `json:"title"`
	DeletedAt time.Time `json:"deleted_at"`
}

// CalendarEntry is a scheduled post with its owning context.
type CalendarEntry struct {
	Post        Post   `json:"post"`
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"project_name"`
	CaseStudy   string `json:"case_study"`
}

// SearchHit is one match of the dashboard search.
type SearchHit struct {
	Ref     Ref    `json:"ref"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// StreamToken is a single-use handle for a pending creation workflow.
type StreamToken struct {
	Token     string    `json:"token"`
	Owner     string    `json:"-"`
	Kind      Kind      `json:"kind"`
	Payload   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
