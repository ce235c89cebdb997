package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/sse"
	"github.com/starford/estatehub/internal/storage"
	"github.com/starford/estatehub/internal/testutil"
)

type published struct {
	owner string
	typ   string
	ref   models.Ref
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) PublishEntity(owner, typ string, ref models.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{owner, typ, ref})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.typ
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	svc     *Service
	rec     *recorder
	objects storage.Provider
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	_, objects := testutil.TestUploads(t)
	rec := &recorder{}
	opts = append([]Option{WithPublisher(rec)}, opts...)
	return &fixture{
		svc:     New(testutil.TestDB(t), objects, opts...),
		rec:     rec,
		objects: objects,
	}
}

type seeded struct {
	project   *models.Project
	property  *models.Property
	caseStudy *models.CaseStudy
	post      *models.Post
}

func (f *fixture) seed(t *testing.T, owner string) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	var err error
	if s.project, err = f.svc.CreateProject(ctx, owner, ProjectInput{Name: " Palm Residences ", Location: "Dubai"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if s.property, err = f.svc.CreateProperty(ctx, owner, PropertyInput{ProjectID: s.project.ID, Title: "Villa 9", Price: 900000, Currency: "aed", AreaSqm: 420, Bedrooms: 5, Bathrooms: 6}); err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	if s.caseStudy, err = f.svc.CreateCaseStudy(ctx, owner, CaseStudyInput{ProjectID: s.project.ID, Title: "Spring launch"}); err != nil {
		t.Fatalf("CreateCaseStudy: %v", err)
	}
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	if s.post, err = f.svc.CreatePost(ctx, owner, PostInput{CaseStudyID: s.caseStudy.ID, Platform: "Instagram", Content: "Open house Saturday", Locale: "en-GB", ScheduledAt: &at}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return s
}

func TestCreateNormalizesAndPublishes(t *testing.T) {
	f := newFixture(t)
	s := f.seed(t, "alice")

	if s.project.Name != "Palm Residences" || s.project.Owner != "alice" {
		t.Errorf("project = %+v", s.project)
	}
	if s.property.Currency != "AED" {
		t.Errorf("currency = %q", s.property.Currency)
	}
	if s.post.Platform != models.PlatformInstagram || s.post.Locale != "en" {
		t.Errorf("post = %+v", s.post)
	}
	want := []string{sse.EntityCreated, sse.EntityCreated, sse.EntityCreated, sse.EntityCreated}
	if got := f.rec.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, e := range f.rec.events {
		if e.owner != "alice" {
			t.Errorf("event %s published for %q", e.typ, e.owner)
		}
	}
}

func TestCreateCaseStudyWithPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, "alice", ProjectInput{Name: "Harbour"})
	if err != nil {
		t.Fatal(err)
	}
	f.rec.reset()

	// One bad post rejects the whole batch before anything is written.
	_, _, err = f.svc.CreateCaseStudyWithPosts(ctx, "alice", CaseStudyInput{ProjectID: p.ID, Title: "Launch"}, []PostInput{
		{Platform: "x", Content: "one", Locale: "en"},
		{Platform: "fax", Content: "two", Locale: "en"},
	})
	if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), "posts[1]") {
		t.Fatalf("err = %v, want validation on posts[1]", err)
	}
	if page, _ := f.svc.ListCaseStudies(ctx, "alice", ListQuery{}); page.Total != 0 {
		t.Errorf("case studies after rejected batch = %d", page.Total)
	}

	cs, posts, err := f.svc.CreateCaseStudyWithPosts(ctx, "alice", CaseStudyInput{ProjectID: p.ID, Title: " Launch "}, []PostInput{
		{Platform: "X", Content: "one", Locale: "en-US"},
		{Platform: "linkedin", Content: "two", Locale: "ar"},
	})
	if err != nil {
		t.Fatalf("CreateCaseStudyWithPosts: %v", err)
	}
	if cs.Title != "Launch" || len(posts) != 2 || posts[0].Platform != models.PlatformX || posts[0].Locale != "en" || posts[1].CaseStudyID != cs.ID {
		t.Fatalf("case study = %+v, posts = %+v", cs, posts)
	}
	if got := f.rec.types(); len(got) != 3 {
		t.Errorf("events = %v, want one per created row", got)
	}
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")
	f.rec.reset()

	cases := map[string]func() error{
		"empty project name": func() error {
			_, err := f.svc.CreateProject(ctx, "alice", ProjectInput{Name: "   "})
			return err
		},
		"bad currency": func() error {
			_, err := f.svc.CreateProperty(ctx, "alice", PropertyInput{ProjectID: s.project.ID, Title: "x", Currency: "ZZZ"})
			return err
		},
		"negative price": func() error {
			_, err := f.svc.CreateProperty(ctx, "alice", PropertyInput{ProjectID: s.project.ID, Title: "x", Currency: "USD", Price: -1})
			return err
		},
		"missing project": func() error {
			_, err := f.svc.CreateCaseStudy(ctx, "alice", CaseStudyInput{Title: "x"})
			return err
		},
		"unknown platform": func() error {
			_, err := f.svc.CreatePost(ctx, "alice", PostInput{CaseStudyID: s.caseStudy.ID, Platform: "myspace", Content: "hi", Locale: "en"})
			return err
		},
		"bad locale": func() error {
			_, err := f.svc.UpdatePost(ctx, "alice", s.post.ID, PostInput{Platform: "x", Content: "hi", Locale: "!!"})
			return err
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
	if got := f.rec.types(); len(got) != 0 {
		t.Errorf("validation failures published events: %v", got)
	}
}

func TestForeignTenantSeesNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")
	ref := s.property.Ref()

	if _, err := f.svc.GetProperty(ctx, "bob", ref.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if _, err := f.svc.UpdateProject(ctx, "bob", s.project.ID, ProjectInput{Name: "mine"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update: %v", err)
	}
	if _, err := f.svc.Bin(ctx, "bob", ref); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Bin: %v", err)
	}
	if err := f.svc.Purge(ctx, "bob", ref); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Purge: %v", err)
	}
	if _, err := f.svc.CreatePost(ctx, "bob", PostInput{CaseStudyID: s.caseStudy.ID, Platform: "x", Content: "hi", Locale: "en"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("CreatePost under foreign case study: %v", err)
	}
	if _, err := f.svc.ListPosts(ctx, "bob", ListQuery{Parent: s.caseStudy.ID}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ListPosts of foreign case study: %v", err)
	}

	page, err := f.svc.ListProjects(ctx, "bob", ListQuery{})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Errorf("bob sees %d projects", page.Total)
	}
}

func TestBinnedParentMakesChildrenReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")

	if _, err := f.svc.Bin(ctx, "alice", s.project.Ref()); err != nil {
		t.Fatalf("Bin: %v", err)
	}

	d, err := f.svc.GetPost(ctx, "alice", s.post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if d.Editable {
		t.Error("post under binned project should not be editable")
	}
	if d.Item.DeletedAt != nil {
		t.Error("binning the project must not touch the post's own deleted_at")
	}
	if _, err := f.svc.UpdatePost(ctx, "alice", s.post.ID, PostInput{Platform: "x", Content: "edit", Locale: "en"}); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("UpdatePost: got %v, want ErrPrecondition", err)
	}
	if _, err := f.svc.CreateProperty(ctx, "alice", PropertyInput{ProjectID: s.project.ID, Title: "Late", Currency: "USD"}); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("CreateProperty under binned project: got %v, want ErrPrecondition", err)
	}

	state, active, err := f.svc.State(ctx, "alice", s.caseStudy.Ref())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != lifecycle.Active || active {
		t.Errorf("case study state = %s, effectively active = %v", state, active)
	}

	if _, err := f.svc.Restore(ctx, "alice", s.project.Ref()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	d, _ = f.svc.GetPost(ctx, "alice", s.post.ID)
	if !d.Editable {
		t.Error("post should be editable after restoring its project")
	}
}

func TestBinRestoreEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")
	f.rec.reset()

	if _, err := f.svc.Bin(ctx, "alice", s.post.Ref()); err != nil {
		t.Fatalf("Bin: %v", err)
	}
	// Idempotent by default: no second event.
	rec, err := f.svc.Bin(ctx, "alice", s.post.Ref())
	if err != nil {
		t.Fatalf("Bin again: %v", err)
	}
	if rec.Binned() == nil {
		t.Error("post should stay binned")
	}
	if _, err := f.svc.Restore(ctx, "alice", s.post.Ref()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	want := []string{sse.EntityBinned, sse.EntityRestored}
	if got := f.rec.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
	if f.rec.events[0].owner != "alice" || f.rec.events[0].ref != s.post.Ref() {
		t.Errorf("event = %+v", f.rec.events[0])
	}
}

func TestStrictPolicy(t *testing.T) {
	f := newFixture(t, WithPolicy(lifecycle.Strict))
	ctx := context.Background()
	s := f.seed(t, "alice")

	if _, err := f.svc.Restore(ctx, "alice", s.property.Ref()); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("Restore active: got %v, want ErrPrecondition", err)
	}
	if _, err := f.svc.Bin(ctx, "alice", s.property.Ref()); err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if _, err := f.svc.Bin(ctx, "alice", s.property.Ref()); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("Bin binned: got %v, want ErrPrecondition", err)
	}
}

func TestBinListingAndClock(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 789_000_000, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()
	s := f.seed(t, "alice")

	if _, err := f.svc.Bin(ctx, "alice", s.caseStudy.Ref()); err != nil {
		t.Fatal(err)
	}
	items, err := f.svc.BinListing(ctx, "alice")
	if err != nil {
		t.Fatalf("BinListing: %v", err)
	}
	if len(items) != 1 || items[0].Ref != s.caseStudy.Ref() || !items[0].DeletedAt.Equal(at) {
		t.Errorf("bin = %+v", items)
	}
	empty, err := f.svc.BinListing(ctx, "bob")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("bob bin = %v, %v", empty, err)
	}
}

func TestPurgeReleasesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")

	img, err := f.svc.UploadImage(ctx, "alice", s.post.ID, "front.png", bytes.NewReader(testutil.PNG))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	f.rec.reset()

	if err := f.svc.Purge(ctx, "alice", s.project.Ref()); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if ok, _ := f.objects.Exists(img.Name); ok {
		t.Error("image object survived purge")
	}
	if _, err := f.svc.GetPost(ctx, "alice", s.post.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("post survived purge: %v", err)
	}
	if got := f.rec.types(); len(got) != 1 || got[0] != sse.EntityPurged {
		t.Errorf("events = %v", got)
	}
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t, WithMaxImageBytes(64))
	ctx := context.Background()
	s := f.seed(t, "alice")
	other := f.seed(t, "alice")

	img, err := f.svc.UploadImage(ctx, "alice", s.post.ID, "../../lobby.png", bytes.NewReader(testutil.PNG))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if img.Filename != "lobby.png" || !strings.HasSuffix(img.Name, ".png") || img.URL != UploadsPath+img.Name {
		t.Errorf("image = %+v", img)
	}

	if _, err := f.svc.UploadImage(ctx, "alice", s.post.ID, "lobby.png", bytes.NewReader(testutil.PNG)); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate: got %v, want ErrAlreadyExists", err)
	}
	if ok, _ := f.objects.Exists(img.Name); !ok {
		t.Error("failed duplicate must not drop the shared object")
	}

	// Same bytes on another post share the object.
	shared, err := f.svc.UploadImage(ctx, "alice", other.post.ID, "copy.png", bytes.NewReader(testutil.PNG))
	if err != nil {
		t.Fatalf("UploadImage shared: %v", err)
	}
	if shared.Name != img.Name {
		t.Errorf("shared name = %q, want %q", shared.Name, img.Name)
	}
	if err := f.svc.DeleteImage(ctx, "alice", img.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if ok, _ := f.objects.Exists(img.Name); !ok {
		t.Error("object still referenced by another post was deleted")
	}

	if _, err := f.svc.UploadImage(ctx, "alice", s.post.ID, "notes.txt", strings.NewReader("plain text")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("text upload: got %v, want ErrValidation", err)
	}
	big := append(append([]byte{}, testutil.PNG...), make([]byte, 100)...)
	if _, err := f.svc.UploadImage(ctx, "alice", s.post.ID, "big.png", bytes.NewReader(big)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("oversized upload: got %v, want ErrValidation", err)
	}
	if _, err := f.svc.UploadImage(ctx, "bob", s.post.ID, "x.png", bytes.NewReader(testutil.PNG)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign upload: got %v, want ErrNotFound", err)
	}

	imgs, err := f.svc.ListImages(ctx, "alice", other.post.ID)
	if err != nil || len(imgs) != 1 || imgs[0].URL == "" {
		t.Errorf("ListImages = %+v, %v", imgs, err)
	}
}

func TestCalendarAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "alice")
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	entries, err := f.svc.Calendar(ctx, "alice", from, from.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(entries) != 1 || entries[0].Post.ID != s.post.ID || entries[0].ProjectName != "Palm Residences" {
		t.Errorf("entries = %+v", entries)
	}
	if _, err := f.svc.Calendar(ctx, "alice", from, from); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty range: %v", err)
	}
	if _, err := f.svc.Calendar(ctx, "alice", from, from.AddDate(2, 0, 0)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("long range: %v", err)
	}

	hits, err := f.svc.Search(ctx, "alice", "villa", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Ref != s.property.Ref() {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := f.svc.Search(ctx, "alice", "  ", 10); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank search: %v", err)
	}
}
