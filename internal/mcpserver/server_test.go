package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/testutil"
	"github.com/starford/estatehub/internal/translate"
)

const owner = "local"

func testServer(t *testing.T) (*Server, *dashboard.Service) {
	t.Helper()
	_, objects := testutil.TestUploads(t)
	svc := dashboard.New(testutil.TestDB(t), objects)

	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		t.Fatal(err)
	}
	resolver, err := i18n.NewResolver(bundle, translate.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, resolver, owner), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so dispatch to the handlers.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_projects":  srv.listProjects,
		"list_bin":       srv.listBin,
		"bin_entity":     srv.binEntity,
		"restore_entity": srv.restoreEntity,
		"purge_entity":   srv.purgeEntity,
		"get_dictionary": srv.getDictionary,
		"upload_image":   srv.uploadImage,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seedProject(t *testing.T, svc *dashboard.Service, name string) *models.Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), owner, dashboard.ProjectInput{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBinRestoreFlow(t *testing.T) {
	srv, svc := testServer(t)
	p := seedProject(t, svc, "Marina Towers")
	seedProject(t, svc, "Palm Villas")

	r := callTool(t, srv, "bin_entity", map[string]any{"kind": "project", "id": p.ID})
	if r.IsError || resultText(r) != "binned: project/"+strconv.FormatInt(p.ID, 10) {
		t.Fatalf("bin result = %q", resultText(r))
	}

	r = callTool(t, srv, "list_bin", nil)
	var items []models.BinItem
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("list_bin: %v (%q)", err, resultText(r))
	}
	if len(items) != 1 || items[0].Title != "Marina Towers" {
		t.Fatalf("bin = %+v", items)
	}

	r = callTool(t, srv, "list_projects", map[string]any{})
	if text := resultText(r); strings.Contains(text, "Marina Towers") || !strings.Contains(text, "Palm Villas") {
		t.Fatalf("active projects = %s", text)
	}
	r = callTool(t, srv, "list_projects", map[string]any{"deleted": "binned"})
	if text := resultText(r); !strings.Contains(text, "Marina Towers") {
		t.Fatalf("binned projects = %s", text)
	}

	r = callTool(t, srv, "restore_entity", map[string]any{"kind": "project", "id": p.ID})
	if r.IsError {
		t.Fatalf("restore error: %s", resultText(r))
	}
	if r := callTool(t, srv, "list_bin", nil); resultText(r) != "bin is empty" {
		t.Fatalf("bin after restore = %q", resultText(r))
	}
}

func TestPurge(t *testing.T) {
	srv, svc := testServer(t)
	p := seedProject(t, svc, "Marina Towers")

	r := callTool(t, srv, "purge_entity", map[string]any{"kind": "project", "id": p.ID})
	if r.IsError {
		t.Fatalf("purge error: %s", resultText(r))
	}
	r = callTool(t, srv, "purge_entity", map[string]any{"kind": "project", "id": p.ID})
	if !r.IsError || resultText(r) != "not found" {
		t.Fatalf("second purge = %q", resultText(r))
	}
}

func TestToolArgumentErrors(t *testing.T) {
	srv, _ := testServer(t)
	for _, args := range []map[string]any{
		{"kind": "widget", "id": 1},
		{"kind": "project", "id": 0},
		{"kind": "post"},
	} {
		if r := callTool(t, srv, "bin_entity", args); !r.IsError {
			t.Errorf("bin_entity(%v) succeeded", args)
		}
	}
	if r := callTool(t, srv, "list_projects", map[string]any{"deleted": "maybe"}); !r.IsError {
		t.Error("list_projects accepted a bad filter")
	}
}

func TestGetDictionary(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_dictionary", map[string]any{"locale": "ar"})
	if r.IsError || !strings.Contains(resultText(r), "تم النقل إلى السلة") {
		t.Fatalf("ar dictionary = %.200s", resultText(r))
	}
	if r := callTool(t, srv, "get_dictionary", map[string]any{"locale": "??"}); !r.IsError {
		t.Fatal("expected error for invalid locale")
	}
}

func TestUploadImageDataURI(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	p := seedProject(t, svc, "Marina Towers")
	cs, err := svc.CreateCaseStudy(ctx, owner, dashboard.CaseStudyInput{ProjectID: p.ID, Title: "Launch"})
	if err != nil {
		t.Fatal(err)
	}
	post, err := svc.CreatePost(ctx, owner, dashboard.PostInput{
		CaseStudyID: cs.ID, Platform: models.PlatformInstagram, Content: "Now selling", Locale: "en",
	})
	if err != nil {
		t.Fatal(err)
	}

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG)
	r := callTool(t, srv, "upload_image", map[string]any{"post_id": post.ID, "url": uri, "filename": "hero shot.png"})
	if r.IsError {
		t.Fatalf("upload error: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, dashboard.UploadsPath) {
		t.Fatalf("url = %q", res.URL)
	}

	imgs, err := svc.ListImages(ctx, owner, post.ID)
	if err != nil || len(imgs) != 1 || imgs[0].Filename != "hero_shot.png" {
		t.Fatalf("images = %+v, err = %v", imgs, err)
	}

	r = callTool(t, srv, "upload_image", map[string]any{"post_id": post.ID, "url": "data:text/plain;base64,aGk="})
	if !r.IsError {
		t.Fatal("expected error for unsupported MIME type")
	}
}

func TestBlockedAddr(t *testing.T) {
	blocked := []string{
		"127.0.0.1", "::1", "0.0.0.0", "::",
		"10.0.0.1", "172.16.5.4", "192.168.1.1", "fc00::1",
		"169.254.1.1", "169.254.169.254", "fe80::1",
		"100.64.0.1", "224.0.0.1", "fd00:ec2::254",
	}
	for _, s := range blocked {
		if !blockedAddr(netip.MustParseAddr(s)) {
			t.Errorf("blockedAddr(%s) = false", s)
		}
	}
	for _, s := range []string{"203.0.113.7", "8.8.8.8", "2001:4860:4860::8888"} {
		if blockedAddr(netip.MustParseAddr(s)) {
			t.Errorf("blockedAddr(%s) = true", s)
		}
	}
}

func TestCheckURL(t *testing.T) {
	f := newFetcher()
	for _, raw := range []string{
		"http://127.0.0.1/a.png",
		"http://[::ffff:10.0.0.1]/a.png",
		"http://192.168.1.1/a.png",
		"http://localhost:8080/a.png",
		"http://api.localhost/a.png",
		"http://metadata.google.internal/computeMetadata/v1/",
		"ftp://example.com/a.png",
		"file:///etc/passwd",
	} {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.checkURL(u); err == nil {
			t.Errorf("checkURL(%s) = nil", raw)
		}
	}
	u, _ := url.Parse("https://cdn.example.com/hero.png")
	if err := f.checkURL(u); err != nil {
		t.Errorf("public URL refused: %v", err)
	}
}

func TestCheckDialRefusesEveryInternalAddress(t *testing.T) {
	f := newFetcher()
	for _, addr := range []string{"10.0.0.1:80", "192.168.1.1:443", "169.254.1.1:80", "[::1]:80", "[::ffff:127.0.0.1]:80"} {
		if err := f.checkDial(addr); !errors.Is(err, errBlockedAddr) {
			t.Errorf("checkDial(%s) = %v", addr, err)
		}
	}
	if err := f.checkDial("203.0.113.7:443"); err != nil {
		t.Errorf("public dial refused: %v", err)
	}
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hero", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write(testutil.PNG)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("just text"))
	})
	mux.HandleFunc("/bounce", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.0.0.1/hero", http.StatusFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// The default guard refuses the loopback test server outright.
	if _, err := newFetcher().fetch(context.Background(), ts.URL+"/hero"); !errors.Is(err, errBlockedAddr) {
		t.Fatalf("loopback fetch: got %v, want blocked", err)
	}

	f := newFetcher()
	f.allow = func(a netip.Addr) bool { return a.IsLoopback() }

	img, err := f.fetch(context.Background(), ts.URL+"/hero")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if img.ext != ".png" || len(img.data) != len(testutil.PNG) {
		t.Errorf("image ext = %q, %d bytes", img.ext, len(img.data))
	}
	if _, err := f.fetch(context.Background(), ts.URL+"/notes.txt"); err == nil {
		t.Error("text body accepted as image")
	}
	if _, err := f.fetch(context.Background(), ts.URL+"/bounce"); !errors.Is(err, errBlockedAddr) {
		t.Errorf("redirect to private address: got %v", err)
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"../../hero shot.png": "hero_shot.png",
		"plan.v2.jpg":         "plan.v2.jpg",
		"دار.png":             "___.png",
	}
	for in, want := range cases {
		if got := cleanName(in); got != want {
			t.Errorf("cleanName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := nameFor("https://cdn.example.com/gallery/", ".webp"); !strings.HasSuffix(got, ".webp") {
		t.Errorf("nameFor = %q", got)
	}
}
