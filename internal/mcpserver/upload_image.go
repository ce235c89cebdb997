package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxImageFetch = 10 << 20
	maxRedirects  = 5
	fetchTimeout  = 30 * time.Second
)

var (
	imageExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

	errBlockedAddr = errors.New("address not allowed")

	// Ranges outside what netip classifies that still reach internal hosts.
	blockedPrefixes = []netip.Prefix{
		netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
		netip.MustParsePrefix("192.0.0.0/24"),
		netip.MustParsePrefix("198.18.0.0/15"),
	}

	blockedHostnames = map[string]struct{}{
		"localhost":                {},
		"metadata.google.internal": {},
	}
)

type uploadInput struct {
	PostID   int64  `json:"post_id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type uploadResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// remoteImage is a downloaded or decoded image body with its extension.
type remoteImage struct {
	data []byte
	ext  string
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in uploadInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if in.URL == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	var (
		img *remoteImage
		err error
	)
	if strings.HasPrefix(in.URL, "data:") {
		img, err = imageFromDataURI(in.URL)
	} else {
		img, err = s.fetcher.fetch(ctx, in.URL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := in.Filename
	if name == "" {
		name = nameFor(in.URL, img.ext)
	}
	stored, err := s.svc.UploadImage(ctx, s.owner, in.PostID, cleanName(name), bytes.NewReader(img.data))
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.Marshal(uploadResult{ID: stored.ID, Name: stored.Name, URL: stored.URL})
	return mcp.NewToolResultText(string(out)), nil
}

// imageFromDataURI decodes a base64 data:image/...;base64,<payload> URI.
func imageFromDataURI(uri string) (*remoteImage, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("invalid data URI: missing comma")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errors.New("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxImageFetch {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", len(data), maxImageFetch)
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")
	ext, ok := imageExt[mediaType]
	if !ok {
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}
	return &remoteImage{data: data, ext: ext}, nil
}

// fetcher downloads images over http(s) from public addresses only. Every
// address the client dials is checked, so redirects and DNS answers that
// point inside the network are refused.
type fetcher struct {
	client *http.Client
	// allow overrides the address check; nil means public addresses only.
	allow func(netip.Addr) bool
}

func newFetcher() *fetcher {
	f := &fetcher{}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			return f.checkDial(address)
		},
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	f.client = &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return f.checkURL(req.URL)
		},
	}
	return f
}

func (f *fetcher) permitted(addr netip.Addr) bool {
	if f.allow != nil {
		return f.allow(addr)
	}
	return !blockedAddr(addr)
}

func (f *fetcher) checkDial(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, errBlockedAddr)
	}
	if addr := ap.Addr().Unmap(); !f.permitted(addr) {
		return fmt.Errorf("dial %s: %w", addr, errBlockedAddr)
	}
	return nil
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (*remoteImage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddr) {
			return nil, fmt.Errorf("blocked host %s: %w", u.Hostname(), errBlockedAddr)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageFetch+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageFetch {
		return nil, fmt.Errorf("image too large (max %d bytes)", maxImageFetch)
	}
	// Trust the bytes over the Content-Type header.
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	ext, ok := imageExt[sniffed]
	if !ok {
		return nil, fmt.Errorf("unsupported media type %q", sniffed)
	}
	return &remoteImage{data: data, ext: ext}, nil
}

// checkURL rejects non-http schemes and hosts that are internal by name or
// by literal address. Resolved addresses are checked again at dial time.
func (f *fetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (only http and https)", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return errors.New("invalid URL: missing host")
	}
	if _, ok := blockedHostnames[host]; ok || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("blocked host %s: %w", host, errBlockedAddr)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !f.permitted(addr.Unmap()) {
		return fmt.Errorf("blocked host %s: %w", host, errBlockedAddr)
	}
	return nil
}

// blockedAddr reports whether addr is loopback, private, link-local,
// multicast, unspecified or another internal range.
func blockedAddr(addr netip.Addr) bool {
	if !addr.IsValid() || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// nameFor picks the stored file name: the URL's last path segment when it
// has an extension, otherwise a random name with ext.
func nameFor(rawURL, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(rawURL, "data:") {
		if u, err := url.Parse(rawURL); err == nil {
			if base := path.Base(u.Path); path.Ext(base) != "" {
				return base
			}
		}
	}
	return uuid.NewString() + ext
}

// cleanName drops directories and replaces characters outside [A-Za-z0-9._-].
func cleanName(name string) string {
	name = unsafeNameRe.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	return name
}
