package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/filelinkpro/filelink/internal/storage"
)

func TestMountPoint(t *testing.T) {
	setupDB(t)
	user := createUser(t, "mount@example.com", false)
	site := createWebsite(t, user, "mount-test")

	root := addSiteFile(t, site, "index.html", "index.html")
	nested := addSiteFile(t, site, "index.html", "docs/v2/index.html")

	if got := MountPoint(site.Slug, root); got != "/site/mount-test/assets/" {
		t.Errorf("root mount = %q, want /site/mount-test/assets/", got)
	}
	if got := MountPoint(site.Slug, nested); got != "/site/mount-test/assets/docs/v2/" {
		t.Errorf("nested mount = %q, want /site/mount-test/assets/docs/v2/", got)
	}
}

func TestInjectBaseTag(t *testing.T) {
	base := "/site/demo/assets/"
	tag := `<base href="/site/demo/assets/">`

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain head",
			in:   "<html><head><title>x</title></head><body></body></html>",
			want: "<html><head>" + tag + "<title>x</title></head><body></body></html>",
		},
		{
			name: "uppercase head preserved",
			in:   "<HTML><HEAD></HEAD><BODY></BODY></HTML>",
			want: "<HTML><HEAD>" + tag + "</HEAD><BODY></BODY></HTML>",
		},
		{
			name: "head with attributes",
			in:   `<head lang="en"><meta charset="utf-8"></head>`,
			want: `<head lang="en">` + tag + `<meta charset="utf-8"></head>`,
		},
		{
			name: "no head tag",
			in:   "<body>hello</body>",
			want: "<head>" + tag + "</head><body>hello</body>",
		},
		{
			name: "unclosed head tag",
			in:   "<head",
			want: tag + "<head",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := injectBaseTag(tt.in, base); got != tt.want {
				t.Errorf("injectBaseTag(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeText_Latin1Fallback(t *testing.T) {
	if got := decodeText([]byte("h\xc3\xa9llo")); got != "héllo" {
		t.Errorf("utf-8 input decoded to %q", got)
	}
	// 0xE9 alone is invalid UTF-8 but is é in Latin-1.
	if got := decodeText([]byte("caf\xe9")); got != "café" {
		t.Errorf("latin-1 input decoded to %q", got)
	}
}

func TestEntryPoint_AutoDetectMarksFile(t *testing.T) {
	setupDB(t)
	renderer := NewSiteRenderer(setupStorage(t))
	user := createUser(t, "entry@example.com", false)
	site := createWebsite(t, user, "entry-test")

	addSiteFile(t, site, "style.css", "css/style.css")
	addSiteFile(t, site, "INDEX.HTML", "INDEX.HTML")

	entry, err := renderer.EntryPoint(site)
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	if entry.VirtualPath != "INDEX.HTML" {
		t.Errorf("entry = %q, want INDEX.HTML", entry.VirtualPath)
	}

	// The detected file is marked so the scan is skipped next time.
	if got := indexedPaths(t, site); len(got) != 1 || got[0] != "INDEX.HTML" {
		t.Errorf("flagged paths = %v, want [INDEX.HTML]", got)
	}
}

func TestEntryPoint_NoneFound(t *testing.T) {
	setupDB(t)
	renderer := NewSiteRenderer(setupStorage(t))
	user := createUser(t, "entry@example.com", false)
	site := createWebsite(t, user, "empty-test")

	addSiteFile(t, site, "about.html", "about.html")

	if _, err := renderer.EntryPoint(site); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("got %v, want ErrAssetNotFound", err)
	}
}

func TestResolveAsset_ExactThenBasename(t *testing.T) {
	setupDB(t)
	renderer := NewSiteRenderer(setupStorage(t))
	user := createUser(t, "asset@example.com", false)
	site := createWebsite(t, user, "asset-test")

	nested := addSiteFile(t, site, "style.css", "css/style.css")
	addSiteFile(t, site, "app.js", "js/app.js")

	wf, err := renderer.ResolveAsset(site, "css/style.css")
	if err != nil {
		t.Fatalf("exact lookup: %v", err)
	}
	if wf.ID != nested.ID {
		t.Errorf("exact lookup returned row %d, want %d", wf.ID, nested.ID)
	}

	// Legacy links reference only the filename.
	wf, err = renderer.ResolveAsset(site, "app.js")
	if err != nil {
		t.Fatalf("basename lookup: %v", err)
	}
	if wf.VirtualPath != "js/app.js" {
		t.Errorf("basename lookup = %q, want js/app.js", wf.VirtualPath)
	}

	if _, err := renderer.ResolveAsset(site, "missing.png"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("missing asset: got %v, want ErrAssetNotFound", err)
	}
}

func TestRenderEntryPoint_BaseTagAndWatermark(t *testing.T) {
	setupDB(t)
	store := setupStorage(t)
	renderer := NewSiteRenderer(store)
	user := createUser(t, "render@example.com", false)
	site := createWebsite(t, user, "render-test")

	entry := addSiteFile(t, site, "index.html", "docs/index.html")
	markup := "<html><head><title>Demo</title></head><body><p>hi</p></body></html>"
	if err := store.Save(storage.CategoryWebsite, user.Username(), entry.File.StoredName,
		strings.NewReader(markup)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := renderer.RenderEntryPoint(site, entry)
	if err != nil {
		t.Fatalf("RenderEntryPoint: %v", err)
	}
	if !strings.Contains(out, `<base href="/site/render-test/assets/docs/">`) {
		t.Errorf("base tag missing or wrong: %q", out)
	}
	if !strings.Contains(out, "Powered by FileLink Pro") {
		t.Error("watermark missing for free-plan owner")
	}
	if !strings.Contains(out, "<p>hi</p>") {
		t.Error("original markup lost")
	}
}
