package handlers

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/filelinkpro/filelink/internal/database"
	"github.com/filelinkpro/filelink/internal/models"
	"github.com/filelinkpro/filelink/internal/services"
)

// PublicHandler serves the unauthenticated surface: share links and
// published websites.
type PublicHandler struct {
	links    *services.LinkService
	files    *services.FileService
	websites *services.WebsiteService
	renderer *services.SiteRenderer
}

// NewPublicHandler creates a new public handler.
func NewPublicHandler(links *services.LinkService, files *services.FileService, websites *services.WebsiteService, renderer *services.SiteRenderer) *PublicHandler {
	return &PublicHandler{
		links:    links,
		files:    files,
		websites: websites,
		renderer: renderer,
	}
}

// SharePage shows the share landing page for a link, prompting for a
// password when one is set.
func (h *PublicHandler) SharePage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	link, err := h.links.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			http.Error(w, "Link not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load link", http.StatusInternalServerError)
		return
	}

	password := r.FormValue("password")
	if err := h.links.CheckAccess(link, password); err != nil {
		switch {
		case errors.Is(err, services.ErrLinkExpired):
			http.Error(w, "This link has expired", http.StatusGone)
		case errors.Is(err, services.ErrLinkInactive):
			http.Error(w, "Link not found", http.StatusNotFound)
		case errors.Is(err, services.ErrPasswordRequired), errors.Is(err, services.ErrInvalidPassword):
			h.writePasswordPrompt(w, "/r/"+slug, link.File.OriginalName)
		default:
			http.Error(w, "Failed to load link", http.StatusInternalServerError)
		}
		return
	}

	if err := h.links.RecordView(link, clientIP(r), r.UserAgent(), r.Referer()); err != nil {
		log.Printf("Warning: failed to record view for %s: %v", slug, err)
	}

	downloadURL := "/r/" + slug + "/download"
	if password != "" {
		downloadURL += "?password=" + url.QueryEscape(password)
	}
	h.writeSharePage(w, link, downloadURL)
}

// Download streams the file behind a link.
func (h *PublicHandler) Download(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	link, err := h.links.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			http.Error(w, "Link not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load link", http.StatusInternalServerError)
		return
	}

	if err := h.links.CheckAccess(link, r.URL.Query().Get("password")); err != nil {
		switch {
		case errors.Is(err, services.ErrLinkExpired):
			http.Error(w, "This link has expired", http.StatusGone)
		case errors.Is(err, services.ErrLinkInactive):
			http.Error(w, "Link not found", http.StatusNotFound)
		case errors.Is(err, services.ErrPasswordRequired):
			h.writePasswordPrompt(w, "/r/"+slug+"/download", link.File.OriginalName)
		case errors.Is(err, services.ErrInvalidPassword):
			http.Error(w, "Invalid password", http.StatusForbidden)
		default:
			http.Error(w, "Failed to load link", http.StatusInternalServerError)
		}
		return
	}

	reader, err := h.files.Open(&link.File)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	if err := h.links.RecordView(link, clientIP(r), r.UserAgent(), r.Referer()); err != nil {
		log.Printf("Warning: failed to record view for %s: %v", slug, err)
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+link.File.OriginalName+"\"")
	w.Header().Set("Content-Type", link.File.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(link.File.FileSize, 10))
	io.Copy(w, reader)
}

// sitePasswordCookie names the per-site password cookie. The stored value is
// the website's password hash, proving a past successful check.
func sitePasswordCookie(websiteID uint) string {
	return fmt.Sprintf("site_pw_%d", websiteID)
}

// siteAuthorized reports whether the request may view a password-protected
// site, setting the proof cookie when a correct password arrives.
func (h *PublicHandler) siteAuthorized(w http.ResponseWriter, r *http.Request, website *models.Website) bool {
	if !website.HasPassword() {
		return true
	}

	if c, err := r.Cookie(sitePasswordCookie(website.ID)); err == nil && c.Value == *website.PasswordHash {
		return true
	}

	password := r.FormValue("password")
	if password != "" && h.websites.CheckPassword(website, password) {
		http.SetCookie(w, &http.Cookie{
			Name:     sitePasswordCookie(website.ID),
			Value:    *website.PasswordHash,
			Path:     "/site/" + website.Slug,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return true
	}
	return false
}

// ViewSite renders a published website's entry point, or a file listing when
// no entry point exists.
func (h *PublicHandler) ViewSite(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	website, err := h.websites.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrWebsiteNotFound) {
			http.Error(w, "Website not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load website", http.StatusInternalServerError)
		return
	}

	if !h.siteAuthorized(w, r, website) {
		h.writePasswordPrompt(w, "/site/"+slug, website.Name)
		return
	}

	if err := h.websites.RecordView(website); err != nil {
		log.Printf("Warning: failed to record site view for %s: %v", slug, err)
	}

	entry, err := h.renderer.EntryPoint(website)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			h.writeSiteListing(w, website)
			return
		}
		http.Error(w, "Failed to load website", http.StatusInternalServerError)
		return
	}

	markup, err := h.renderer.RenderEntryPoint(website, entry)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			h.writeSiteListing(w, website)
			return
		}
		http.Error(w, "Failed to render website", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(markup))
}

// ServeAsset streams one website asset addressed by its virtual path.
func (h *PublicHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	virtualPath := chi.URLParam(r, "*")

	website, err := h.websites.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, services.ErrWebsiteNotFound) {
			http.Error(w, "Website not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load website", http.StatusInternalServerError)
		return
	}

	wf, err := h.renderer.ResolveAsset(website, virtualPath)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			http.Error(w, "Asset not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load asset", http.StatusInternalServerError)
		return
	}

	reader, err := h.renderer.OpenAsset(wf)
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", services.AssetMimeType(&wf.File))
	io.Copy(w, reader)
}

// writePasswordPrompt renders a minimal inline password form posting back to
// target.
func (h *PublicHandler) writePasswordPrompt(w http.ResponseWriter, target, title string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Password Required</title>
	<style>
		body { font-family: sans-serif; max-width: 400px; margin: 100px auto; padding: 20px; }
		.name { background: #f8f9fa; padding: 10px; border-radius: 6px; word-break: break-word; font-family: monospace; }
		input { width: 100%%; padding: 10px; margin: 10px 0; border: 1px solid #ddd; border-radius: 4px; box-sizing: border-box; }
		button { width: 100%%; padding: 10px; background: #3498db; color: white; border: none; border-radius: 4px; cursor: pointer; }
		button:hover { background: #2980b9; }
	</style>
</head>
<body>
	<h2>Password Required</h2>
	<div class="name">%s</div>
	<form method="POST" action="%s">
		<input type="password" name="password" placeholder="Enter password" required autofocus>
		<button type="submit">Continue</button>
	</form>
</body>
</html>`, html.EscapeString(title), html.EscapeString(target))
}

// writeSharePage renders the share landing page with a preview pane for
// supported file types.
func (h *PublicHandler) writeSharePage(w http.ResponseWriter, link *models.Link, downloadURL string) {
	file := link.File
	preview := ""
	if file.IsPreviewable() {
		switch file.PreviewType() {
		case "image":
			preview = fmt.Sprintf(`<img src="%s" alt="%s" style="max-width: 100%%;">`,
				html.EscapeString(downloadURL), html.EscapeString(file.OriginalName))
		case "audio":
			preview = fmt.Sprintf(`<audio controls src="%s"></audio>`, html.EscapeString(downloadURL))
		case "video":
			preview = fmt.Sprintf(`<video controls src="%s" style="max-width: 100%%;"></video>`, html.EscapeString(downloadURL))
		case "pdf", "html", "text":
			preview = fmt.Sprintf(`<iframe src="%s" style="width: 100%%; height: 400px; border: 1px solid #ddd;"></iframe>`,
				html.EscapeString(downloadURL))
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>%s - FileLink</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 40px auto; padding: 20px; }
		.filename { font-size: 18px; font-weight: 600; word-break: break-word; }
		.meta { color: #7f8c8d; font-size: 13px; margin: 8px 0 20px; }
		.download { display: inline-block; padding: 12px 24px; background: #3498db; color: white; border-radius: 6px; text-decoration: none; }
		.download:hover { background: #2980b9; }
		.preview { margin-top: 24px; }
	</style>
</head>
<body>
	<div class="filename">%s</div>
	<div class="meta">%d bytes &middot; %d views</div>
	<a class="download" href="%s">Download</a>
	<div class="preview">%s</div>
</body>
</html>`,
		html.EscapeString(file.OriginalName),
		html.EscapeString(file.OriginalName),
		file.FileSize,
		link.ViewCount,
		html.EscapeString(downloadURL),
		preview)
}

// writeSiteListing renders a plain file listing for sites without an entry
// point.
func (h *PublicHandler) writeSiteListing(w http.ResponseWriter, website *models.Website) {
	var files []models.WebsiteFile
	if err := database.DB.Preload("File").
		Where("website_id = ?", website.ID).
		Order("virtual_path ASC").
		Find(&files).Error; err != nil {
		http.Error(w, "Failed to load website", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%s</title>
<style>
	body { font-family: sans-serif; max-width: 700px; margin: 40px auto; padding: 20px; }
	li { margin: 4px 0; }
</style>
</head>
<body>
<h2>%s</h2>
<p>%s</p>
<ul>`,
		html.EscapeString(website.Name),
		html.EscapeString(website.Name),
		html.EscapeString(website.Description))
	for _, wf := range files {
		fmt.Fprintf(w, `<li><a href="/site/%s/assets/%s">%s</a> (%d bytes)</li>`,
			website.Slug,
			html.EscapeString(wf.VirtualPath),
			html.EscapeString(wf.VirtualPath),
			wf.File.FileSize)
	}
	fmt.Fprint(w, `</ul>
</body>
</html>`)
}
