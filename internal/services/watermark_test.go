package services

import (
	"strings"
	"testing"

	"github.com/filelinkpro/filelink/internal/models"
)

func freeOwner() *models.User {
	return &models.User{Email: "owner@example.com", FullName: "Ada Lovelace"}
}

func TestInjectWatermark_SplicesBeforeClosingBody(t *testing.T) {
	markup := "<html><body><p>content</p></body></html>"
	out := InjectWatermark(markup, freeOwner())

	bodyPos := strings.Index(out, "</body>")
	markPos := strings.Index(out, "Powered by FileLink Pro")
	if markPos == -1 {
		t.Fatal("watermark not injected")
	}
	if bodyPos == -1 || markPos > bodyPos {
		t.Errorf("watermark after </body>: mark at %d, body at %d", markPos, bodyPos)
	}
	if !strings.Contains(out, "Created by <strong>Ada</strong>") {
		t.Errorf("owner attribution missing: %q", out)
	}
}

func TestInjectWatermark_LastBodyTagCaseInsensitive(t *testing.T) {
	markup := "<html><body>one</body><BODY>two</BODY></html>"
	out := InjectWatermark(markup, freeOwner())

	markPos := strings.Index(out, "filelink-watermark")
	lastBody := strings.Index(out, "</BODY>")
	if markPos == -1 || lastBody == -1 || markPos > lastBody {
		t.Errorf("watermark not before last closing body tag: %q", out)
	}
	// Original casing survives the splice.
	if !strings.Contains(out, "</BODY>") {
		t.Error("uppercase body tag was rewritten")
	}
}

func TestInjectWatermark_AppendsWithoutBody(t *testing.T) {
	markup := "<p>just a fragment</p>"
	out := InjectWatermark(markup, freeOwner())
	if !strings.HasPrefix(out, markup) {
		t.Errorf("fragment was rewritten: %q", out)
	}
	if !strings.Contains(out, "Powered by FileLink Pro") {
		t.Error("watermark not appended")
	}
}

func TestInjectWatermark_PremiumOwnerUntouched(t *testing.T) {
	owner := freeOwner()
	owner.IsPremium = true
	markup := "<html><body></body></html>"
	if out := InjectWatermark(markup, owner); out != markup {
		t.Errorf("premium markup changed: %q", out)
	}
}

func TestInjectWatermark_MarkerSkips(t *testing.T) {
	for _, markup := range []string{
		"<body>POWERED BY FILELINK</body>",
		"<body>built with FileLink Pro</body>",
		"<body>published by someone else</body>",
	} {
		if out := InjectWatermark(markup, freeOwner()); out != markup {
			t.Errorf("marked markup changed: %q", markup)
		}
	}
}

func TestInjectWatermark_Idempotent(t *testing.T) {
	markup := "<html><body></body></html>"
	once := InjectWatermark(markup, freeOwner())
	twice := InjectWatermark(once, freeOwner())
	if once != twice {
		t.Error("second injection modified already-branded markup")
	}
}
