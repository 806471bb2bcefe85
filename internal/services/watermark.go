package services

import (
	"fmt"
	"strings"

	"github.com/filelinkpro/filelink/internal/models"
)

// brandingMarkers indicate branding is already present in served markup.
// The scan is the sole idempotence mechanism: rendering re-reads stored
// content each request, so nothing is persisted.
var brandingMarkers = []string{
	"filelink pro",
	"filelink-pro",
	"powered by filelink",
	"published by",
}

const watermarkTemplate = `
<!-- FileLink Pro Watermark -->
<div id="filelink-watermark" style="
    position: fixed;
    bottom: 20px;
    right: 20px;
    background: linear-gradient(135deg, rgba(0, 120, 212, 0.95), rgba(16, 124, 16, 0.95));
    color: white;
    padding: 12px 16px;
    border-radius: 25px;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', system-ui, sans-serif;
    font-size: 13px;
    font-weight: 500;
    z-index: 999999;
    box-shadow: 0 4px 16px rgba(0, 0, 0, 0.2);
    cursor: pointer;
    text-decoration: none;
    display: flex;
    align-items: center;
    gap: 8px;
    max-width: 280px;
" onclick="window.open('https://filelink.pro', '_blank')">
    <div>
        <div style="font-size: 11px; opacity: 0.9; line-height: 1.2;">Created by <strong>%s</strong></div>
        <div style="font-size: 12px; font-weight: 600; line-height: 1.2;">Powered by FileLink Pro</div>
    </div>
</div>
`

// InjectWatermark appends the promotional fragment to served markup for
// non-premium owners. The fragment goes immediately before the last closing
// body tag (case-insensitive search, case-preserving splice) or at the end
// of the document when no body tag exists. Markup already carrying a
// branding marker is returned unchanged.
func InjectWatermark(markup string, owner *models.User) string {
	if owner.IsPremium {
		return markup
	}

	lower := strings.ToLower(markup)
	for _, marker := range brandingMarkers {
		if strings.Contains(lower, marker) {
			return markup
		}
	}

	watermark := fmt.Sprintf(watermarkTemplate, owner.Username())

	bodyPos := strings.LastIndex(lower, "</body>")
	if bodyPos == -1 {
		return markup + watermark
	}
	return markup[:bodyPos] + watermark + markup[bodyPos:]
}
