package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
	"github.com/fuomag9/kabomba-status/internal/uptime"
)

// publicService loads {id} and hides services that are not public
func publicService(w http.ResponseWriter, r *http.Request, st *store.Store) (*models.Service, bool) {
	svc, err := st.GetService(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && !svc.IsPublic) {
		http.Error(w, "Service not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "Failed to fetch service", http.StatusInternalServerError)
		return nil, false
	}
	return svc, true
}

// HandleStatusBadge generates a status badge SVG for a public service
func HandleStatusBadge(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := publicService(w, r, st)
		if !ok {
			return
		}

		statusText, color := "unknown", "gray"
		check, err := st.LatestCheck(r.Context(), svc.ID)
		switch {
		case err != nil || check == nil:
		case !svc.Enabled:
			statusText, color = "paused", "lightgray"
		case check.Success:
			statusText, color = "up", "brightgreen"
		default:
			statusText, color = "down", "red"
		}

		writeBadge(w, "status", statusText, color)
	}
}

// HandleUptimeBadge generates an uptime percentage badge. ?period= picks
// one of 24h, 7d, 30d (default) or 90d.
func HandleUptimeBadge(st *store.Store, calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := publicService(w, r, st)
		if !ok {
			return
		}

		period := r.URL.Query().Get("period")
		window, found := uptime.Lookup(period)
		if !found {
			window, _ = uptime.Lookup("30d")
		}

		uptimeText, color := "N/A", "gray"
		stats, err := calc.ForPeriod(r.Context(), svc.ID, window)
		if err == nil && stats.TotalChecks > 0 {
			uptimeText = fmt.Sprintf("%.2f%%", stats.UptimePercent)
			color = uptimeColor(stats.UptimePercent)
		}

		writeBadge(w, fmt.Sprintf("uptime (%s)", window.Name), uptimeText, color)
	}
}

func uptimeColor(pct float64) string {
	switch {
	case pct >= 99.9:
		return "brightgreen"
	case pct >= 99.0:
		return "green"
	case pct >= 95.0:
		return "yellowgreen"
	case pct >= 90.0:
		return "yellow"
	default:
		return "red"
	}
}

func writeBadge(w http.ResponseWriter, label, message, color string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write([]byte(generateBadgeSVG(label, message, color)))
}

var badgeColors = map[string]string{
	"brightgreen": "#4c1",
	"green":       "#97ca00",
	"yellowgreen": "#a4a61d",
	"yellow":      "#dfb317",
	"red":         "#e05d44",
	"gray":        "#555",
	"lightgray":   "#9f9f9f",
}

// generateBadgeSVG generates a shields.io style badge
func generateBadgeSVG(label, message, color string) string {
	hexColor, ok := badgeColors[color]
	if !ok {
		hexColor = badgeColors["gray"]
	}

	labelWidth := len(label)*6 + 10
	messageWidth := len(message)*6 + 10
	totalWidth := labelWidth + messageWidth

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" role="img" aria-label="%s: %s">
  <mask id="a"><rect width="%d" height="20" rx="3" fill="#fff"/></mask>
  <g mask="url(#a)">
    <path fill="#555" d="M0 0h%dv20H0z"/>
    <path fill="%s" d="M%d 0h%dv20H%dz"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="11">
    <text x="%d" y="14">%s</text>
    <text x="%d" y="14">%s</text>
  </g>
</svg>`,
		totalWidth, label, message,
		totalWidth,
		labelWidth,
		hexColor, labelWidth, messageWidth, labelWidth,
		labelWidth/2, label,
		labelWidth+messageWidth/2, message,
	)
}
