package outbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bnema/dnd-campaign-cli/internal/application"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const maxErrorWidth = 96

type RenderOptions struct {
	Now time.Time
	// ShowFiles lists every attachment under its action.
	ShowFiles bool
}

func renderView(actions []domain.PendingAction, opts RenderOptions, s styles) string {
	var total int64
	for _, action := range actions {
		total += action.TotalFileBytes()
	}

	lines := []string{
		s.title.Render("Pending actions"),
		s.header.Render(fmt.Sprintf("queued: %d  attachments: %s", len(actions), humanize.IBytes(uint64(total)))),
	}

	if len(actions) == 0 {
		lines = append(lines, s.empty.Render("Outbox is empty."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, action := range actions {
		lines = append(lines, s.section.Render(renderAction(action, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAction(action domain.PendingAction, opts RenderOptions, s styles) string {
	parts := []string{
		s.action.Render(fmt.Sprintf("#%d %s", action.ID, actionLabel(action.Type))),
		s.detail.Render(detailLine(action, opts.Now)),
	}

	if opts.ShowFiles {
		for _, file := range action.Files {
			parts = append(parts, s.file.Render(fmt.Sprintf("  %s (%s, %s)", file.Name, mimeLabel(file.MimeType), humanize.IBytes(uint64(len(file.Content))))))
		}
	}

	if action.LastError != "" {
		parts = append(parts, s.warning.Render("last error: "+truncate(action.LastError, maxErrorWidth)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func detailLine(action domain.PendingAction, now time.Time) string {
	fields := []string{"queued " + formatAge(action.EnqueuedAt, now)}

	switch len(action.Files) {
	case 0:
		fields = append(fields, "no files")
	case 1:
		fields = append(fields, "1 file")
	default:
		fields = append(fields, fmt.Sprintf("%d files", len(action.Files)))
	}
	if len(action.Files) > 0 {
		fields = append(fields, humanize.IBytes(uint64(action.TotalFileBytes())))
	}

	if action.Attempts > 0 {
		fields = append(fields, fmt.Sprintf("attempts: %d", action.Attempts))
	}

	return strings.Join(fields, "  ")
}

func actionLabel(kind domain.ActionType) string {
	switch kind {
	case domain.ActionCreateCampaign:
		return "campaign"
	case domain.ActionCreateCharacter:
		return "character"
	default:
		return string(kind) + " (unknown)"
	}
}

func mimeLabel(mimeType string) string {
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return "at unknown time"
	}
	if now.IsZero() {
		now = time.Now()
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

// RenderDrainReport summarises one sync pass.
func RenderDrainReport(report application.DrainReport) string {
	s := newStyles()

	if report.Empty() {
		return s.empty.Render("Nothing to sync.")
	}

	lines := []string{
		s.success.Render(fmt.Sprintf("replayed: %d", len(report.Replayed))),
	}
	if len(report.Failed) > 0 {
		lines = append(lines, s.warning.Render(fmt.Sprintf("failed: %d (%s)", len(report.Failed), joinIDs(report.Failed))))
	}
	if len(report.Skipped) > 0 {
		lines = append(lines, s.header.Render(fmt.Sprintf("skipped: %d (%s)", len(report.Skipped), joinIDs(report.Skipped))))
	}
	lines = append(lines, s.detail.Render(fmt.Sprintf("remaining: %d", report.Remaining())))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
