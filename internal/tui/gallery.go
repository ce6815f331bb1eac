package tui

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AlverezYari/camroll/internal/media"
)

const (
	galleryColumns  = 2
	galleryGap      = 4
	minColumnWidth  = 10
	emptyGalleryMsg = "No photos or videos yet."
)

var cellStyle = lipgloss.NewStyle()

func glyph(k media.Kind) string {
	if k == media.KindVideo {
		return "▶"
	}
	return "▣"
}

func columnWidth(width int) int {
	return max(minColumnWidth, (width-galleryGap)/galleryColumns)
}

// renderGallery lays items out newest first, two per row.
func renderGallery(items []media.Item, width int) string {
	if len(items) == 0 {
		return emptyGalleryMsg
	}

	colWidth := columnWidth(width)
	cell := cellStyle.Width(colWidth)
	gap := strings.Repeat(" ", galleryGap)

	rows := make([]string, 0, (len(items)+1)/galleryColumns)
	for i := 0; i < len(items); i += galleryColumns {
		left := cell.Render(cellLabel(items[i], colWidth))
		right := ""
		if i+1 < len(items) {
			right = cell.Render(cellLabel(items[i+1], colWidth))
		}
		rows = append(rows, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, left, gap, right), " "))
	}
	return strings.Join(rows, "\n")
}

func cellLabel(item media.Item, colWidth int) string {
	name := []rune(filepath.Base(item.URI))
	// glyph and a space
	room := colWidth - 2
	if len(name) > room {
		name = append(name[:room-1], '…')
	}
	return glyph(item.Kind) + " " + string(name)
}
