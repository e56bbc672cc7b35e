package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/RyanBlaney/sonido-looper/looper"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bestStyle   = cellStyle.Bold(true).Foreground(primaryColor)
)

// LoopTable renders ranked loop pairs. Positions are shown as MM:SS.mmm, or
// as raw playback samples when samples is set.
func LoopTable(audio *looper.Audio, pairs []*looper.LoopPair, limit int, samples bool) string {
	if limit > 0 && limit < len(pairs) {
		pairs = pairs[:limit]
	}

	position := func(s int) string {
		if samples {
			return strconv.Itoa(s)
		}
		return looper.FormatTime(audio.SamplesToSeconds(s))
	}

	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{
			strconv.Itoa(i),
			position(p.LoopEnd),
			position(p.LoopStart),
			fmt.Sprintf("%.4f", p.NoteDistance),
			fmt.Sprintf("%.4f", p.LoudnessDifference),
			fmt.Sprintf("%.2f%%", p.Score*100),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(mutedColor)).
		Headers("#", "From", "Back to", "Note dist", "Loudness", "Score").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == 0:
				return bestStyle
			default:
				return cellStyle
			}
		})

	return t.String()
}

// LoopPoints renders the best pair as the plain two-line block printed for
// piping into other tools.
func LoopPoints(audio *looper.Audio, pair *looper.LoopPair) string {
	return fmt.Sprintf("%s::\nLOOP_START: %d\nLOOP_END: %d\n", audio.Filename, pair.LoopStart, pair.LoopEnd)
}
