// Package ui renders update progress and results for the terminal with lipgloss styles.
//
// Progress flows from the update engine through a channel of [tasks.ProgressUpdate];
// a [Printer] drains it and writes one styled line per update, so a slow terminal never
// holds up the run. [RenderResult] and [RenderFailure] format the terminal outcome.
package ui
