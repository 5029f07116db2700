package cmd

import (
	"github.com/schollz/progressbar/v3"
)

// barProgress draws scan progress on the terminal.
type barProgress struct {
	description string
	itsString   string
	bar         *progressbar.ProgressBar
}

func newBarProgress(description, itsString string) *barProgress {
	return &barProgress{description: description, itsString: itsString}
}

func (p *barProgress) TotalNumberToScan(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(p.itsString),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func (p *barProgress) ProcessedNumber(processed int) {
	if p.bar != nil {
		_ = p.bar.Set(processed)
	}
}

// Finish completes the bar, also after a cancelled run.
func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Exit()
	}
}
