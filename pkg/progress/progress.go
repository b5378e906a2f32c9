// Package progress renders download progress to a terminal. Sizes are often
// unknown up front (ModDB mirrors omit Content-Length), so the bar switches
// between a byte counter and a spinner as needed.
package progress

import (
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Renderer drives one progress bar. Headless mode logs milestones instead,
// for runs without a terminal.
type Renderer struct {
	w        io.Writer
	desc     string
	headless bool

	bar        *progressbar.ProgressBar
	total      int64
	lastDecile int
}

func New(w io.Writer, desc string, headless bool) *Renderer {
	return &Renderer{w: w, desc: desc, headless: headless, lastDecile: -1}
}

// Update reports written bytes out of total. A zero total renders as a
// spinner with a byte count.
func (r *Renderer) Update(written, total int64) {
	if r.headless {
		r.logMilestone(written, total)
		return
	}
	if r.bar == nil || r.total != total {
		r.total = total
		barMax := total
		if barMax <= 0 {
			barMax = -1 // spinner
		}
		r.bar = progressbar.NewOptions64(
			barMax,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription(r.desc),
			progressbar.OptionThrottle(200*time.Millisecond),
		)
	}
	r.bar.Set64(written)
}

func (r *Renderer) logMilestone(written, total int64) {
	if total <= 0 {
		return
	}
	decile := int(written * 10 / total)
	if decile > r.lastDecile {
		r.lastDecile = decile
		slog.Info("downloading", "what", r.desc, "written", written, "total", total)
	}
}

// Finish completes the bar and moves to the next line.
func (r *Renderer) Finish() {
	if r.bar != nil {
		r.bar.Finish()
		io.WriteString(r.w, "\n")
		r.bar = nil
	}
}
