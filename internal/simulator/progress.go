package simulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/chrisdamba/deliverysim/internal/models"
)

// ProgressReporter draws one terminal progress bar per delivery.
type ProgressReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
	to  models.Point
}

func NewProgressReporter(w io.Writer) *ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressReporter{w: w}
}

func (p *ProgressReporter) newBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
	)
}

// HandleEvent updates the bar from session events and ignores everything else.
func (p *ProgressReporter) HandleEvent(ev models.Event) {
	switch data := ev.Data.(type) {
	case models.DeliveryStarted:
		if p.bar != nil {
			_ = p.bar.Exit()
		}
		if len(data.Path) > 0 {
			p.to = data.Path[len(data.Path)-1]
		}
		p.bar = p.newBar(fmt.Sprintf("order %s to %s", data.OrderID, p.to))
	case models.VehicleState:
		if p.bar == nil {
			return
		}
		p.bar.Describe(fmt.Sprintf("%s to %s, ETA %d min", data.StatusText, p.to, data.EtaMinutes))
		_ = p.bar.Set(int(data.Progress * 100))
	case models.DeliveryCompleted:
		if p.bar != nil {
			_ = p.bar.Finish()
			p.bar = nil
		}
	case models.DeliveryCancelled:
		if p.bar != nil {
			_ = p.bar.Exit()
			p.bar = nil
		}
	}
}
