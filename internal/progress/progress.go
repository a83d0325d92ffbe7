package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

var descLength = 24

// Progress is a progress bar over a known number of files. All methods are
// safe for concurrent use and do nothing when the bar is disabled.
type Progress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	out       io.Writer

	mu          sync.Mutex
	description string
}

// New creates a progress bar on stderr. It is disabled unless enabled is set
// and stderr is a terminal.
func New(total int, enabled bool) *Progress {
	if !enabled || !isTerminal() {
		return &Progress{}
	}
	return NewWithOutput(os.Stderr, total)
}

// NewWithOutput creates an enabled progress bar writing to out.
func NewWithOutput(out io.Writer, total int) *Progress {
	p := &Progress{out: out}

	// Add space before progress bar
	fmt.Fprintln(out)

	p.container = mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				desc := p.current()
				if len(desc) > descLength {
					return desc[:descLength-2] + ".."
				}
				return desc
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.Name("  "),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	return p
}

// Enabled reports whether the bar is drawn.
func (p *Progress) Enabled() bool { return p.bar != nil }

// Increment advances the bar by one and shows description next to it.
func (p *Progress) Increment(description string) {
	if p.bar == nil {
		return
	}
	p.mu.Lock()
	p.description = description
	p.mu.Unlock()
	p.bar.Increment()
}

// Finish completes the progress bar and shuts down the container
func (p *Progress) Finish() {
	if p.container == nil {
		return
	}
	// Drop the bar if the scan ended early so Wait does not block.
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.container.Wait()

	// Add space after progress bar
	fmt.Fprintln(p.out)
}

func (p *Progress) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.description
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
