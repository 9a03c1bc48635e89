// Package progress renders an optional live progress bar for the single
// rsync subprocess a backup or restore invocation runs. Unlike a
// multi-worker transfer, there is exactly one bar here, fed by whatever
// byte counts rsync chooses to emit on its tee'd stderr (e.g. when the
// client requested --info=progress2 --msgs2stderr); lacking those, the bar
// still advances on every relayed line so it never appears frozen.
package progress

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// placeholderTotal stands in for a total byte count we can't know up front
// (there is no dry-run pass here): large enough that IncrBy never reaches
// it before Done() replaces it with the true final count.
const placeholderTotal = math.MaxInt64 / 2

// Bar drives a single indeterminate mpb bar across the lifetime of one
// rsync subprocess.
type Bar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// New starts a bar labeled with name (typically the target directory).
func New(name string) *Bar {
	p := mpb.New(mpb.WithWidth(40), mpb.WithRefreshRate(150*time.Millisecond))
	namePrefix := name + " "
	bar := p.New(placeholderTotal, mpb.BarStyle().Rbound("|").Lbound("|"),
		mpb.PrependDecorators(decor.Name(namePrefix, decor.WC{W: len(namePrefix), C: decor.DSyncWidth})),
		mpb.AppendDecorators(decor.Any(func(s decor.Statistics) string {
			return formatBytes(s.Current)
		})))
	return &Bar{p: p, bar: bar}
}

// Writer returns an io.Writer that feeds the bar: each write is scanned for
// a leading decimal byte count (rsync's --out-format=%l style output) and,
// failing that, simply counted as one line's worth of motion so the bar
// never looks stalled during a long, silent transfer.
func (b *Bar) Writer() io.Writer {
	return &feedWriter{bar: b.bar}
}

// Done marks the bar complete and releases its renderer. Safe to call on a
// nil *Bar.
func (b *Bar) Done() {
	if b == nil {
		return
	}
	current := b.bar.Current()
	if current == 0 {
		current = 1
	}
	b.bar.SetTotal(current, true)
	b.p.Wait()
}

type feedWriter struct {
	bar *mpb.Bar
}

func (w *feedWriter) Write(p []byte) (int, error) {
	if n, ok := leadingInt(p); ok && n > 0 {
		w.bar.IncrInt64(n)
	} else {
		w.bar.IncrInt64(1)
	}
	return len(p), nil
}

// leadingInt parses the leading run of decimal digits in b, as produced by
// rsync's --out-format=%l per-file byte count.
func leadingInt(b []byte) (int64, bool) {
	var n int64
	parsed := false
	for _, c := range b {
		if c >= '0' && c <= '9' {
			n = n*10 + int64(c-'0')
			parsed = true
			continue
		}
		break
	}
	return n, parsed
}

// formatBytes converts a byte count to a human-readable string (KB, MB, ...).
func formatBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	exp, value := 0, float64(n)
	for value >= unit && exp < 5 {
		value /= unit
		exp++
	}
	suffix := []string{"KB", "MB", "GB", "TB", "PB"}[exp-1]
	return fmt.Sprintf("%.2f %s", value, suffix)
}
