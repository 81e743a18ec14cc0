package formatter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// StartSpinner animates "<frame> message (Ns)" on w until the returned
// func is called, which clears the line. It is meant for single blocking
// calls such as scoring outside the live run view. Calling stop twice is
// safe.
func StartSpinner(w io.Writer, message string) (stop func()) {
	return startSpinner(w, message, spinner.MiniDot, time.Now)
}

func startSpinner(w io.Writer, message string, style spinner.Spinner, now func() time.Time) func() {
	quit := make(chan struct{})
	done := make(chan struct{})
	started := now()

	go func() {
		defer close(done)
		ticker := time.NewTicker(style.FPS)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-quit:
				fmt.Fprint(w, "\r\033[K")
				return
			case <-ticker.C:
				elapsed := now().Sub(started).Truncate(time.Second)
				glyph := style.Frames[frame%len(style.Frames)]
				fmt.Fprintf(w, "\r  %s %s %s", StyleAccent.Render(glyph), Dim(message), Dim(fmt.Sprintf("(%s)", elapsed)))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}
