package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/inkwell/internal/domain"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders a bar like [████░░░░] 45% 9/20.
// Any failed task turns the bar red; otherwise it is yellow until done.
func RenderProgress(p domain.Progress, width int) string {
	if width < 2 {
		width = 2
	}
	pct := p.Percentage
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100

	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleWarn
	switch {
	case p.Failed > 0:
		style = StyleBad
	case pct == 100:
		style = StyleOK
	}
	return fmt.Sprintf("[%s] %3d%% %d/%d", style.Render(bar), pct, p.Completed, p.Total)
}
