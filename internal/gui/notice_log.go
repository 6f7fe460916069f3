package gui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"codeberg.org/snonux/lingogate/internal/orchestrator"
)

// NoticeLog is a widget listing the notices of this session, newest first
type NoticeLog struct {
	widget.BaseWidget

	container  *fyne.Container
	logLabel   *widget.Label
	scrollView *container.Scroll

	mu          sync.Mutex
	messages    []string
	maxMessages int
	now         func() time.Time
}

// NewNoticeLog creates a notice log with the given heading
func NewNoticeLog(title string) *NoticeLog {
	v := &NoticeLog{
		maxMessages: 200,
		now:         time.Now,
	}

	v.logLabel = widget.NewLabel("")
	v.logLabel.Wrapping = fyne.TextWrapWord

	v.scrollView = container.NewVScroll(v.logLabel)
	v.scrollView.SetMinSize(fyne.NewSize(0, 90))

	v.container = container.NewBorder(
		widget.NewLabel(title),
		nil,
		nil,
		nil,
		v.scrollView,
	)

	v.ExtendBaseWidget(v)
	return v
}

// CreateRenderer implements fyne.Widget
func (v *NoticeLog) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.container)
}

// Add records a notice. It may be called from any goroutine.
func (v *NoticeLog) Add(n orchestrator.Notice) {
	text := v.push(formatNotice(v.now(), n))

	fyne.Do(func() {
		v.logLabel.SetText(text)
		v.scrollView.ScrollToTop()
	})
}

// push prepends message, trims the oldest ones and returns the full text
func (v *NoticeLog) push(message string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.messages = append([]string{message}, v.messages...)
	if len(v.messages) > v.maxMessages {
		v.messages = v.messages[:v.maxMessages]
	}
	return strings.Join(v.messages, "\n")
}

// Clear drops all notices
func (v *NoticeLog) Clear() {
	v.mu.Lock()
	v.messages = v.messages[:0]
	v.mu.Unlock()

	fyne.Do(func() {
		v.logLabel.SetText("")
	})
}

func formatNotice(at time.Time, n orchestrator.Notice) string {
	marker := ""
	if n.Destructive {
		marker = "! "
	}
	if n.Description == "" || n.Description == n.Title {
		return fmt.Sprintf("[%s] %s%s", at.Format("15:04:05"), marker, n.Title)
	}
	return fmt.Sprintf("[%s] %s%s: %s", at.Format("15:04:05"), marker, n.Title, n.Description)
}
