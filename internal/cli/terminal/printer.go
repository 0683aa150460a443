// Package terminal 在终端上实时显示正在生成的 AI 回复
// 等待期间显示加载指示，收到内容后只输出新增部分
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Printer 流式回复输出
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool   // 输出是交互终端时才显示动画
	printed  string // 已经输出的回复内容
	spinning bool
	stop     chan struct{}
	stopped  chan struct{}
}

// NewPrinter 创建 Printer
// out 是 *os.File 且为终端时启用加载动画
func NewPrinter(out io.Writer) *Printer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: out, tty: tty}
}

// Start 开始等待回复，显示加载指示
func (p *Printer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printed = ""
	if !p.tty {
		fmt.Fprintln(p.out, "… 等待 AI 回复")
		return
	}
	if p.spinning {
		return
	}

	p.spinning = true
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.spin(p.stop, p.stopped)
}

func (p *Printer) spin(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		p.mu.Lock()
		fmt.Fprintf(p.out, "\r%s 等待 AI 回复", spinnerFrames[i%len(spinnerFrames)])
		p.mu.Unlock()

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// stopSpinner 停止动画并清除该行，调用方持有锁
func (p *Printer) stopSpinner() {
	if !p.spinning {
		return
	}
	p.spinning = false
	close(p.stop)

	// spin 在输出时需要锁
	p.mu.Unlock()
	<-p.stopped
	p.mu.Lock()

	fmt.Fprint(p.out, "\r\033[K")
}

// Update 回复内容变化，content 是完整的当前内容
func (p *Printer) Update(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinner()
	if p.printed == "" {
		fmt.Fprint(p.out, "[ai] ")
	}

	if strings.HasPrefix(content, p.printed) {
		fmt.Fprint(p.out, content[len(p.printed):])
	} else {
		// 内容被整体替换（例如错误消息），重新输出
		fmt.Fprint(p.out, "\n[ai] "+content)
	}
	p.printed = content
}

// End 回复结束
func (p *Printer) End() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinner()
	if p.printed != "" {
		fmt.Fprintln(p.out)
	}
	p.printed = ""
}
