package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	successStyle = color.New(color.FgGreen, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgYellow, color.Bold)
	routeStyle   = color.New(color.FgCyan)
)

// Notifier 终端提示
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Success(title, body string) {
	n.print(successStyle, "✔", title, body)
}

func (n *Notifier) Error(title, body string) {
	n.print(errorStyle, "✖", title, body)
}

func (n *Notifier) Warning(title, body string) {
	n.print(warningStyle, "!", title, body)
}

func (n *Notifier) print(style *color.Color, icon, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	style.Fprintf(n.out, "%s %s", icon, title)
	if body != "" {
		fmt.Fprintf(n.out, ": %s", body)
	}
	fmt.Fprintln(n.out)
}

// Router 记录当前页面，跳转时输出到终端
type Router struct {
	mu      sync.Mutex
	out     io.Writer
	current string
	visits  chan string
}

func NewRouter(out io.Writer) *Router {
	return &Router{
		out:    out,
		visits: make(chan string, 1),
	}
}

func (r *Router) Push(path string) {
	r.mu.Lock()
	r.current = path
	routeStyle.Fprintf(r.out, "→ %s\n", path)
	r.mu.Unlock()

	select {
	case r.visits <- path:
	default:
	}
}

// Current 当前页面
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Visits 跳转通知，只保留尚未读取的第一条
func (r *Router) Visits() <-chan string {
	return r.visits
}
