// Package render prints transcripts and notifications to a terminal.
package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"chatflow-tutor/internal/chat"

	"github.com/fatih/color"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	clearScreen = "\033[H\033[2J"
	prompt      = "> "
)

var (
	lineBreaks  = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	stripPolicy = bluemonday.StrictPolicy()
)

// PlainText turns message markup into terminal text. Line breaks and
// paragraph ends become newlines; every other tag is dropped.
func PlainText(s string) string {
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Printer writes chat messages to out. It is safe for concurrent use.
type Printer struct {
	mu  sync.Mutex
	out io.Writer

	user   *color.Color
	bot    *color.Color
	agent  *color.Color
	meta   *color.Color
	banner *color.Color
	errs   *color.Color
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:    out,
		user:   color.New(color.FgGreen, color.Bold),
		bot:    color.New(color.FgCyan, color.Bold),
		agent:  color.New(color.FgMagenta, color.Bold),
		meta:   color.New(color.Faint),
		banner: color.New(color.FgYellow),
		errs:   color.New(color.FgRed),
	}
}

func (p *Printer) senderLabel(s chat.Sender) string {
	switch s {
	case chat.SenderUser:
		return p.user.Sprint("You")
	case chat.SenderAgent:
		return p.agent.Sprint("Agent")
	default:
		return p.bot.Sprint("Tutor")
	}
}

// Message prints one message. Buttons are numbered from 1.
func (p *Printer) Message(m chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeMessage(m)
}

func (p *Printer) writeMessage(m chat.Message) {
	if m.IsLoader() {
		fmt.Fprintf(p.out, "%s %s\n", p.senderLabel(chat.SenderBot), p.meta.Sprint("is typing…"))
		return
	}

	header := p.senderLabel(m.Sender)
	if m.Time != "" {
		header += " " + p.meta.Sprint(m.Time)
	}
	fmt.Fprintln(p.out, header)

	if text := PlainText(m.Text); text != "" && !(m.HasMedia() && m.Sender == chat.SenderUser) {
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(p.out, "  %s\n", line)
		}
	}
	if m.HasMedia() {
		kind := chat.ClassifyMedia(m.MediaType)
		if kind == chat.MediaOther {
			kind = chat.ClassifyMedia(chat.MediaTypeForFile(m.MediaURL))
		}
		fmt.Fprintf(p.out, "  [%s] %s %s\n", kind, chat.DisplayFileName(m.MediaURL), p.meta.Sprint(m.MediaURL))
		if caption := PlainText(m.MediaCaption); caption != "" {
			fmt.Fprintf(p.out, "  %s\n", p.meta.Sprint(caption))
		}
	}
	for i, b := range m.Buttons {
		fmt.Fprintf(p.out, "  [%d] %s\n", i+1, b.Label)
	}
}

// Transcript prints msgs with the status banners placed at their indexes.
func (p *Printer) Transcript(msgs []chat.Message, banners []chat.StatusBanner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeTranscript(msgs, banners)
}

// Redraw clears the terminal, prints the transcript and leaves the input
// prompt at the end, all in one write sequence.
func (p *Printer) Redraw(msgs []chat.Message, banners []chat.StatusBanner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, clearScreen)
	p.writeTranscript(msgs, banners)
	fmt.Fprint(p.out, prompt)
}

func (p *Printer) writeTranscript(msgs []chat.Message, banners []chat.StatusBanner) {
	before := make(map[int][]string)
	var after []string
	for _, b := range banners {
		if b.Position == chat.BannerBefore && b.Index < len(msgs) {
			before[b.Index] = append(before[b.Index], b.Text)
		} else {
			after = append(after, b.Text)
		}
	}

	for i, m := range msgs {
		for _, text := range before[i] {
			p.writeBanner(text)
		}
		p.writeMessage(m)
	}
	for _, text := range after {
		p.writeBanner(text)
	}
}

func (p *Printer) Banner(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeBanner(text)
}

func (p *Printer) writeBanner(text string) {
	fmt.Fprintf(p.out, "%s\n", p.banner.Sprintf("── %s ──", text))
}

// Error and Info make Printer a chat.Notifier.
func (p *Printer) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", p.errs.Sprintf("! %s", msg))
}

func (p *Printer) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", p.meta.Sprintf("i %s", msg))
}
