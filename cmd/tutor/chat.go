package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"chatflow-tutor/internal/chat"
	"chatflow-tutor/internal/render"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /attach <path>  attach a file to the next message
  /detach         drop the pending attachment
  /<n>            press button n of the latest message
  /history        reload the conversation
  /help           show this help
  /quit           leave`

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runChat(ctx, os.Stdin, os.Stdout)
	},
}

// redraw clears the terminal and prints the whole transcript with its
// status banners.
func redraw(printer *render.Printer, conv *chat.Conversation) {
	printer.Redraw(conv.Transcript().Snapshot(), conv.Status().Banners())
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	printer := render.NewPrinter(out)
	conv := newConversation(printer)
	conv.Transcript().OnChange(func([]chat.Message) {
		redraw(printer, conv)
	})

	if err := conv.Start(ctx); err != nil {
		return fmt.Errorf("error starting conversation: %w", err)
	}
	defer conv.Stop()

	redraw(printer, conv)
	printer.Info(fmt.Sprintf("session %s, type /help for commands", conv.SessionID()))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var attached *os.File
	defer func() {
		if attached != nil {
			attached.Close()
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		command := strings.TrimSpace(line)
		switch {
		case command == "/quit" || command == "/exit":
			return nil

		case command == "/help":
			printer.Info(chatHelp)

		case command == "/history":
			if err := conv.History().Sync(ctx); err != nil {
				printer.Error("Unable to load the conversation.")
			}
			redraw(printer, conv)

		case command == "/detach":
			conv.ClearAttachment()
			if attached != nil {
				attached.Close()
				attached = nil
			}
			printer.Info("attachment removed")

		case strings.HasPrefix(command, "/attach "):
			f, err := attach(conv, printer, strings.TrimSpace(strings.TrimPrefix(command, "/attach ")))
			if err != nil {
				continue
			}
			if attached != nil {
				attached.Close()
			}
			attached = f

			a, _ := conv.PendingAttachment()
			printer.Info(fmt.Sprintf("attached %s (%s), press Enter to send", a.Name, humanize.IBytes(uint64(a.Size))))

		case isButtonCommand(command):
			n, _ := strconv.Atoi(command[1:])
			button, ok := latestButton(conv.Transcript().Snapshot(), n)
			if !ok {
				printer.Error(fmt.Sprintf("no button %d on the latest message", n))
				continue
			}
			_ = conv.Press(ctx, button)

		default:
			_, pending := conv.PendingAttachment()
			_ = conv.Send(ctx, line)
			if pending && attached != nil {
				attached.Close()
				attached = nil
			}
		}
	}
}

// attach opens path and makes it the pending attachment. Every failure has
// been reported to notifier by the time it returns. The returned file stays
// open until the attachment is sent or replaced.
func attach(conv *chat.Conversation, notifier chat.Notifier, path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("unable to open %s: %w", path, err)
		notifier.Error(err.Error())
		return nil, err
	}

	a, err := chat.FileAttachment(f)
	if err != nil {
		f.Close()
		notifier.Error(err.Error())
		return nil, err
	}

	bar := progressbar.NewOptions64(a.Size,
		progressbar.OptionSetDescription(fmt.Sprintf("uploading %s", a.Name)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	a.Content = io.TeeReader(f, bar)

	// Attach reports its own validation errors.
	if err := conv.Attach(a); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func isButtonCommand(command string) bool {
	if len(command) < 2 || command[0] != '/' {
		return false
	}
	n, err := strconv.Atoi(command[1:])
	return err == nil && n > 0
}

// latestButton returns button n (1-based) of the most recent message that
// has buttons.
func latestButton(msgs []chat.Message, n int) (chat.Button, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if len(msgs[i].Buttons) == 0 {
			continue
		}
		if n > len(msgs[i].Buttons) {
			return chat.Button{}, false
		}
		return msgs[i].Buttons[n-1], true
	}
	return chat.Button{}, false
}
