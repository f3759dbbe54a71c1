package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// TermRefresher redraws the terminal in place for commands that poll the mount table or a watch and
// want watch(1) style output. Call StartRefresh() before producing output; everything printed to
// stdout is captured instead of displayed. FinishRefresh() then clears the screen and replays the
// captured output in one shot, which avoids the flicker of clearing first and printing
// incrementally.
//
// Capture works by swapping os.Stdout for a pipe, so existing print based rendering (including the
// table printers) needs no changes. Every successful StartRefresh() must be paired with a
// FinishRefresh() or stdout stays redirected.
type TermRefresher struct {
	originalStdout *os.File
	pipeIn         *os.File
	pipeOut        *os.File
	width          int
	height         int
}

type termWatcherOpts struct {
	Footer string
	Cancel bool
}

type termWatcherOpt func(*termWatcherOpts)

// WithTermFooter pins a status line to the bottom row of the terminal after the refreshed output.
func WithTermFooter(footer string) termWatcherOpt {
	return func(args *termWatcherOpts) {
		args.Footer = footer
	}
}

// WithCancelRefresh discards everything captured since StartRefresh() and leaves the screen as is.
func WithCancelRefresh() termWatcherOpt {
	return func(args *termWatcherOpts) {
		args.Cancel = true
	}
}

// StartRefresh begins capturing stdout. On success the caller must eventually call FinishRefresh(),
// even if it decides to discard the output.
func (t *TermRefresher) StartRefresh() error {
	var err error
	t.width, t.height, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("error determining terminal size (is stdout a terminal?): %w", err)
	}
	t.pipeOut, t.pipeIn, err = os.Pipe()
	if err != nil {
		return fmt.Errorf("error setting up internal pipe: %w", err)
	}
	t.originalStdout = os.Stdout
	os.Stdout = t.pipeIn
	return nil
}

// FinishRefresh restores stdout, clears the screen, and prints everything captured since
// StartRefresh(). Options adjust what is printed.
func (t *TermRefresher) FinishRefresh(opts ...termWatcherOpt) error {
	args := &termWatcherOpts{}
	for _, opt := range opts {
		opt(args)
	}

	var buf bytes.Buffer
	t.pipeIn.Close()
	io.Copy(&buf, t.pipeOut)
	t.pipeOut.Close()
	os.Stdout = t.originalStdout

	if args.Cancel {
		return nil
	}
	// Home the cursor and clear the screen.
	fmt.Print("\033[H\033[2J")
	if args.Footer != "" {
		// Keep the first output row clear of the footer's reserved bottom line.
		fmt.Println()
	}
	fmt.Print(buf.String())
	if args.Footer != "" {
		t.printFooter(args.Footer)
	}
	return nil
}

func (t *TermRefresher) printFooter(footerText string) {
	pad := t.width - len(footerText)
	if pad < 0 {
		pad = 0
	}
	// Park the cursor on the bottom row, then draw the footer as black text on a light blue
	// banner padded to the full terminal width.
	fmt.Printf("\033[%d;1H", t.height)
	fmt.Print("\033[48;5;117m\033[30m")
	fmt.Printf("%s%*s", footerText, pad, "")
	fmt.Print("\033[0m")
}

// FlashTerminal rings the terminal bell and briefly inverts the screen so change notifications are
// noticeable even when the terminal is not focused.
func FlashTerminal() {
	fmt.Print("\n\a")
	fmt.Print("\033[?5h")
	time.Sleep(100 * time.Millisecond)
	fmt.Print("\033[?5l")
}
