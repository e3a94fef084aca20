// A hand-rolled flag loop (--headless/--tar/--zip/--unzip/--dir/--text,
// positional send/receive/history) is replaced here with spf13/cobra
// subcommands: server, client <host:port>, and history. Role selection
// (sender vs receiver) moves from a rendezvous code to an interactive
// "(S)end or (R)eceive files?" prompt.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jend-sync/jend/internal/audit"
	"github.com/jend-sync/jend/internal/config"
	"github.com/jend-sync/jend/internal/logx"
	"github.com/jend-sync/jend/internal/netx"
	"github.com/jend-sync/jend/internal/progress"
	"github.com/jend-sync/jend/internal/receiver"
	"github.com/jend-sync/jend/internal/sender"
	"github.com/jend-sync/jend/internal/ui"
)

func main() {
	var headless bool

	root := &cobra.Command{
		Use:   "jend",
		Short: "peer-to-peer directory synchronization",
	}
	root.PersistentFlags().BoolVar(&headless, "headless", false, "run without the terminal UI")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "bind an ephemeral TCP port and wait for a peer to connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(headless)
		},
	}

	clientCmd := &cobra.Command{
		Use:   "client <host:port>",
		Short: "connect to a waiting jend server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(args[0], headless)
		},
	}

	var clearHistory bool
	historyCmd := &cobra.Command{
		Use:   "history [id]",
		Short: "show or clear past session history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearHistory {
				if err := audit.ClearHistory(); err != nil {
					return err
				}
				fmt.Println("History cleared.")
				return nil
			}
			if len(args) == 1 {
				audit.ShowDetail(args[0])
				return nil
			}
			audit.ShowHistory()
			return nil
		},
	}
	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "clear transfer history")

	root.AddCommand(serverCmd, clientCmd, historyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(headless bool) error {
	ep, listener, err := netx.Listen("0.0.0.0:0")
	if err != nil {
		return err
	}
	fmt.Printf("listening on port %d\n", listener.Addr().(*net.TCPAddr).Port)
	if _, err := ep.AcceptControl(); err != nil {
		return err
	}
	return runSession(ep, headless)
}

func runClient(addr string, headless bool) error {
	ep, err := netx.DialClient(addr)
	if err != nil {
		return err
	}
	return runSession(ep, headless)
}

func runSession(ep netx.Endpoint, headless bool) error {
	settings, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("reading settings.json: %w", err)
	}
	sendRoot, recvRoot := settings.Resolve()

	role, root := promptRole(sendRoot, recvRoot)

	reporter, ch := progress.NewChan(256)
	stats := &statsReporter{inner: reporter}

	start := time.Now()
	var runErr error

	if headless {
		go drainHeadless(ch)
		runErr = runRole(ep, role, root, stats)
	} else {
		model := ui.NewModel(role, root)
		p := tea.NewProgram(model)

		go func() {
			for e := range ch {
				p.Send(ui.ProgressMsg(e))
			}
		}()
		go func() {
			runErr = runRole(ep, role, root, stats)
			p.Send(ui.DoneMsg{FileCount: stats.files, Bytes: stats.bytes})
		}()

		if _, err := p.Run(); err != nil {
			return err
		}
	}

	entry := audit.LogEntry{
		Role:       roleName(role),
		Root:       root,
		FileCount:  stats.files,
		TotalBytes: int64(stats.bytes),
		Duration:   time.Since(start).Seconds(),
	}
	if runErr != nil {
		entry.Status = "failed"
		entry.Error = runErr.Error()
	} else {
		entry.Status = "success"
	}
	if logErr := audit.WriteEntry(entry); logErr != nil {
		logx.WithField("error", logErr).Warn("failed to write session history entry")
	}
	return runErr
}

func runRole(ep netx.Endpoint, role ui.Role, root string, reporter progress.Reporter) error {
	if role == ui.RoleSender {
		return sender.Run(ep, root, reporter)
	}
	return receiver.Run(ep, root, reporter)
}

func promptRole(sendRoot, recvRoot string) (ui.Role, string) {
	fmt.Print("(S)end or (R)eceive files? ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "r") {
		return ui.RoleReceiver, recvRoot
	}
	return ui.RoleSender, sendRoot
}

func roleName(r ui.Role) string {
	if r == ui.RoleReceiver {
		return "receiver"
	}
	return "sender"
}

func drainHeadless(ch <-chan progress.Event) {
	for e := range ch {
		switch e.Kind {
		case progress.StartFile:
			logx.WithField("file", e.Name).WithField("size", e.Size).Info("start")
		case progress.FinishFile:
			logx.WithField("id", e.ID).Info("finish")
		}
	}
}

// statsReporter tallies the totals written to history while forwarding
// every event on to the real reporter (the channel feeding the UI, or
// the one drainHeadless logs from in headless mode).
type statsReporter struct {
	inner progress.Reporter

	mu    sync.Mutex
	files int
	bytes uint64
}

func (s *statsReporter) Report(e progress.Event) {
	switch e.Kind {
	case progress.AddData:
		s.mu.Lock()
		s.bytes += e.Delta
		s.mu.Unlock()
	case progress.FinishFile:
		s.mu.Lock()
		s.files++
		s.mu.Unlock()
	}
	s.inner.Report(e)
}
