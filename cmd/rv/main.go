package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vanderheijden86/repoview/pkg/config"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/ui"
	"github.com/vanderheijden86/repoview/pkg/version"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configFlag := flag.String("config", "", "Config file (default: ~/.config/rv/config.yaml)")
	urlFlag := flag.String("url", "", "Server base URL, or a full tree URL")
	rootFlag := flag.String("root", "", "Tree URL to open, relative to -url")
	localFlag := flag.String("local", "", "Browse a local directory")
	sourceFlag := flag.String("source", "", "Browse a named source from the config")
	noCache := flag.Bool("no-cache", false, "Disable the response cache")
	noWatch := flag.Bool("no-watch", false, "Do not reload local sources when files change")
	robotTree := flag.Int("robot-tree", -1, "Print the tree expanded N levels deep as JSON and exit")
	robotMetrics := flag.Bool("robot-metrics", false, "Include timing and cache metrics in robot output")
	debugFlag := flag.Bool("debug", false, "Write debug logs (to RV_DEBUG_FILE, or stderr)")
	flag.Parse()

	if *debugFlag && !debug.Enabled() {
		debug.SetEnabled(true)
	}

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: rv [options]")
		fmt.Println("\nA terminal browser for repository trees, remote or on disk.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("rv %s\n", version.String())
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ref, err := resolveSource(cfg, *urlFlag, *localFlag, *rootFlag, *sourceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	robot := *robotTree >= 0
	sess, err := openSession(ref, cfg, sessionOptions{
		NoCache: *noCache,
		Watch:   !robot && !*noWatch && cfg.WatchEnabled(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", ref.Name, err)
		os.Exit(1)
	}
	defer sess.Close()

	if robot {
		if err := runRobotTree(context.Background(), os.Stdout, sess, *robotTree, *robotMetrics); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "rv needs a terminal; use --robot-tree for scripted output")
		os.Exit(2)
	}

	opts := ui.OptionsFromConfig(cfg)
	opts.Fetcher = sess.contents
	opts.RootURL = sess.rootURL
	opts.Watcher = sess.watcher
	opts.OnSourceChange = sess.invalidate
	opts.ResolveURL = sess.resolve
	opts.MarkdownStyle = markdownStyle()

	m, err := ui.NewModel(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running repository browser: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// markdownStyle picks the glamour style matching the terminal background.
func markdownStyle() string {
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set RV_TUI_AUTOCLOSE_MS.
	if ms := autocloseDelay(os.Getenv("RV_TUI_AUTOCLOSE_MS")); ms > 0 {
		go func() {
			timer := time.NewTimer(ms)
			defer timer.Stop()

			select {
			case <-runDone:
				return
			case <-timer.C:
			}

			p.Quit()

			select {
			case <-runDone:
				return
			case <-time.After(2 * time.Second):
			}

			p.Kill()
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

func autocloseDelay(v string) time.Duration {
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
