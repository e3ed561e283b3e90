package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabhirte/internal/applog"
	"github.com/lotas/tabhirte/internal/browser"
	"github.com/lotas/tabhirte/internal/coordinator"
	"github.com/lotas/tabhirte/internal/genai"
	"github.com/lotas/tabhirte/internal/grouping"
	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/summarize"
	"github.com/lotas/tabhirte/internal/tui"
	"github.com/lotas/tabhirte/internal/types"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "group":
			runGroup(os.Args[2:])
			return
		case "summarize":
			runSummarize(os.Args[2:])
			return
		case "saved":
			runSaved(os.Args[2:])
			return
		case "profiles":
			runProfiles()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("tabhirte", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path (env: TABHIRTE_DB)")
	fs.Parse(os.Args[1:])

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	p := tea.NewProgram(tui.NewModel(store), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tabhirte — browser tab keeper with LLM auto-grouping

Usage:
  tabhirte                                  Browse the saved collection (TUI)
    --db <path>            Database path (env: TABHIRTE_DB)

  tabhirte serve                            Run the coordinator for the extension
    --port <n>             WebSocket port (default: 19292)
    --db <path>            Database path
    --model <name>         Model name (env: TABHIRTE_MODEL, default: llama3.2)

  tabhirte group                            Auto-group tabs by topic
    --profile <name>       Firefox profile (reads the session store)
    --saved                Group the saved collection instead of open tabs
    --model <name>         Model name
    --apply                Apply without confirmation

  tabhirte saved list                       Print the saved collection

  tabhirte summarize                        Summarize tabs or a single page
    --profile <name>       Firefox profile (recap over session tabs)
    --url <url>            Summarize one page instead
    --style <s>            Single-page style: bullets or blurb (default: blurb)
    --instruction <text>   Extra steering for the recap
    --model <name>         Model name

  tabhirte profiles                         List Firefox profiles

Environment:
  TABHIRTE_PROFILE   Default Firefox profile (overridden by --profile)
  TABHIRTE_MODEL     Default model (overridden by --model)
  TABHIRTE_DB        Database path (default: ~/.local/share/tabhirte/tabhirte.db)
  OLLAMA_HOST        Backend URL (default: http://localhost:11434)
`)
}

// resolveModel returns the model from the flag if set, then the
// TABHIRTE_MODEL environment variable, then the default.
func resolveModel(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("TABHIRTE_MODEL"); v != "" {
		return v
	}
	return "llama3.2"
}

func resolveHost() string {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		return v
	}
	return "http://localhost:11434"
}

func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABHIRTE_PROFILE")
}

func openStore(flagValue string) (*saved.Store, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv("TABHIRTE_DB")
	}
	if path == "" {
		var err error
		path, err = saved.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return saved.Open(path)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 19292, "WebSocket port")
	dbPath := fs.String("db", "", "Database path")
	model := fs.String("model", "", "Model name")
	fs.Parse(args)

	home, _ := os.UserHomeDir()
	if err := applog.Init(filepath.Join(home, ".local", "share", "tabhirte")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log init failed: %v\n", err)
	}
	defer applog.Close()

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := coordinator.New(*port, store, genai.New(resolveHost()), resolveModel(*model))
	fmt.Fprintf(os.Stderr, "Listening for the extension on 127.0.0.1:%d\n", *port)
	if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runGroup(args []string) {
	fs := flag.NewFlagSet("group", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	useSaved := fs.Bool("saved", false, "Group the saved collection instead of open tabs")
	model := fs.String("model", "", "Model name")
	dbPath := fs.String("db", "", "Database path")
	apply := fs.Bool("apply", false, "Apply without confirmation")
	fs.Parse(args)

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	client := genai.New(resolveHost())
	resolvedModel := resolveModel(*model)
	ctx := context.Background()

	var promptItems []grouping.PromptItem
	var tabs []types.LiveTab

	if *useSaved {
		items, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, it := range items {
			promptItems = append(promptItems, grouping.PromptItem{ID: it.ID, Title: it.Title})
		}
	} else {
		profile, err := browser.ResolveProfile(resolveProfileName(*profileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		tabs, err = browser.ReadSessionTabs(profile.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, tab := range tabs {
			promptItems = append(promptItems, grouping.PromptItem{ID: tab.ID, Title: tab.Title})
		}
	}

	if len(promptItems) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to group.")
		return
	}

	fmt.Fprintf(os.Stderr, "Asking %s to group %d tabs...\n", resolvedModel, len(promptItems))
	raw, err := client.Generate(ctx, resolvedModel, grouping.BuildPrompt(promptItems))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	proposal, err := grouping.Normalize(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nModel output was:\n%s\n", err, raw)
		os.Exit(1)
	}

	titles := make(map[string]string, len(promptItems))
	for _, it := range promptItems {
		titles[it.ID] = it.Title
	}
	groupNames := make([]string, 0, len(proposal))
	for name := range proposal {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		fmt.Printf("%s:\n", name)
		for _, id := range proposal[name] {
			if title, ok := titles[id]; ok {
				fmt.Printf("  - %s\n", title)
			}
		}
	}

	if !*apply {
		fmt.Print("Apply? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("No changes applied.")
			return
		}
	}

	var applied int
	err = store.Mutate(func(items []types.SavedItem) ([]types.SavedItem, error) {
		if *useSaved {
			next, n := saved.ApplyGrouping(items, proposal)
			applied = n
			return next, nil
		}
		next, n := saved.ApplyGroupingFromTabs(items, proposal, tabs, time.Now())
		applied = n
		return next, nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Grouped %d tabs.\n", applied)
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	pageURL := fs.String("url", "", "Summarize one page instead of a tab recap")
	style := fs.String("style", "blurb", "Single-page style: bullets or blurb")
	instruction := fs.String("instruction", "", "Extra steering for the recap")
	model := fs.String("model", "", "Model name")
	fs.Parse(args)

	client := genai.New(resolveHost())
	resolvedModel := resolveModel(*model)
	ctx := context.Background()

	if *pageURL != "" {
		title, body, err := summarize.FetchReadable(ctx, *pageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		text, err := summarize.Page(ctx, client, resolvedModel, title, body, summarize.Style(*style))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)
		return
	}

	profile, err := browser.ResolveProfile(resolveProfileName(*profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tabs, err := browser.ReadSessionTabs(profile.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	text, err := summarize.Tabs(ctx, client, resolvedModel, tabs, *instruction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(text)
}

func runSaved(args []string) {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(os.Stderr, "Usage: tabhirte saved list [--db path]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("saved list", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	fs.Parse(args[1:])

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	items, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("No saved tabs.")
		return
	}

	byGroup := make(map[string][]types.SavedItem)
	for _, it := range items {
		byGroup[it.GroupName()] = append(byGroup[it.GroupName()], it)
	}
	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%s:\n", name)
		for _, it := range byGroup[name] {
			when := time.UnixMilli(it.SavedAt).Format("2006-01-02")
			fmt.Printf("  - %s  %s  (%s)\n", it.Title, it.URL, when)
		}
	}
}

func runProfiles() {
	profiles, err := browser.DiscoverProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}
