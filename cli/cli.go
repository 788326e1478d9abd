// Package cli is the interactive readline client for a running SegBridge
// service. It talks HTTP only; the database stays on the server side.
package cli

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"segbridge/models"
)

// CLI drives the interactive loop
type CLI struct {
	rl      *readline.Instance
	running bool
	client  *Client
	servers *Config
}

// New creates a CLI connected to serverURL. A token stored for that server in
// ~/.segbridge/config.yaml is attached automatically.
func New(serverURL string) (*CLI, error) {
	servers, err := LoadConfig()
	if err != nil {
		// A broken local config file should not block the client.
		fmt.Printf("Warning: could not load CLI config: %v\n", err)
		servers = nil
	}

	token := ""
	if servers != nil {
		token = servers.TokenFor(serverURL)
	}
	client := NewClient(serverURL, token)

	// Test connectivity
	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("cannot connect to server: %v", err)
	}

	// Create readline instance; ignore Ctrl+C
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "segbridge> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %v", err)
	}

	return &CLI{
		rl:      rl,
		running: true,
		client:  client,
		servers: servers,
	}, nil
}

// Start runs the CLI loop
func (c *CLI) Start() {
	defer c.rl.Close()
	c.printWelcome()

	for c.running {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println("\nUse 'exit' to quit.")
				continue
			}
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		c.handleCommand(input)
	}
}

func (c *CLI) printWelcome() {
	PrintBanner("SegBridge - CLI Mode")
	fmt.Printf("\nConnected to: %s\n", c.client.baseURL)
	fmt.Println("Type 'help' for available commands")
}

// handleCommand routes user commands
func (c *CLI) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.showHelp()
	case "config":
		c.handleConfig(args)
	case "run":
		c.handleRun(args)
	case "runs", "list", "ls":
		c.handleRuns(args)
	case "show":
		c.handleShow(args)
	case "stop":
		c.handleStop(args)
	case "delete", "rm":
		c.handleDelete(args)
	case "volumes", "vol":
		c.handleVolumes(args)
	case "progress", "watch":
		c.handleProgress(args)
	case "server":
		c.handleServer(args)
	case "errors":
		c.handleErrors()
	case "health":
		c.handleHealth()
	case "version":
		c.handleVersion()
	case "clear":
		c.clearScreen()
	case "exit", "quit", "q":
		c.running = false
		fmt.Println("Bye")
	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
}

func (c *CLI) showHelp() {
	fmt.Println()
	PrintBanner("Available Commands")
	fmt.Println()

	commands := [][]string{
		{"help, h, ?", "Show this help message"},
		{"", ""},
		{"TOOLKIT CONFIGURATION:", ""},
		{"config show", "Show the toolkit paths"},
		{"config set <synthseg> <python>", "Save toolkit paths (add 'force' to skip validation)"},
		{"config validate", "Validate the configured paths"},
		{"", ""},
		{"SEGMENTATION RUNS:", ""},
		{"run <input> [output]", "Start a run (add 'keep-csv' to keep volumes.csv)"},
		{"runs [page]", "List runs, newest first"},
		{"show <id>", "Show run details"},
		{"stop <id>", "Stop an active run"},
		{"delete <id>", "Delete a finished run record"},
		{"volumes <id>", "Show region volumes of a finished run"},
		{"progress <id>", "Follow the live output of an active run"},
		{"", ""},
		{"SAVED SERVERS (~/.segbridge/config.yaml):", ""},
		{"server list", "List saved servers"},
		{"server add <name> <url> [token]", "Save a server (token from --init-token)"},
		{"server rm <name>", "Remove a saved server"},
		{"server default <name>", "Set the default server"},
		{"", ""},
		{"SYSTEM:", ""},
		{"errors", "Show recent server-side errors"},
		{"health", "Check server health"},
		{"version", "Show server version"},
		{"clear", "Clear the screen"},
		{"exit, quit, q", "Exit the CLI"},
	}

	for _, cmd := range commands {
		if cmd[0] == "" {
			fmt.Println()
			continue
		}
		if strings.HasSuffix(cmd[0], ":") {
			fmt.Println(color.CyanString(cmd[0]))
			continue
		}
		fmt.Printf("  %-34s %s\n", cmd[0], cmd[1])
	}
	fmt.Println()
}

func (c *CLI) handleConfig(args []string) {
	if len(args) == 0 {
		args = []string{"show"}
	}

	switch args[0] {
	case "show":
		info, err := c.client.GetConfig()
		if err != nil {
			printError(err)
			return
		}
		fmt.Printf("SynthSeg path: %s\n", orDash(info.SynthSegPath))
		fmt.Printf("Python path:   %s\n", orDash(info.PythonPath))
		fmt.Printf("Configured:    %s\n", yesNo(info.Configured))

	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: config set <synthseg-dir> <python-exe> [force]")
			return
		}
		force := len(args) > 3 && args[3] == "force"
		report, msg, err := c.client.SetConfig(models.ToolkitUpdate{
			SynthSegPath: args[1],
			PythonPath:   args[2],
		}, force)
		if report != nil && (report.InstallMessage != "" || report.PythonMessage != "") {
			fmt.Printf("Installation: %s\n", verdictLine(report.InstallOK, report.InstallMessage))
			fmt.Printf("Python:       %s\n", verdictLine(report.PythonOK, report.PythonMessage))
		}
		if err != nil {
			printError(err)
			return
		}
		fmt.Println(color.GreenString(msg))

	case "validate":
		report, err := c.client.ValidateConfig()
		if err != nil {
			printError(err)
			return
		}
		fmt.Printf("Installation: %s\n", verdictLine(report.InstallOK, report.InstallMessage))
		fmt.Printf("Python:       %s\n", verdictLine(report.PythonOK, report.PythonMessage))

	default:
		fmt.Println("Usage: config show | config set <synthseg> <python> [force] | config validate")
	}
}

func (c *CLI) handleRun(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: run <input.nii.gz> [output-dir] [keep-csv]")
		return
	}

	req := models.RunCreate{InputPath: args[0]}
	for _, arg := range args[1:] {
		if arg == "keep-csv" {
			req.KeepCSV = true
			continue
		}
		req.OutputDir = arg
	}

	run, err := c.client.CreateRun(req)
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("%s run %d started (output: %s)\n", color.GreenString("OK"), run.ID, run.OutputDir)
	fmt.Printf("Follow it with: progress %d\n", run.ID)
}

func (c *CLI) handleRuns(args []string) {
	page := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			page = n
		}
	}

	runs, err := c.client.ListRuns(page)
	if err != nil {
		printError(err)
		return
	}
	if len(runs.Runs) == 0 {
		fmt.Println("No runs.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Status", "Input", "Created", "Duration")
	for _, run := range runs.Runs {
		table.Append([]string{
			strconv.FormatUint(uint64(run.ID), 10),
			colorStatus(run.Status),
			truncatePath(run.InputPath, 40),
			humanize.Time(run.CreatedAt),
			formatDuration(run.DurationMS),
		})
	}
	table.Render()
	fmt.Printf("Page %d of %d run(s) total\n", runs.Page, runs.Total)
}

func (c *CLI) handleShow(args []string) {
	id, ok := parseID(args)
	if !ok {
		return
	}

	run, err := c.client.GetRun(id)
	if err != nil {
		printError(err)
		return
	}

	fmt.Printf("Run %d\n", run.ID)
	fmt.Printf("  Status:       %s\n", colorStatus(run.Status))
	fmt.Printf("  Input:        %s\n", run.InputPath)
	fmt.Printf("  Output dir:   %s\n", run.OutputDir)
	fmt.Printf("  Keep CSV:     %s\n", yesNo(run.KeepCSV))
	fmt.Printf("  Created:      %s\n", run.CreatedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("  Finished:     %s (%s)\n", run.FinishedAt.Format(time.RFC3339), formatDuration(run.DurationMS))
	}
	if run.SegmentationPath != "" {
		fmt.Printf("  Segmentation: %s%s\n", run.SegmentationPath, fileSizeSuffix(run.SegmentationPath))
	}
	if run.ReportPath != "" {
		fmt.Printf("  Report:       %s%s\n", run.ReportPath, fileSizeSuffix(run.ReportPath))
	}
	if run.CSVPath != "" {
		fmt.Printf("  Volumes CSV:  %s%s\n", run.CSVPath, fileSizeSuffix(run.CSVPath))
	}
	if run.ErrorMessage != "" {
		fmt.Printf("  Error:        %s\n", color.RedString(run.ErrorMessage))
	}
	if run.Stderr != "" {
		fmt.Println("  --- captured stderr (tail) ---")
		for _, line := range tailLines(run.Stderr, 10) {
			fmt.Printf("  %s\n", line)
		}
	}
}

func (c *CLI) handleStop(args []string) {
	id, ok := parseID(args)
	if !ok {
		return
	}
	msg, err := c.client.StopRun(id)
	if err != nil {
		printError(err)
		return
	}
	fmt.Println(color.YellowString(msg))
}

func (c *CLI) handleDelete(args []string) {
	id, ok := parseID(args)
	if !ok {
		return
	}
	if _, err := c.client.DeleteRun(id); err != nil {
		printError(err)
		return
	}
	fmt.Printf("Run %d deleted (artifacts stay on disk)\n", id)
}

func (c *CLI) handleVolumes(args []string) {
	id, ok := parseID(args)
	if !ok {
		return
	}

	volumes, err := c.client.GetVolumes(id)
	if err != nil {
		printError(err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Region", "Class", "Hemisphere", "Volume (mm3)")
	for _, region := range volumes.Regions {
		class, hemi := "-", "-"
		if region.Known {
			class, hemi = region.Label.Class, region.Label.Hemisphere
		}
		table.Append([]string{
			region.Column,
			class,
			hemi,
			strconv.FormatFloat(region.Volume, 'f', 1, 64),
		})
	}
	table.Render()

	if s := volumes.Summary; s != nil {
		fmt.Printf("Subject: %s\n", orDash(volumes.Subject))
		fmt.Printf("Regions: %d  Total: %.1f mm3  Mean: %.1f  StdDev: %.1f  Min: %.1f  Max: %.1f\n",
			s.Regions, s.Total, s.Mean, s.StdDev, s.Min, s.Max)
	}
}

// handleProgress follows an active run's output until it finishes.
func (c *CLI) handleProgress(args []string) {
	id, ok := parseID(args)
	if !ok {
		return
	}

	fmt.Printf("Following run %d (Ctrl+C returns to the prompt when it finishes)...\n", id)
	var from uint64
	for {
		p, err := c.client.GetProgress(id, from)
		if err != nil {
			printError(err)
			return
		}
		for _, line := range p.Lines {
			fmt.Println(line)
		}
		if p.Dropped > 0 && from == 0 {
			fmt.Printf("(%d earlier lines dropped)\n", p.Dropped)
		}
		from = p.Next
		if !p.Active {
			fmt.Printf("Run %d finished: %s\n", id, colorStatus(p.Status))
			return
		}
		time.Sleep(time.Second)
	}
}

func (c *CLI) handleServer(args []string) {
	if c.servers == nil {
		fmt.Println("CLI config is unavailable.")
		return
	}
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list", "ls":
		if len(c.servers.Servers) == 0 {
			fmt.Println("No saved servers.")
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "URL", "Token", "Default")
		for name, server := range c.servers.Servers {
			def := ""
			if name == c.servers.DefaultServer {
				def = "*"
			}
			table.Append([]string{name, server.URL, yesNo(server.Token != ""), def})
		}
		table.Render()

	case "add":
		if len(args) < 3 {
			fmt.Println("Usage: server add <name> <url> [token]")
			return
		}
		token := ""
		if len(args) > 3 {
			token = args[3]
		}
		if err := c.servers.AddServer(args[1], args[2], "", token); err != nil {
			printError(err)
			return
		}
		fmt.Printf("Saved server '%s'\n", args[1])

	case "rm", "remove":
		if len(args) < 2 {
			fmt.Println("Usage: server rm <name>")
			return
		}
		if err := c.servers.RemoveServer(args[1]); err != nil {
			printError(err)
			return
		}
		fmt.Printf("Removed server '%s'\n", args[1])

	case "default":
		if len(args) < 2 {
			fmt.Println("Usage: server default <name>")
			return
		}
		if _, err := c.servers.GetServer(args[1]); err != nil {
			printError(err)
			return
		}
		c.servers.DefaultServer = args[1]
		if err := c.servers.Save(); err != nil {
			printError(err)
			return
		}
		fmt.Printf("Default server is now '%s'\n", args[1])

	default:
		fmt.Println("Usage: server list | server add <name> <url> [token] | server rm <name> | server default <name>")
	}
}

func (c *CLI) handleErrors() {
	logs, err := c.client.GetErrorLogs()
	if err != nil {
		printError(err)
		return
	}
	if len(logs) == 0 {
		fmt.Println("No recent errors.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Level", "Source", "Message")
	for _, entry := range logs {
		table.Append([]string{
			humanize.Time(entry.Timestamp),
			entry.Level,
			entry.Source,
			truncatePath(entry.Message, 60),
		})
	}
	table.Render()
}

func (c *CLI) handleHealth() {
	health, err := c.client.Health()
	if err != nil {
		printError(err)
		if health == nil {
			return
		}
	}
	for _, key := range []string{"status", "db_healthy", "toolkit_configured", "active_runs"} {
		if value, exists := health[key]; exists {
			fmt.Printf("  %-20s %v\n", key+":", value)
		}
	}
}

func (c *CLI) handleVersion() {
	v, err := c.client.Version()
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("Server version: %s (commit %s, built %s)\n", v["version"], v["commit"], v["build_time"])
}

func (c *CLI) clearScreen() {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = os.Stdout
		cmd.Run()
		return
	}
	fmt.Print("\033[H\033[2J")
}

// helpers

func parseID(args []string) (uint, bool) {
	if len(args) == 0 {
		fmt.Println("Usage: <command> <run-id>")
		return 0, false
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Printf("Invalid run ID: %s\n", args[0])
		return 0, false
	}
	return uint(id), true
}

func printError(err error) {
	fmt.Println(color.RedString("Error: %v", err))
}

func colorStatus(status string) string {
	switch status {
	case models.StatusSucceeded:
		return color.GreenString(status)
	case models.StatusFailed:
		return color.RedString(status)
	case models.StatusRunning, models.StatusQueued:
		return color.CyanString(status)
	case models.StatusStopped:
		return color.YellowString(status)
	default:
		return status
	}
}

func verdictLine(ok bool, msg string) string {
	if ok {
		return color.GreenString("[OK] ") + msg
	}
	return color.RedString("[FAIL] ") + msg
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncatePath(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func fileSizeSuffix(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
}

func tailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
