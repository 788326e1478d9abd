package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"segbridge/cli"
	"segbridge/config"
	"segbridge/database"
	"segbridge/handlers"
	"segbridge/pipeline"
	"segbridge/service"
	"segbridge/state"
	"segbridge/toolkit"
)

func main() {
	// Load environment variables and parse CLI flags
	config.ParseFlags()

	// CLI mode talks to a running service and needs no log file of its own
	if config.Settings.CLIMode {
		mainCLI()
		return
	}

	// One-shot pipeline mode logs to the console like the original script
	if config.Settings.PipelineMode {
		os.Exit(mainPipeline())
	}

	tk := toolkit.NewManager(config.Settings.ToolkitConfigRoot)

	switch {
	case config.Settings.CheckMode:
		os.Exit(mainCheck(tk))
	case config.Settings.ConfigureMode:
		os.Exit(mainConfigure(tk))
	case config.Settings.InitTokenMode:
		os.Exit(mainInitToken())
	}

	logFile, err := setupLogging(config.Settings.LogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	mainServe(tk)
}

// mainPipeline reproduces the delegated pipeline script: one blocking run,
// console output, exit 0 on success and 1 on any failure.
func mainPipeline() int {
	if config.Settings.InputPath == "" || config.Settings.OutputDir == "" {
		fmt.Fprintln(os.Stderr, "Error: --pipeline requires -i/--input and -o/--output")
		return 1
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	tk := toolkit.NewManager(config.Settings.ToolkitConfigRoot)
	_, err := pipeline.Run(context.Background(), tk, pipeline.Options{
		InputPath: config.Settings.InputPath,
		OutputDir: config.Settings.OutputDir,
		KeepCSV:   config.Settings.KeepCSV,
		Console:   os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// mainCheck validates the stored configuration and prints both verdicts.
func mainCheck(tk *toolkit.Manager) int {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	cfg := tk.Config()
	fmt.Printf("Config file:   %s\n", tk.Path())
	fmt.Printf("SynthSeg path: %s\n", orUnset(cfg.SynthSegPath))
	fmt.Printf("Python path:   %s\n", orUnset(cfg.PythonPath))
	fmt.Println()

	installOK, installMsg := toolkit.ValidateInstall(cfg.SynthSegPath)
	fmt.Printf("Installation: %s %s\n", verdict(installOK), installMsg)

	pyOK, pyMsg := toolkit.ValidatePython(cfg.PythonPath,
		time.Duration(config.Settings.ImportProbeTimeoutSeconds)*time.Second,
		time.Duration(config.Settings.PackageProbeTimeoutSeconds)*time.Second)
	fmt.Printf("Python:       %s %s\n", verdict(pyOK), pyMsg)

	if installOK && pyOK {
		return 0
	}
	return 1
}

// mainConfigure saves toolkit paths from the command line, validating first
// unless --force is given.
func mainConfigure(tk *toolkit.Manager) int {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	if config.Settings.SynthSegPath == "" || config.Settings.PythonPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --configure requires --synthseg and --python")
		return 1
	}

	svc := service.NewToolkitService(tk)
	report, err := svc.Save(config.Settings.SynthSegPath, config.Settings.PythonPath, config.Settings.Force)
	if report != nil {
		fmt.Printf("Installation: %s %s\n", verdict(report.InstallOK), report.InstallMessage)
		fmt.Printf("Python:       %s %s\n", verdict(report.PythonOK), report.PythonMessage)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Use --force to save anyway.")
		return 1
	}

	fmt.Printf("Saved %s\n", tk.Path())
	if config.Settings.Force && report != nil && !report.OK() {
		fmt.Println("Warning: saved despite failed validation (--force)")
	}
	return 0
}

// mainInitToken generates an API token, prints it once, and stores only the
// bcrypt hash.
func mainInitToken() int {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	if err := database.InitDB(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		return 1
	}
	defer database.CloseDB()

	token, err := handlers.InitAPIToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("API token (shown once, store it now):")
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Println("Every /api request except /api/health now needs:")
	fmt.Printf("  Authorization: Bearer %s\n", token)
	return 0
}

// mainServe runs the bridge service.
func mainServe(tk *toolkit.Manager) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("SegBridge starting up...")

	if err := database.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	service.InitServices(database.DB, state.Global, tk)

	if !tk.Configured() {
		log.Println("Warning: toolkit is not configured; runs will be rejected until PUT /api/config")
	}

	// Set Gin mode
	if config.Settings.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Direct Gin logs to the configured log file
	gin.DefaultWriter = log.Writer()
	gin.DefaultErrorWriter = log.Writer()

	// Disable Gin color logs to avoid ANSI issues on Windows terminals
	gin.DisableConsoleColor()

	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// API routes
	api := r.Group("/api")
	api.Use(handlers.AuthRequired())
	{
		// Toolkit configuration routes
		api.GET("/config", handlers.GetConfig)
		api.PUT("/config", handlers.UpdateConfig)
		api.POST("/config/validate", handlers.ValidateConfig)

		// Run routes
		api.POST("/runs", handlers.CreateRun)
		api.GET("/runs", handlers.ListRuns)
		api.GET("/runs/:id", handlers.GetRun)
		api.DELETE("/runs/:id", handlers.DeleteRun)
		api.POST("/runs/:id/stop", handlers.StopRun)
		api.GET("/runs/:id/progress", handlers.GetRunProgress)
		api.GET("/runs/:id/progress/stream", handlers.StreamRunProgress)
		api.GET("/runs/:id/volumes", handlers.GetRunVolumes)
		api.GET("/runs/:id/artifacts/:name", handlers.DownloadArtifact)

		// Error log routes
		api.GET("/error-logs", handlers.GetErrorLogs)
		api.DELETE("/error-logs", handlers.ClearErrorLogs)

		// System routes
		api.GET("/health", handlers.HealthCheck)
		api.GET("/metrics", handlers.GetMetrics)
		api.GET("/version", handlers.GetVersion)
		api.POST("/shutdown", handlers.Shutdown)
	}

	// Find an available port
	port := findAvailablePort(config.Settings.BindAddress, config.Settings.Port)
	if port != config.Settings.Port {
		log.Printf("Default port %d is busy. Switched to %d", config.Settings.Port, port)
	}

	addr := fmt.Sprintf("%s:%d", config.Settings.BindAddress, port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Create shutdown channel and expose to handlers
	shutdownChan := make(chan bool, 1)
	handlers.SetShutdownChannel(shutdownChan)

	// Wait for OS interrupt or API-triggered shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Received interrupt signal")
	case <-shutdownChan:
		log.Println("Shutdown triggered via API")
	}

	log.Println("SegBridge shutting down...")

	// Collect active runs under the lock
	state.Global.Lock()
	runIDs := make([]uint, 0, len(state.Global.Sessions))
	for id := range state.Global.Sessions {
		runIDs = append(runIDs, id)
	}
	state.Global.Unlock()

	// Cancel sessions outside the lock to avoid deadlocks
	for _, id := range runIDs {
		log.Printf("Stopping run: %d", id)
		state.Global.CancelAndRemoveSession(id)
	}

	if err := database.CloseDB(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	// Gracefully shut down HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// findAvailablePort searches for an available port
func findAvailablePort(bind string, startPort int) int {
	for port := startPort; port < startPort+100; port++ {
		addr := fmt.Sprintf("%s:%d", bind, port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port
		}
	}
	log.Fatal("No available ports found")
	return startPort
}

func verdict(ok bool) string {
	if ok {
		return "[OK]  "
	}
	return "[FAIL]"
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// mainCLI entrypoint for CLI (HTTP client mode)
func mainCLI() {
	// CLI mode skips DB load; acts as HTTP client
	log.SetFlags(log.Ldate | log.Ltime)

	serverURL := config.Settings.CLIServer

	fmt.Printf("SegBridge CLI - Connecting to %s\n", serverURL)

	cliInstance, err := cli.New(serverURL)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("\nTips:")
		fmt.Println("  1. Make sure the SegBridge service is running:")
		fmt.Println("     ./segbridge")
		fmt.Println("  2. Or specify a different server:")
		fmt.Printf("     ./segbridge --cli --server http://your-server:7790\n")
		os.Exit(1)
	}

	cliInstance.Start()
}
