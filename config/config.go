package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"segbridge/version"
)

// Config holds SegBridge runtime configuration.
type Config struct {
	LogLevel             string
	LogFilePath          string
	BindAddress          string
	Port                 int
	DatabaseURL          string
	SQLitePragmasEnabled bool
	SQLiteBusyTimeoutMS  int
	SQLiteJournalMode    string
	SQLiteSynchronous    string
	SQLiteForeignKeys    bool
	SQLiteMaxOpenConns   int
	SQLiteMaxIdleConns   int
	SQLiteConnMaxIdleSec int
	SQLiteConnMaxLifeSec int

	// ToolkitConfigRoot overrides the per-user directory that holds the
	// SynthSeg toolkit config file. Empty means the platform default.
	ToolkitConfigRoot string

	MaxConcurrentRuns   int
	RunsDir             string
	ProgressBufferLines int

	ImportProbeTimeoutSeconds  int
	PackageProbeTimeoutSeconds int

	CLIMode   bool
	CLIServer string // Server URL for CLI mode

	PipelineMode  bool
	CheckMode     bool
	ConfigureMode bool
	InitTokenMode bool

	// One-shot pipeline arguments
	InputPath string
	OutputDir string
	KeepCSV   bool

	// Configure-mode arguments
	SynthSegPath string
	PythonPath   string
	Force        bool
}

// Settings is the global configuration instance populated from environment variables and flags.
var Settings *Config

// init initializes the package-level Settings with default configuration values sourced from environment variables.
// It sets logging, server, SQLite pragmas and connection parameters, run limits, and validation probe timeouts using environment overrides or sensible defaults.
func init() {
	Settings = &Config{
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		LogFilePath:          getEnv("LOG_FILE", "./segbridge.log"),
		BindAddress:          getEnv("BIND_ADDRESS", "127.0.0.1"),
		Port:                 getEnvInt("PORT", 7790),
		DatabaseURL:          getEnv("DATABASE_URL", "segbridge.db"),
		SQLitePragmasEnabled: getEnvBool("SQLITE_PRAGMAS_ENABLED", true),
		SQLiteBusyTimeoutMS:  getEnvInt("SQLITE_BUSY_TIMEOUT_MS", 5000),
		SQLiteJournalMode:    getEnv("SQLITE_JOURNAL_MODE", "WAL"),
		SQLiteSynchronous:    getEnv("SQLITE_SYNCHRONOUS", "NORMAL"),
		SQLiteForeignKeys:    getEnvBool("SQLITE_FOREIGN_KEYS", true),
		SQLiteMaxOpenConns:   getEnvInt("SQLITE_MAX_OPEN_CONNS", 1),
		SQLiteMaxIdleConns:   getEnvInt("SQLITE_MAX_IDLE_CONNS", 1),
		SQLiteConnMaxIdleSec: getEnvInt("SQLITE_CONN_MAX_IDLE_SECONDS", 300),
		SQLiteConnMaxLifeSec: getEnvInt("SQLITE_CONN_MAX_LIFETIME_SECONDS", 0),

		ToolkitConfigRoot: getEnv("TOOLKIT_CONFIG_ROOT", ""),

		MaxConcurrentRuns:   getEnvInt("MAX_CONCURRENT_RUNS", 1),
		RunsDir:             getEnv("RUNS_DIR", "./segbridge-runs"),
		ProgressBufferLines: getEnvInt("PROGRESS_BUFFER_LINES", 500),

		ImportProbeTimeoutSeconds:  getEnvInt("IMPORT_PROBE_TIMEOUT_SECONDS", 10),
		PackageProbeTimeoutSeconds: getEnvInt("PACKAGE_PROBE_TIMEOUT_SECONDS", 5),

		CLIMode: getEnvBool("CLI_MODE", false),
	}
}

// ParseFlags parses command-line flags, applies any overrides to the package-level Settings, and updates configuration accordingly.
// It also provides a custom usage message and handles --help (prints usage and exits) and --version (prints build info and exits).
func ParseFlags() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "SegBridge - SynthSeg brain segmentation bridge\n\n")
		fmt.Fprintf(out, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(out, "Modes:")
		fmt.Fprintln(out, "  (default)        Run the bridge service (HTTP API + run history)")
		fmt.Fprintln(out, "  --pipeline       Run one segmentation and exit (requires -i and -o)")
		fmt.Fprintln(out, "  --check          Validate the toolkit configuration and exit")
		fmt.Fprintln(out, "  --configure      Save toolkit paths (requires --synthseg and --python)")
		fmt.Fprintln(out, "  --cli            Interactive client for a running bridge service")
		fmt.Fprintln(out, "  --init-token     Generate an API token and store its hash")
		fmt.Fprintln(out, "\nOptions:")
		flag.PrintDefaults()
		fmt.Fprintln(out, "\nEnvironment variables:")
		fmt.Fprintln(out, "  LOG_LEVEL                         Log level (DEBUG, INFO, WARN, ERROR)")
		fmt.Fprintln(out, "  LOG_FILE                          Log file path (default ./segbridge.log)")
		fmt.Fprintln(out, "  BIND_ADDRESS                      HTTP bind address (default 127.0.0.1)")
		fmt.Fprintln(out, "  PORT                              HTTP server port (default 7790)")
		fmt.Fprintln(out, "  DATABASE_URL                      SQLite database path (default segbridge.db)")
		fmt.Fprintln(out, "  SQLITE_PRAGMAS_ENABLED            Enable SQLite PRAGMAs (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_BUSY_TIMEOUT_MS            SQLite busy_timeout in milliseconds (default 5000)")
		fmt.Fprintln(out, "  SQLITE_JOURNAL_MODE               SQLite journal_mode (default WAL)")
		fmt.Fprintln(out, "  SQLITE_SYNCHRONOUS                SQLite synchronous (default NORMAL)")
		fmt.Fprintln(out, "  SQLITE_FOREIGN_KEYS               Enable SQLite foreign_keys (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_MAX_OPEN_CONNS             SQLite MaxOpenConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_MAX_IDLE_CONNS             SQLite MaxIdleConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_IDLE_SECONDS      SQLite ConnMaxIdleTime in seconds (default 300)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_LIFETIME_SECONDS  SQLite ConnMaxLifetime in seconds (default 0)")
		fmt.Fprintln(out, "  TOOLKIT_CONFIG_ROOT               Override for the toolkit config directory")
		fmt.Fprintln(out, "  MAX_CONCURRENT_RUNS               Maximum concurrent segmentation runs (default 1)")
		fmt.Fprintln(out, "  RUNS_DIR                          Default root for service-mode run outputs (default ./segbridge-runs)")
		fmt.Fprintln(out, "  PROGRESS_BUFFER_LINES             Progress lines kept per active run (default 500)")
		fmt.Fprintln(out, "  IMPORT_PROBE_TIMEOUT_SECONDS      Timeout for the combined Python import probe (default 10)")
		fmt.Fprintln(out, "  PACKAGE_PROBE_TIMEOUT_SECONDS     Timeout per individual package probe (default 5)")
	}

	port := flag.Int("port", Settings.Port, "HTTP server port (overrides PORT)")
	bind := flag.String("bind", Settings.BindAddress, "HTTP bind address (overrides BIND_ADDRESS)")
	db := flag.String("db", Settings.DatabaseURL, "SQLite database path (overrides DATABASE_URL)")
	sqlitePragmasEnabled := flag.Bool("sqlite-pragmas", Settings.SQLitePragmasEnabled, "Enable SQLite PRAGMAs (overrides SQLITE_PRAGMAS_ENABLED)")
	sqliteBusyTimeoutMS := flag.Int("sqlite-busy-timeout-ms", Settings.SQLiteBusyTimeoutMS, "SQLite busy_timeout in milliseconds (overrides SQLITE_BUSY_TIMEOUT_MS)")
	sqliteJournalMode := flag.String("sqlite-journal-mode", Settings.SQLiteJournalMode, "SQLite journal_mode (overrides SQLITE_JOURNAL_MODE)")
	sqliteSynchronous := flag.String("sqlite-synchronous", Settings.SQLiteSynchronous, "SQLite synchronous (overrides SQLITE_SYNCHRONOUS)")
	sqliteForeignKeys := flag.Bool("sqlite-foreign-keys", Settings.SQLiteForeignKeys, "Enable SQLite foreign_keys PRAGMA (overrides SQLITE_FOREIGN_KEYS)")
	sqliteMaxOpenConns := flag.Int("sqlite-max-open-conns", Settings.SQLiteMaxOpenConns, "SQLite MaxOpenConns (overrides SQLITE_MAX_OPEN_CONNS)")
	sqliteMaxIdleConns := flag.Int("sqlite-max-idle-conns", Settings.SQLiteMaxIdleConns, "SQLite MaxIdleConns (overrides SQLITE_MAX_IDLE_CONNS)")
	sqliteConnMaxIdleSec := flag.Int("sqlite-conn-max-idle-seconds", Settings.SQLiteConnMaxIdleSec, "SQLite ConnMaxIdleTime in seconds (overrides SQLITE_CONN_MAX_IDLE_SECONDS)")
	sqliteConnMaxLifeSec := flag.Int("sqlite-conn-max-lifetime-seconds", Settings.SQLiteConnMaxLifeSec, "SQLite ConnMaxLifetime in seconds (overrides SQLITE_CONN_MAX_LIFETIME_SECONDS)")
	logLevel := flag.String("log-level", Settings.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL)")
	logFile := flag.String("log-file", Settings.LogFilePath, "Log file path (overrides LOG_FILE)")
	toolkitRoot := flag.String("toolkit-root", Settings.ToolkitConfigRoot, "Toolkit config directory override (overrides TOOLKIT_CONFIG_ROOT)")
	maxRuns := flag.Int("max-concurrent-runs", Settings.MaxConcurrentRuns, "Maximum concurrent segmentation runs (overrides MAX_CONCURRENT_RUNS)")
	runsDir := flag.String("runs-dir", Settings.RunsDir, "Default root for service-mode run outputs (overrides RUNS_DIR)")
	progressLines := flag.Int("progress-buffer-lines", Settings.ProgressBufferLines, "Progress lines kept per active run (overrides PROGRESS_BUFFER_LINES)")

	cliMode := flag.Bool("cli", Settings.CLIMode, "Run in CLI mode (HTTP client only, no database)")
	cliServer := flag.String("server", "http://localhost:7790", "Server URL for CLI mode")

	pipelineMode := flag.Bool("pipeline", false, "Run one segmentation pipeline and exit")
	inputPath := flag.String("input", "", "Input MRI volume (.nii or .nii.gz) for --pipeline")
	flag.StringVar(inputPath, "i", "", "Shorthand for --input")
	outputDir := flag.String("output", "", "Output directory for --pipeline")
	flag.StringVar(outputDir, "o", "", "Shorthand for --output")
	keepCSV := flag.Bool("keep-csv", false, "Keep volumes.csv even after volumes.xlsx is written")

	checkMode := flag.Bool("check", false, "Validate the toolkit configuration and exit")
	configureMode := flag.Bool("configure", false, "Save toolkit paths and exit")
	synthsegPath := flag.String("synthseg", "", "SynthSeg installation directory for --configure")
	pythonPath := flag.String("python", "", "Python executable for --configure")
	force := flag.Bool("force", false, "Save toolkit paths even when validation fails")
	initToken := flag.Bool("init-token", false, "Generate an API token, print it once, and store its hash")

	showHelp := flag.Bool("help", false, "Show help and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetBuildInfo())
		os.Exit(0)
	}

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	Settings.Port = *port
	Settings.BindAddress = *bind
	Settings.DatabaseURL = *db
	Settings.SQLitePragmasEnabled = *sqlitePragmasEnabled
	Settings.SQLiteBusyTimeoutMS = *sqliteBusyTimeoutMS
	Settings.SQLiteJournalMode = *sqliteJournalMode
	Settings.SQLiteSynchronous = *sqliteSynchronous
	Settings.SQLiteForeignKeys = *sqliteForeignKeys
	Settings.SQLiteMaxOpenConns = *sqliteMaxOpenConns
	Settings.SQLiteMaxIdleConns = *sqliteMaxIdleConns
	Settings.SQLiteConnMaxIdleSec = *sqliteConnMaxIdleSec
	Settings.SQLiteConnMaxLifeSec = *sqliteConnMaxLifeSec
	Settings.LogLevel = *logLevel
	Settings.LogFilePath = *logFile
	Settings.ToolkitConfigRoot = *toolkitRoot
	Settings.MaxConcurrentRuns = *maxRuns
	Settings.RunsDir = *runsDir
	Settings.ProgressBufferLines = *progressLines
	Settings.CLIMode = *cliMode
	Settings.CLIServer = *cliServer
	Settings.PipelineMode = *pipelineMode
	Settings.InputPath = *inputPath
	Settings.OutputDir = *outputDir
	Settings.KeepCSV = *keepCSV
	Settings.CheckMode = *checkMode
	Settings.ConfigureMode = *configureMode
	Settings.SynthSegPath = *synthsegPath
	Settings.PythonPath = *pythonPath
	Settings.Force = *force
	Settings.InitTokenMode = *initToken
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
