package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wbscraper/pkg/config"
	"wbscraper/pkg/ui"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage wbscraper configuration files.

Configuration is loaded from:
  - Command line flags (highest priority)
  - Environment variables (WBSCRAPER_*)
  - A .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.wbscraper.yaml'
unless a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The session
cookie is masked.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".wbscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists: %s", configPath)
		os.Exit(1)
	}

	exampleConfig := `# wbscraper configuration file
#
# Environment variables prefixed with WBSCRAPER_ override these values.
# For example: WBSCRAPER_COOKIE, WBSCRAPER_PAGE_BUDGET

# Request identity
weibo:
  # Session cookie from a logged-in browser (recommended)
  # Prefer 'wbscraper auth login' over keeping it in this file
  cookie: ""

  # User agent string, empty uses the default
  user_agent: ""

  referer: "https://s.weibo.com/"

# Retry and request pacing
rate_limit:
  requests_per_minute: 60
  max_retries: 3
  retry_delay: 10s

# Crawl engine
crawl:
  # Most result pages fetched per date segment
  page_budget: 49

  # Pause between consecutive search page fetches
  fetch_interval: 1s

# Output locations
output:
  picture_directory: "./weibo_pictures"
  records_file: "weibo_records.csv"

  # Last fetched page body, for inspecting markup changes
  debug_file: "response.html"

# Picture downloads
download:
  # Range: 1-10
  concurrent_downloads: 3
  download_timeout: 30s

  # Pause after each picture download
  picture_interval: 500ms

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Log file path, empty logs to stderr only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file: %v", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: %s", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your session cookie with 'wbscraper auth login'")
	fmt.Println("2. Start crawling with 'wbscraper crawl <keyword>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	displayCfg := *cfg
	if displayCfg.Weibo.Cookie != "" {
		if len(displayCfg.Weibo.Cookie) > 8 {
			displayCfg.Weibo.Cookie = displayCfg.Weibo.Cookie[:4] + "..." + displayCfg.Weibo.Cookie[len(displayCfg.Weibo.Cookie)-4:]
		} else {
			displayCfg.Weibo.Cookie = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration: %v", err)
		os.Exit(1)
	}

	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (WBSCRAPER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-detected)")
	}
	fmt.Println("4. Default values")
}
