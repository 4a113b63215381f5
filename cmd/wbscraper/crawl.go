package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wbscraper/internal/downloader"
	"wbscraper/pkg/auth"
	"wbscraper/pkg/checkpoint"
	"wbscraper/pkg/config"
	"wbscraper/pkg/crawler"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/ratelimit"
	"wbscraper/pkg/records"
	"wbscraper/pkg/storage"
	"wbscraper/pkg/ui"
	"wbscraper/pkg/weibo"
)

var (
	errDateRange = errors.New("both --start and --end are required for a date range")
	errDateOrder = errors.New("--end must not be before --start")
)

var (
	// Crawl command flags
	startDate   string
	endDate     string
	scope       string
	hasPic      bool
	pictureDir  string
	recordsFile string
	pageBudget  int
	concurrent  int
	maxRetries  int
	accountName string
	resumeCrawl bool
	noDownload  bool
)

// crawlCmd represents the crawl command.
var crawlCmd = &cobra.Command{
	Use:   "crawl <keyword>...",
	Short: "Crawl Weibo search results for one or more keywords",
	Long: `Crawl Weibo keyword search results into a CSV record log and
download the pictures they reference.

A logged-in session cookie improves result coverage. Provide one through:
  - Stored credentials (use 'wbscraper auth login' to store)
  - The WBSCRAPER_COOKIE environment variable
  - The configuration file

When a date range is given, ranges the endpoint truncates are bisected
into smaller sub-ranges automatically until every sub-range fits.`,
	Example: `  # Crawl one keyword with default settings
  wbscraper crawl 杭州

  # Multiple keywords joined into one search term
  wbscraper crawl 杭州 西湖

  # Restrict to a date range and split dense days automatically
  wbscraper crawl 杭州 --start 2024-01-01 --end 2024-03-31

  # Include reposts and text-only posts
  wbscraper crawl 杭州 --scope all --haspic=false

  # Resume an interrupted crawl
  wbscraper crawl 杭州 --resume`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCrawl(args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&startDate, "start", "", "start of the date range (YYYY-MM-DD)")
	crawlCmd.Flags().StringVar(&endDate, "end", "", "end of the date range (YYYY-MM-DD)")
	crawlCmd.Flags().StringVar(&scope, "scope", "ori", "post scope: ori (original posts) or all")
	crawlCmd.Flags().BoolVar(&hasPic, "haspic", true, "only keep posts that carry pictures")
	crawlCmd.Flags().StringVarP(&pictureDir, "picture-dir", "o", "", "directory for downloaded pictures")
	crawlCmd.Flags().StringVar(&recordsFile, "records-file", "", "path of the CSV record log")
	crawlCmd.Flags().IntVar(&pageBudget, "page-budget", 0, "most result pages crawled per date segment")
	crawlCmd.Flags().IntVar(&concurrent, "concurrent", 3, "number of concurrent picture downloads")
	crawlCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retry attempts after a failed request")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	crawlCmd.Flags().BoolVar(&resumeCrawl, "resume", false, "resume from the last checkpoint")
	crawlCmd.Flags().BoolVar(&noDownload, "no-download", false, "record pictures without downloading them")
}

func runCrawl(args []string) {
	keywords := make([]string, 0, len(args))
	for _, arg := range args {
		if kw := strings.TrimSpace(arg); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		ui.PrintError("At least one keyword is required")
		os.Exit(1)
	}

	query, err := buildQuery(keywords)
	if err != nil {
		ui.PrintError("Invalid date range: %v", err)
		os.Exit(1)
	}

	flags := make(map[string]interface{})
	if pictureDir != "" {
		flags["picture-dir"] = pictureDir
	}
	if recordsFile != "" {
		flags["records-file"] = recordsFile
	}
	if pageBudget > 0 {
		flags["page-budget"] = pageBudget
	}
	if concurrent != 3 {
		flags["concurrent"] = concurrent
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		ui.PrintError("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	log.WithField("version", version).Info("crawler starting")

	applyCredentials(cfg, log)

	store, err := records.Open(cfg.Output.RecordsFile, log)
	if err != nil {
		ui.PrintError("Failed to open record log: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	pictures, err := storage.NewManager(cfg.Output.PictureDirectory)
	if err != nil {
		ui.PrintError("Failed to prepare picture directory: %v", err)
		os.Exit(1)
	}

	client := weibo.NewClient(weibo.ClientOptions{
		Timeout:    cfg.Download.DownloadTimeout.Std(),
		MaxRetries: cfg.RateLimit.MaxRetries,
		RetryDelay: cfg.RateLimit.RetryDelay.Std(),
		Cookie:     cfg.Weibo.Cookie,
		UserAgent:  cfg.Weibo.UserAgent,
		Referer:    cfg.Weibo.Referer,
		DebugFile:  cfg.Output.DebugFile,
	}, log)

	checkpoints, err := checkpoint.NewManager(query.Keyword(), log)
	if err != nil {
		log.WithError(err).Warn("checkpoints unavailable, resume disabled")
		checkpoints = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *downloader.Pool
	var downloads crawler.Downloader
	var consumerWG sync.WaitGroup
	var downloaded, failed int

	if !noDownload {
		pool = downloader.NewPool(client, pictures, cfg.Download.ConcurrentDownloads, cfg.Download.PictureInterval.Std(), log)
		pool.Start(ctx)
		downloads = pool

		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			for result := range pool.Results() {
				if result.Success {
					downloaded++
				} else {
					failed++
				}
			}
		}()
	}

	engine, err := crawler.New(crawler.Options{
		Fetcher:     client,
		Extractor:   weibo.NewExtractor(cfg.Output.PictureDirectory, log),
		Store:       store,
		Downloader:  downloads,
		Limiter:     searchLimiter(cfg),
		Checkpoints: checkpoints,
		PageBudget:  cfg.Crawl.PageBudget,
		Logger:      log,
	})
	if err != nil {
		ui.PrintError("Failed to initialize crawler: %v", err)
		os.Exit(1)
	}

	ui.PrintInfo("Crawling keyword: %s", query.Keyword())
	summary, runErr := engine.Run(ctx, query, resumeCrawl)

	if pool != nil {
		pool.Stop()
		consumerWG.Wait()
	}

	if runErr != nil {
		log.WithError(runErr).Error("crawl interrupted")
		ui.PrintWarning("Crawl interrupted: %v", runErr)
	}

	if summary != nil {
		ui.PrintSuccess("Segments: %d crawled, %d split, %d failed",
			summary.SegmentsProcessed, summary.SegmentsSplit, summary.SegmentsFailed)
		ui.PrintSuccess("Pages: %d crawled, %d skipped", summary.PagesCrawled, summary.PagesFailed)
		ui.PrintSuccess("Records appended: %d", summary.RecordsAppended)
		if !noDownload {
			ui.PrintSuccess("Pictures: %d downloaded, %d failed", downloaded, failed)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// buildQuery assembles the immutable crawl parameters from the command
// line. Both date bounds must be present or absent together.
func buildQuery(keywords []string) (models.Query, error) {
	q := models.Query{
		Keywords: keywords,
		Scope:    scope,
		HasPic:   hasPic,
	}

	if startDate == "" && endDate == "" {
		return q, nil
	}
	if startDate == "" || endDate == "" {
		return q, errDateRange
	}

	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return q, err
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return q, err
	}
	if end.Before(start) {
		return q, errDateOrder
	}

	q.Start = start
	q.End = end
	return q, nil
}

// searchLimiter paces search page fetches: a minimum gap between
// consecutive fetches plus a per-minute ceiling.
func searchLimiter(cfg *config.Config) ratelimit.Limiter {
	limiters := []ratelimit.Limiter{
		ratelimit.NewFixedInterval(cfg.Crawl.FetchInterval.Std()),
	}
	if rpm := cfg.RateLimit.RequestsPerMinute; rpm > 0 {
		limiters = append(limiters, ratelimit.NewTokenBucket(rpm, time.Minute))
	}
	return ratelimit.Combine(limiters...)
}

// applyCredentials fills in the session cookie from the credential
// store when the configuration does not carry one.
func applyCredentials(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential manager unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found: %s", accountName)
			ui.PrintInfo("Use 'wbscraper auth list' to see stored accounts")
			os.Exit(1)
		}
	} else if cfg.Weibo.Cookie == "" {
		account, err = manager.RetrieveDefault()
		if err != nil {
			log.Info("no stored credentials, crawling anonymously")
			ui.PrintWarning("No session cookie configured; results may be truncated")
			ui.PrintInfo("Run 'wbscraper auth login' to store one")
			return
		}
	}

	if account != nil {
		cfg.Weibo.Cookie = account.Cookie
		if account.UserAgent != "" {
			cfg.Weibo.UserAgent = account.UserAgent
		}
		log.WithField("account", account.Name).Info("using stored credentials")
	}
}
