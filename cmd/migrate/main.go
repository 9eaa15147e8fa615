package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/lexcabinet/cabinet-backend/internal/config"
	"github.com/lexcabinet/cabinet-backend/internal/migration"
	"github.com/lexcabinet/cabinet-backend/internal/repository"
	"github.com/lexcabinet/cabinet-backend/internal/service"
	"github.com/lexcabinet/cabinet-backend/pkg/cache"
	pkglogger "github.com/lexcabinet/cabinet-backend/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "", "config file path (default configs/config.<APP_ENV>.yaml)")
	seedPath := flag.String("seed", "", "YAML seed file, imported only into an empty content table")
	dryRun := flag.Bool("dry-run", false, "parse the seed file and print what would be imported")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv()
	pkglogger.InitStructured(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	log := pkglogger.GetLogger()

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
	}
	seed := *seedPath
	if seed == "" {
		seed = cfg.Content.SeedFile
	}

	if *dryRun {
		runDryRun(seed)
		return
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}
	var dialector gorm.Dialector
	if cfg.Database.Driver == "sqlite" {
		dialector = sqlite.Open(cfg.Database.Path)
	} else {
		dialector = mysql.Open(cfg.Database.GetDSN())
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get underlying DB")
	}
	defer sqlDB.Close()

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Dur("took", time.Since(start)).Msg("schema up to date")

	svc := service.NewContentService(
		repository.NewContentRepository(db),
		repository.NewMemberRepository(db),
		cache.NewContentCache(),
		service.ContentOptions{DefaultLocale: cfg.Content.DefaultLocale, StoreTimeout: cfg.Content.StoreTimeout},
	)
	n, err := migration.Seed(context.Background(), db, svc, seed)
	if err != nil {
		log.Fatal().Err(err).Str("file", seed).Msg("seed failed")
	}
	log.Info().Int("entries", n).Str("file", seed).Msg("seed complete")
}

func runDryRun(seed string) {
	if seed == "" {
		pkglogger.Info("[dry-run] no seed file configured")
		return
	}
	items, err := migration.LoadSeed(seed)
	if err != nil {
		pkglogger.Error("[dry-run] %v", err)
		os.Exit(1)
	}
	pkglogger.Info("[dry-run] %d items in %s", len(items), seed)
	for _, item := range items {
		locale := item.Locale
		if locale == "" {
			locale = "(default)"
		}
		pkglogger.Info("  %-12s %s", locale, item.Key)
	}
}
