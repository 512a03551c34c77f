package app

import (
	"context"
	"fmt"
	"os"

	"ft-go/internal/bucket"
	"ft-go/internal/config"
	"ft-go/internal/database"
	"ft-go/internal/ft"
)

// FTApp is the application layer between the CLI and the services. It
// constructs all dependencies from config and manages their lifecycle on
// Close.
type FTApp struct {
	cfg        *config.Config
	db         ft.Database
	bucket     ft.Bucket
	tree       *ft.TreeService
	listing    *ft.ListingService
	versioning *ft.VersioningService
	logger     ft.Logger
	logFile    *os.File
}

// NewFTApp creates a fully wired FTApp from the given config.
// The caller must call Close when done.
func NewFTApp(cfg *config.Config) (*FTApp, error) {
	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	clock := ft.RealClock{}
	idgen := ft.UUIDGenerator{}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	bkt, err := bucket.NewBucketFromConfig(context.Background(), cfg.Mode, cfg.Bucket, clock)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &FTApp{
		cfg:        cfg,
		db:         db,
		bucket:     bkt,
		tree:       ft.NewTreeService(db, log, clock, idgen),
		listing:    ft.NewListingService(db),
		versioning: ft.NewVersioningService(db, bkt, log, clock, idgen),
		logger:     log,
		logFile:    logFile,
	}, nil
}

// Tree returns the structural tree service.
func (a *FTApp) Tree() *ft.TreeService { return a.tree }

// Listing returns the read-side listing service.
func (a *FTApp) Listing() *ft.ListingService { return a.listing }

// Versioning returns the content versioning service.
func (a *FTApp) Versioning() *ft.VersioningService { return a.versioning }

// Bucket returns the object store.
func (a *FTApp) Bucket() ft.Bucket { return a.bucket }

// Config returns the application configuration.
func (a *FTApp) Config() *config.Config { return a.cfg }

// Close closes all resources.
func (a *FTApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
