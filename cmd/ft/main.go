package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"ft-go/internal/app"
	"ft-go/internal/config"
	"ft-go/internal/database"
	"ft-go/internal/database/migrations"
	"ft-go/internal/ft"
	"ft-go/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an FTApp. The caller must defer app.Close().
func newApp() (*app.FTApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFTApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "ft",
	Short: "Hierarchical file store with versioned content",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Mode:     %s\n", cfg.Mode)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Mode:     %s\n", cfg.Mode)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		if cfg.Bucket.S3Bucket != "" {
			fmt.Printf("Bucket:   s3://%s\n", cfg.Bucket.S3Bucket)
		} else {
			fmt.Printf("Bucket:   %s\n", cfg.Bucket.LocalRoot)
		}
		return nil
	},
}

// db command

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the record database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRawDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.MigrateUp(db.DB()); err != nil {
			return err
		}
		fmt.Println("Database migrated.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check schema migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openRawDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.CheckDBMigrationStatus(db.DB()); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

func openRawDB() (*database.SQLiteDatabase, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if cfg.Database.DataDir == "" {
		return nil, fmt.Errorf("data_dir not configured")
	}
	return database.NewSQLiteDatabase(filepath.Join(cfg.Database.DataDir, "ft.db"))
}

// serve command

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the blob HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Tree().EnsureRoot(); err != nil {
			return err
		}

		srv := app.NewServer(a.Bucket(), ft.NewNopLogger())
		addr := a.Config().Server.Addr
		fmt.Printf("Serving blob endpoints on %s\n", addr)
		return http.ListenAndServe(addr, srv.Handler())
	},
}

// seed command

var seedFilesPerDir int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the tree with sample directories and files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Seed(cmd.Context(), seedFilesPerDir); err != nil {
			return err
		}
		fmt.Println("Seed complete.")
		return nil
	},
}

// dir commands

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage directories",
}

var dirCreateCmd = &cobra.Command{
	Use:   "create <parent-id> <name>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.Tree().CreateDirectory(args[1], args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", dir.ID, dir.Name)
		return nil
	},
}

var dirMoveCmd = &cobra.Command{
	Use:   "move <id> <destination-id>",
	Short: "Move a directory (and its whole subtree)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.Tree().MoveDirectory(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Moved %s under %s\n", dir.Name, args[1])
		return nil
	},
}

var dirRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.Tree().RenameDirectory(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", dir.ID, dir.Name)
		return nil
	},
}

var dirDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a directory and everything beneath it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Tree().DeleteDirectory(args[0])
	},
}

var dirPurgeCmd = &cobra.Command{
	Use:   "purge <id>",
	Short: "Physically remove an already deleted directory subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Tree().PurgeDirectory(args[0])
	},
}

var (
	lsPage       int
	lsPageLength int
	lsSortField  string
	lsDescending bool
)

var dirLsCmd = &cobra.Command{
	Use:   "ls <id>",
	Short: "List a directory's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		direction := ft.Ascending
		if lsDescending {
			direction = ft.Descending
		}
		contents, err := a.Listing().GetDirectoryContents(args[0],
			&ft.Pagination{Page: lsPage, PageLength: lsPageLength},
			&ft.Sort{Field: lsSortField, Direction: direction})
		if err != nil {
			return err
		}

		for _, d := range contents.Directories {
			fmt.Printf("d\t%s\t%s\n", d.ID, d.Name)
		}
		for _, f := range contents.Files {
			fmt.Printf("f\t%s\t%s\n", f.ID, f.Name)
		}
		return nil
	},
}

var dirSizeCmd = &cobra.Command{
	Use:   "size <id>",
	Short: "Show the aggregate content size beneath a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		size, err := a.Listing().GetDirectorySize(args[0])
		if err != nil {
			return err
		}
		if size == nil {
			fmt.Println("empty")
			return nil
		}
		fmt.Printf("%d bytes\n", *size)
		return nil
	},
}

// file commands

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage files",
}

var fileCreateCmd = &cobra.Command{
	Use:   "create <directory-id> <path>",
	Short: "Create a file from a local path and upload its content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		name := filepath.Base(args[1])
		mimeType := mime.TypeByExtension(filepath.Ext(name))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		file, uploadURL, err := a.Versioning().CreateFile(cmd.Context(), name, args[0], mimeType, int64(len(content)))
		if err != nil {
			return err
		}
		if err := a.Bucket().StoreByToken(cmd.Context(), uploadURL, ft.Object{
			Body:        content,
			ContentType: mimeType,
		}); err != nil {
			return err
		}

		fmt.Printf("%s\t%s\n", file.ID, file.Name)
		return nil
	},
}

var fileMoveCmd = &cobra.Command{
	Use:   "move <id> <directory-id>",
	Short: "Move a file to another directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.Tree().MoveFile(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Moved %s into %s\n", f.Name, args[1])
		return nil
	},
}

var fileRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.Tree().RenameFile(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", f.ID, f.Name)
		return nil
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Tree().DeleteFile(args[0])
	},
}

var fileVersionsCmd = &cobra.Command{
	Use:   "versions <id>",
	Short: "List a file's versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		versions, err := a.Versioning().ListFileVersions(args[0], nil)
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Printf("%s\t%s\t%s\t%d\n", v.ID, v.Key, v.MimeType, v.Size)
		}
		return nil
	},
}

var fileDownloadCmd = &cobra.Command{
	Use:   "download <version-id> <out-path>",
	Short: "Download a file version's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.Versioning().GetFileVersion(args[0])
		if err != nil {
			return err
		}
		url, err := a.Versioning().RequestDownload(cmd.Context(), version.Key)
		if err != nil {
			return err
		}
		obj, err := a.Bucket().FetchByToken(cmd.Context(), url)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], obj.Body, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", args[1], err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(obj.Body), args[1])
		return nil
	},
}

// find command

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Search directories and files by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		nodes, err := a.Listing().SearchNodes(args[0])
		if err != nil {
			return err
		}
		for _, n := range nodes {
			kind := "f"
			if n.Kind == model.KindDirectory {
				kind = "d"
			}
			fmt.Printf("%s\t%s\t%s\n", kind, n.ID, n.Name)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd)
	dbCmd.AddCommand(dbMigrateCmd, dbStatusCmd)

	seedCmd.Flags().IntVar(&seedFilesPerDir, "files", 3, "files to create per seeded directory")

	dirLsCmd.Flags().IntVar(&lsPage, "page", 1, "1-indexed page")
	dirLsCmd.Flags().IntVar(&lsPageLength, "page-length", 20, "items per page")
	dirLsCmd.Flags().StringVar(&lsSortField, "sort", "name", "sort field: name, createdAt, updatedAt")
	dirLsCmd.Flags().BoolVar(&lsDescending, "desc", false, "sort descending")

	dirCmd.AddCommand(dirCreateCmd, dirMoveCmd, dirRenameCmd, dirDeleteCmd, dirPurgeCmd, dirLsCmd, dirSizeCmd)
	fileCmd.AddCommand(fileCreateCmd, fileMoveCmd, fileRenameCmd, fileDeleteCmd, fileVersionsCmd, fileDownloadCmd)

	rootCmd.AddCommand(configCmd, dbCmd, serveCmd, seedCmd, dirCmd, fileCmd, findCmd)
}
