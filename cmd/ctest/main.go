package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DaveyBK/c-test-intake-app/internal/handler"
	appI18n "github.com/DaveyBK/c-test-intake-app/internal/i18n"
	"github.com/DaveyBK/c-test-intake-app/internal/intake"
	"github.com/DaveyBK/c-test-intake-app/internal/inventory"
	"github.com/DaveyBK/c-test-intake-app/internal/model"
	"github.com/DaveyBK/c-test-intake-app/internal/store"
	"github.com/DaveyBK/c-test-intake-app/internal/syncer"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctest",
		Short: "C-test intake, grading, and placement for language courses",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), syncCmd(), studentsCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `ctest --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "ctest.db", "Local SQLite database path")
	f.String("inventory-driver", "sqlite", "Shared inventory database driver (sqlite, postgres)")
	f.String("inventory-dsn", "", "Shared inventory database DSN (empty = no shared store)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP intake server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("keys", "k", []string{"keys/ctest_v1.json"}, "Paths to answer key JSON files (repeatable)")
	f.Bool("accept-variants", true, "Accept British/American spelling variants")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade one submission from a file or stdin",
		RunE:  runGrade,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringSliceP("keys", "k", []string{"keys/ctest_v1.json"}, "Paths to answer key JSON files (repeatable)")
	f.Bool("accept-variants", true, "Accept British/American spelling variants")
	f.StringP("student", "s", "", "Student ID (required)")
	f.String("test-version", "", "Answer key version to grade against (required)")
	f.StringP("input", "i", "-", "Submission text file path (- for stdin)")

	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("test-version")

	return cmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced local results to the shared inventory database",
		RunE:  runSync,
	}
	addCommonFlags(cmd)
	return cmd
}

func studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List students from the shared roster",
		RunE:  runStudents,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("status", "", "Filter by status (active, inactive; empty = all)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export locally stored results",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("format", "f", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout, json only)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ctest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/ctest")
	v.AddConfigPath("/etc/ctest")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// openInventory connects to the shared database if a DSN is configured.
// Connectivity problems are warnings, not errors: grading must keep working
// with the shared store down.
func openInventory(ctx context.Context, v *viper.Viper) *inventory.DB {
	dsn := v.GetString("inventory-dsn")
	if dsn == "" {
		slog.Info("no shared inventory configured, results stay local")
		return nil
	}
	inv, err := inventory.Open(ctx, inventory.Driver(v.GetString("inventory-driver")), dsn)
	if err != nil {
		slog.Warn("shared inventory unavailable, results will queue locally", "error", err)
		return nil
	}
	return inv
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadAnswerKeys(db, v.GetStringSlice("keys")); err != nil {
		return fmt.Errorf("load answer keys: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	inv := openInventory(ctx, v)
	var syncInv syncer.Inventory
	var apiInv handler.Inventory
	if inv != nil {
		defer inv.Close()
		syncInv = inv
		apiInv = inv
	}

	sy := syncer.New(db, syncInv, nil)
	svc := intake.NewService(db, sy, v.GetBool("accept-variants"))
	h := handler.New(db, apiInv, svc, sy)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"accept_variants", v.GetBool("accept-variants"),
		"shared_store", syncInv != nil,
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadAnswerKeys(db, v.GetStringSlice("keys")); err != nil {
		return fmt.Errorf("load answer keys: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	inPath := v.GetString("input")
	var text []byte
	if inPath == "" || inPath == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(inPath)
	}
	if err != nil {
		return fmt.Errorf("read submission: %w", err)
	}

	inv := openInventory(ctx, v)
	var syncInv syncer.Inventory
	if inv != nil {
		defer inv.Close()
		syncInv = inv
	}

	svc := intake.NewService(db, syncer.New(db, syncInv, nil), v.GetBool("accept-variants"))
	result, feedback, err := svc.Process(ctx, intake.Submission{
		StudentID:   v.GetString("student"),
		TestVersion: v.GetString("test-version"),
		Text:        string(text),
	})
	if err != nil {
		return err
	}

	fmt.Println(feedback)
	slog.Info("result stored",
		"result_id", result.ID,
		"student_id", result.StudentID,
		"score", result.Score,
		"placement", result.PlacementLevel,
		"sync_status", result.SyncStatus,
	)
	return nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	inv := openInventory(ctx, v)
	if inv == nil {
		return fmt.Errorf("sync requires a reachable shared inventory database")
	}
	defer inv.Close()

	synced, failed, err := syncer.New(db, inv, nil).SyncPending(ctx)
	if err != nil {
		return fmt.Errorf("sync pass: %w", err)
	}

	fmt.Println(appI18n.Tp(ctx, "ResultsSynced", synced))
	if failed > 0 {
		slog.Warn("some results did not sync", "failed", failed)
	}
	return nil
}

func runStudents(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	status := v.GetString("status")
	inv := openInventory(ctx, v)

	var students []model.Student
	if inv != nil {
		defer inv.Close()
		students, err = inv.GetStudents(ctx, status)
		if err != nil {
			return fmt.Errorf("list students: %w", err)
		}
		if err := db.CacheStudents(students); err != nil {
			slog.Warn("cache students", "error", err)
		}
	} else {
		slog.Info("shared store unavailable, showing cached roster")
		students, err = db.CachedStudents()
		if err != nil {
			return fmt.Errorf("cached students: %w", err)
		}
	}

	for _, st := range students {
		line := fmt.Sprintf("%s\t%s", st.StudentID, st.FullName())
		if st.Level != "" {
			line += "\t" + st.Level
		}
		if status == "" {
			line += "\t" + st.Status
		}
		fmt.Println(line)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	outPath := v.GetString("output")

	switch strings.ToLower(v.GetString("format")) {
	case "xlsx":
		if outPath == "" || outPath == "-" {
			return fmt.Errorf("xlsx export requires --output")
		}
		data, err := db.ExportResultsExcel(now)
		if err != nil {
			return fmt.Errorf("export xlsx: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		slog.Info("exported results", "format", "xlsx", "path", outPath)
		return nil
	case "json":
		export, err := db.ExportAllResults(now)
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}

		var w io.Writer
		if outPath == "" || outPath == "-" {
			w = os.Stdout
		} else {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		// Ensure trailing newline.
		_, _ = fmt.Fprintln(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q (json, xlsx)", v.GetString("format"))
	}
}

// loadAnswerKeys imports answer key files, skipping files already imported.
// A changed file is refused so stored results keep matching the key they
// were graded with; bump the version and use a new file instead.
func loadAnswerKeys(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				slog.Warn("answer key file missing, skipping", "path", path)
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("answer key file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("answer key file changed since last import, skipping to keep stored results consistent",
				"path", path)
			continue
		}

		var key model.AnswerKey
		if err := json.Unmarshal(data, &key); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := db.SaveAnswerKey(key); err != nil {
			return fmt.Errorf("import answer key from %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported answer key", "path", path, "version", key.Version, "items", key.NumItems())
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
