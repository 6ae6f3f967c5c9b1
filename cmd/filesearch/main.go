package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/rzg777/filesearch"
	"github.com/rzg777/filesearch/config"
	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/internal/backend"
	"github.com/rzg777/filesearch/logging"
)

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, _, err := config.LoadDefault()
	if err != nil {
		fatal("load config: %v", err)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "stores":
		err = cmdStores(cfg, args)
	case "files":
		err = cmdFiles(cfg, args)
	case "upload":
		err = cmdUpload(cfg, args)
	case "ask":
		err = cmdAsk(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func printUsage() {
	fmt.Println(`Usage: filesearch <command> [options]

Commands:
  stores list                      List stores
  stores create <name>             Create a store
  stores delete <store-id>         Delete a store
  files list                       List uploaded files (global)
  files delete <file-id>           Delete an uploaded file
  upload <file> --store <id>       Upload a file into a store
         [--meta key=value ...]    Attach metadata (repeatable)
         [--max-tokens N]          Chunk size in tokens
         [--overlap N]             Chunk overlap in tokens
  ask <question> --store <id>      Ask a grounded question
      [--filter "key = 'value'"]   Scope retrieval by metadata
      [--model name]               Override the configured model

The credential is read from the environment variable named by
remote.api_key_env in the config (GEMINI_API_KEY by default).`)
}

func fatal(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}

// openStudio builds a studio from the config and opens a session with the
// credential from the environment. The caller must close the session.
func openStudio(ctx context.Context, cfg *config.AppConfig) (*filesearch.Studio, string, error) {
	logCfg := logging.DefaultLoggerConfig()
	logCfg.Level = logging.LogLevelWarn
	logger := logging.NewLogger(logCfg)
	factory, err := backend.Factory(cfg, logger)
	if err != nil {
		return nil, "", err
	}
	key := os.Getenv(cfg.Remote.APIKeyEnv)
	if key == "" && cfg.Remote.Backend == "mock" {
		key = "mock"
	}
	if key == "" {
		return nil, "", fmt.Errorf("credential not set: export %s", cfg.Remote.APIKeyEnv)
	}
	studio := filesearch.New(func(o *filesearch.Options) {
		o.RemoteFactory = factory
		o.DefaultModel = cfg.Chat.Model
		o.DefaultChunking = core.ChunkingConfig{
			MaxTokensPerChunk: cfg.Chunking.MaxTokensPerChunk,
			OverlapTokens:     cfg.Chunking.OverlapTokens,
		}
		o.Logger = logger
	})
	sid, err := studio.OpenSession(ctx, []byte(key))
	if err != nil {
		return nil, "", err
	}
	return studio, sid, nil
}

func cmdStores(cfg *config.AppConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: filesearch stores list|create|delete")
	}
	ctx := context.Background()
	studio, sid, err := openStudio(ctx, cfg)
	if err != nil {
		return err
	}
	defer studio.CloseSession(sid)

	switch args[0] {
	case "list":
		stores, err := studio.RefreshStores(ctx, sid)
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			fmt.Println("No stores.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFILES\tCREATED")
		for _, st := range stores {
			created := ""
			if !st.CreateTime.IsZero() {
				created = st.CreateTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", st.ID, st.DisplayName, st.FileCount, created)
		}
		return w.Flush()
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: filesearch stores create <name>")
		}
		st, err := studio.CreateStore(ctx, sid, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		color.Green("Created %s (%s)", st.DisplayName, st.ID)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: filesearch stores delete <store-id>")
		}
		if _, err := studio.RefreshStores(ctx, sid); err != nil {
			return err
		}
		err := studio.DeleteStore(ctx, sid, args[1])
		if core.IsStale(err) {
			color.Yellow("Store was already gone remotely; removed from the listing.")
			return nil
		}
		if err != nil {
			return err
		}
		color.Green("Deleted %s", args[1])
		return nil
	default:
		return fmt.Errorf("unknown stores subcommand: %s", args[0])
	}
}

func cmdFiles(cfg *config.AppConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: filesearch files list|delete")
	}
	ctx := context.Background()
	studio, sid, err := openStudio(ctx, cfg)
	if err != nil {
		return err
	}
	defer studio.CloseSession(sid)

	switch args[0] {
	case "list":
		files, err := studio.Files(ctx, sid)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS\tCREATED")
		for _, f := range files {
			created := ""
			if !f.CreateTime.IsZero() {
				created = f.CreateTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f KB\t%s\t%s\n", f.ID, f.DisplayName, float64(f.SizeBytes)/1024, f.Status, created)
		}
		return w.Flush()
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: filesearch files delete <file-id>")
		}
		err := studio.DeleteFile(ctx, sid, args[1])
		if core.IsStale(err) {
			color.Yellow("File was already gone remotely.")
			return nil
		}
		if err != nil {
			return err
		}
		color.Green("Deleted %s", args[1])
		return nil
	default:
		return fmt.Errorf("unknown files subcommand: %s", args[0])
	}
}

func cmdUpload(cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	storeID := fs.String("store", "", "target store ID")
	maxTokens := fs.Int("max-tokens", 0, "chunk size in tokens")
	overlap := fs.Int("overlap", 0, "chunk overlap in tokens")
	var metas metaFlags
	fs.Var(&metas, "meta", "metadata key=value (repeatable)")
	path := parsePositional(fs, args)
	if path == "" {
		return fmt.Errorf("usage: filesearch upload <file> --store <id>")
	}
	if *storeID == "" {
		return fmt.Errorf("--store is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	ctx := context.Background()
	studio, sid, err := openStudio(ctx, cfg)
	if err != nil {
		return err
	}
	defer studio.CloseSession(sid)

	req := core.UploadRequest{
		StoreID:     *storeID,
		DisplayName: filepath.Base(path),
		MIMEType:    mimeType,
		Content:     content,
		Metadata:    metas.fields,
	}
	if *maxTokens > 0 {
		req.Chunking = core.ChunkingConfig{MaxTokensPerChunk: *maxTokens, OverlapTokens: *overlap}
	}
	task, err := studio.Upload(ctx, sid, req)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s, waiting for processing...\n", task.DisplayName)

	status, err := studio.WaitForUpload(ctx, sid, task.ID)
	if err != nil {
		return err
	}
	if status == core.UploadFailed {
		return fmt.Errorf("remote processing failed for %s", task.DisplayName)
	}
	color.Green("%s is %s", task.DisplayName, status)
	return nil
}

func cmdAsk(cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	storeID := fs.String("store", "", "store to search")
	filter := fs.String("filter", "", "metadata filter, e.g. \"category = 'finance'\"")
	model := fs.String("model", "", "model override")
	question := parsePositional(fs, args)
	if question == "" {
		return fmt.Errorf("usage: filesearch ask <question> --store <id>")
	}
	if *storeID == "" {
		return fmt.Errorf("--store is required")
	}

	ctx := context.Background()
	studio, sid, err := openStudio(ctx, cfg)
	if err != nil {
		return err
	}
	defer studio.CloseSession(sid)

	if err := studio.SelectStore(sid, *storeID); err != nil {
		return err
	}
	var opts []filesearch.AskOption
	if *filter != "" {
		opts = append(opts, filesearch.WithMetadataFilter(*filter))
	}
	if *model != "" {
		if len(cfg.Chat.Models) > 0 && !contains(cfg.Chat.Models, *model) {
			color.Yellow("Note: %s is not in the configured model list (%s)", *model, strings.Join(cfg.Chat.Models, ", "))
		}
		opts = append(opts, filesearch.WithModel(*model))
	}
	msg, err := studio.Ask(ctx, sid, question, opts...)
	if err != nil {
		return err
	}
	fmt.Println(msg.Text)
	if len(msg.Citations) > 0 {
		fmt.Println()
		color.Cyan("Sources:")
		for i, c := range msg.Citations {
			fmt.Printf("  [%d] %s\n", i+1, c.Title)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// parsePositional parses flags that may appear after the first positional
// argument, returning that argument.
func parsePositional(fs *flag.FlagSet, args []string) string {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		_ = fs.Parse(args)
		return ""
	}
	pos := args[0]
	_ = fs.Parse(args[1:])
	return pos
}

// metaFlags collects repeated --meta key=value flags.
type metaFlags struct {
	fields core.Metadata
}

func (m *metaFlags) String() string {
	parts := make([]string, 0, len(m.fields))
	for _, f := range m.fields {
		parts = append(parts, f.Key+"="+f.Value)
	}
	return strings.Join(parts, ",")
}

func (m *metaFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("metadata must be key=value, got %q", v)
	}
	m.fields = append(m.fields, core.MetadataField{Key: key, Value: value})
	return nil
}
