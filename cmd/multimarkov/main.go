package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/RicardRC/multimarkov/pkg/multimarkov"
	"github.com/natefinch/atomic"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const usage = `multimarkov - train and sample variable-order Markov models

Usage:
  multimarkov [flags] <command> [command flags]

Commands:
  train     train a model from a YAML corpus manifest
  generate  sample a sequence from a trained model
  export    write a model to a JSON file
  import    merge a JSON model file into the database
  stats     print statistics for all stored models
  version   print version information

Flags:
`

func main() {
	configPath := flag.String("config", "multimarkov.json", "path to the CLI config file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Printf("multimarkov %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))

	ctx := context.Background()
	switch args[0] {
	case "train":
		err = runTrain(ctx, cfg, logger, args[1:])
	case "generate":
		err = runGenerate(ctx, cfg, logger, args[1:])
	case "export":
		err = runExport(ctx, cfg, logger, args[1:])
	case "import":
		err = runImport(ctx, cfg, logger, args[1:])
	case "stats":
		err = runStats(ctx, cfg, logger, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

// openStore opens the configured database, initializes the schema, and
// returns a string-symbol store over it.
func openStore(cfg *Config, logger *slog.Logger) (*sql.DB, *multimarkov.Store[string], error) {
	db, err := initDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = multimarkov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to set up schema: %w", err)
	}
	store, err := multimarkov.NewStore[string](db, multimarkov.StringCodec{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	store.SetLogger(logger)
	return db, store, nil
}

func runTrain(ctx context.Context, cfg *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	manifestPath := fs.String("manifest", "corpus.yaml", "path to the corpus manifest")
	_ = fs.Parse(args)

	manifest, err := LoadManifest(*manifestPath)
	if err != nil {
		return err
	}

	model := multimarkov.New[string](multimarkov.WithOrder(manifest.Order))
	model.SetLogger(logger)

	for _, input := range manifest.Inputs {
		if err = trainFromFile(model, input, manifest.Mode); err != nil {
			return fmt.Errorf("failed to train on %s: %w", input, err)
		}
		logger.Info("Trained on input", "file", input, "mode", manifest.Mode)
	}
	if err = model.AddPriors(manifest.Prior); err != nil {
		return err
	}

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { store.Close(); _ = db.Close() }()

	if err = store.Save(ctx, manifest.Model, model); err != nil {
		return err
	}
	stats := model.Stats()
	logger.Info("Training completed",
		"model", manifest.Model,
		"order", manifest.Order,
		"vocabulary", stats.Vocabulary,
		"contexts", stats.Contexts,
		"transitions", stats.Transitions,
	)
	return nil
}

func trainFromFile(model *multimarkov.Model[string], path, mode string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var sequences [][]string
	if mode == "runes" {
		runeSequences, err := multimarkov.RuneSequences(f)
		if err != nil {
			return err
		}
		sequences = make([][]string, len(runeSequences))
		for i, rs := range runeSequences {
			sequence := make([]string, len(rs))
			for j, r := range rs {
				sequence[j] = string(r)
			}
			sequences[i] = sequence
		}
	} else {
		if sequences, err = multimarkov.ReadSequences(f); err != nil {
			return err
		}
	}
	return model.AddSequences(sequences)
}

func runGenerate(ctx context.Context, cfg *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	name := fs.String("model", "", "name of the model to sample from")
	seedText := fs.String("seed", "", "space-separated seed symbols (default: one random known symbol)")
	length := fs.Int("length", 50, "maximum number of symbols to generate")
	temperature := fs.Float64("temperature", 1.0, "selection temperature (0 = deterministic)")
	topK := fs.Int("top-k", 0, "restrict selection to the k highest-weight symbols (0 = off)")
	rngSeed := fs.Uint64("rng-seed", 0, "PCG seed for reproducible output (0 = random)")
	separator := fs.String("separator", " ", "string used to join output symbols")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("generate requires -model")
	}

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { store.Close(); _ = db.Close() }()

	model, err := store.Load(ctx, *name)
	if err != nil {
		return err
	}
	model.SetLogger(logger)

	var rng *rand.Rand
	if *rngSeed != 0 {
		rng = rand.New(rand.NewPCG(*rngSeed, 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	seed := strings.Fields(*seedText)
	if len(seed) == 0 {
		known := model.KnownStates()
		if len(known) == 0 {
			return fmt.Errorf("model '%s' is empty", *name)
		}
		seed = []string{known[rng.IntN(len(known))]}
	}

	out, err := model.Generate(seed, rng,
		multimarkov.WithMaxLength(*length),
		multimarkov.WithTemperature(*temperature),
		multimarkov.WithTopK(*topK),
	)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(out, *separator))
	return nil
}

func runExport(ctx context.Context, cfg *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	name := fs.String("model", "", "name of the model to export")
	outPath := fs.String("out", "-", "output file path, or - for stdout")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("export requires -model")
	}

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { store.Close(); _ = db.Close() }()

	model, err := store.Load(ctx, *name)
	if err != nil {
		return err
	}
	model.SetLogger(logger)

	if *outPath == "-" {
		return model.Export(os.Stdout, *name, multimarkov.StringCodec{})
	}
	var buf bytes.Buffer
	if err = model.Export(&buf, *name, multimarkov.StringCodec{}); err != nil {
		return err
	}
	return atomic.WriteFile(*outPath, &buf)
}

func runImport(ctx context.Context, cfg *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	name := fs.String("model", "", "name to store the imported model under")
	inPath := fs.String("in", "", "JSON model file to import")
	_ = fs.Parse(args)

	if *name == "" || *inPath == "" {
		return fmt.Errorf("import requires -model and -in")
	}

	f, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("failed to open model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	model, err := multimarkov.ImportModel[string](f, multimarkov.StringCodec{})
	if err != nil {
		return err
	}
	model.SetLogger(logger)

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { store.Close(); _ = db.Close() }()

	return store.Save(ctx, *name, model)
}

func runStats(ctx context.Context, cfg *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { store.Close(); _ = db.Close() }()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats.Models) == 0 {
		fmt.Println("no models stored")
		return nil
	}
	for name, info := range stats.Models {
		st := stats.Stats[info.Id]
		fmt.Printf("%s: order=%d contexts=%d transitions=%d total_weight=%.3f\n",
			name, info.Order, st.Contexts, st.Transitions, st.TotalWeight)
	}
	fmt.Printf("database: vocabulary=%d contexts=%d\n", stats.VocabSize, stats.ContextSize)
	return nil
}
