package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"examsolver/internal/app"
	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/export"
	"examsolver/internal/pipeline"
	"examsolver/internal/port"
	"examsolver/internal/repository/postgres"
	"examsolver/internal/service"
	s3storage "examsolver/internal/storage/s3"
)

const usage = `Usage:
  solve [flags] <pdf-path|s3://bucket/key>
  solve token -subject name

Flags:
`

func main() {
	log.SetOutput(os.Stderr)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "token subject (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("token: -subject is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, expiry, err := service.NewAuthService(cfg.Auth).IssueToken(*subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	log.Printf("token for %q expires %s", *subject, expiry.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	format := fs.String("format", "json", "output format: json, csv or xlsx")
	out := fs.String("out", "", "output file (default stdout)")
	persist := fs.Bool("persist", false, "store the report in Postgres and archive it to S3")
	notify := fs.Bool("notify", false, "mail a run summary to email.recipients")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one input document")
	}
	input := fs.Arg(0)

	exportFormat, err := domain.ParseExportFormat(*format)
	if err != nil {
		return fmt.Errorf("-format %q: %w", *format, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var storage port.ObjectStorage
	if *persist || s3storage.IsURI(input) {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	doc, inputBucket, inputKey, cleanup, err := resolveInput(ctx, storage, input)
	if err != nil {
		return err
	}
	defer cleanup()

	solver, err := app.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	report, err := solver.Run(ctx, doc)
	if err != nil {
		return err
	}

	var notifier port.EmailSender
	if *notify {
		notifier, err = app.NewEmailSender(&cfg.Email)
		if err != nil {
			return err
		}
	}

	switch {
	case *persist:
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		runSvc := service.NewRunService(postgres.NewRunRepo(db), storage, solver, notifier, cfg)
		run, err := runSvc.Record(ctx, report, inputBucket, inputKey)
		if err != nil {
			return fmt.Errorf("persisting report: %w", err)
		}
		log.Printf("stored run %s", run.ID)
	case notifier != nil:
		if err := notifier.SendRunSummary(ctx, cfg.Email.Recipients, report); err != nil {
			log.Printf("sending summary: %v", err)
		}
	}

	return writeReport(report, exportFormat, *out)
}

// resolveInput returns a local document for input, downloading s3:// URIs
// to a temporary file.
func resolveInput(ctx context.Context, storage port.ObjectStorage, input string) (doc pipeline.Document, bucket, key string, cleanup func(), err error) {
	cleanup = func() {}
	if !s3storage.IsURI(input) {
		return pipeline.Document{Name: filepath.Base(input), Path: input}, "", input, cleanup, nil
	}

	bucket, key, err = s3storage.ParseURI(input)
	if err != nil {
		return doc, "", "", cleanup, err
	}
	data, err := storage.Download(ctx, bucket, key)
	if err != nil {
		return doc, "", "", cleanup, fmt.Errorf("downloading %s: %w", input, err)
	}

	tmp, err := os.CreateTemp("", "examsolver-*.pdf")
	if err != nil {
		return doc, "", "", cleanup, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup = func() { os.Remove(tmp.Name()) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return doc, "", "", cleanup, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return doc, "", "", cleanup, fmt.Errorf("closing temp file: %w", err)
	}
	return pipeline.Document{Name: filepath.Base(key), Path: tmp.Name()}, bucket, key, cleanup, nil
}

func writeReport(report *domain.Report, format domain.ExportFormat, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if path != "" {
		log.Printf("wrote %s report to %s", format, path)
	}
	return nil
}
