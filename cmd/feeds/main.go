package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"bikeshare/config"
	"bikeshare/internal/infra/stations"
	"bikeshare/internal/util"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Supported subcommands:
// - mirror:   Copy the configured GBFS feeds into a bucket
// - validate: Check a mirrored bucket against its manifest

func main() {
	mirrorCmd := flag.NewFlagSet("mirror", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// mirror parameters
	mirrorBucket := mirrorCmd.String("bucket", "file://./data/gbfs", "Bucket URL to write the feeds to")
	mirrorInfo := mirrorCmd.String("info", "", "station_information URL (defaults to the configured one)")
	mirrorStatus := mirrorCmd.String("status", "", "station_status URL (defaults to the configured one)")
	mirrorTimeout := mirrorCmd.Duration("timeout", 30*time.Second, "Timeout for each feed request")

	// validate parameters
	validateBucket := validateCmd.String("bucket", "file://./data/gbfs", "Bucket URL to validate")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flags := feedsFlags{
		Mirror: mirrorFlags{
			cmd:     mirrorCmd,
			bucket:  mirrorBucket,
			info:    mirrorInfo,
			status:  mirrorStatus,
			timeout: mirrorTimeout,
		},
		Validate: validateFlags{
			cmd:    validateCmd,
			bucket: validateBucket,
		},
	}

	if err := runSubcommand(ctx, &flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type feedsFlags struct {
	Mirror   mirrorFlags
	Validate validateFlags
}

type mirrorFlags struct {
	cmd     *flag.FlagSet
	bucket  *string
	info    *string
	status  *string
	timeout *time.Duration
}

type validateFlags struct {
	cmd    *flag.FlagSet
	bucket *string
}

func runSubcommand(ctx context.Context, flags *feedsFlags) error {
	switch os.Args[1] {
	case "mirror":
		return handleMirror(ctx, flags)
	case "validate":
		return handleValidate(ctx, flags)
	default:
		printUsage()

		return errors.New("unknown subcommand")
	}
}

func handleMirror(ctx context.Context, flags *feedsFlags) error {
	if err := flags.Mirror.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse mirror flags")
	}

	stationsCfg := &config.StationsConfig{
		InformationURL: *flags.Mirror.info,
		StatusURL:      *flags.Mirror.status,
		Timeout:        *flags.Mirror.timeout,
	}
	if stationsCfg.InformationURL == "" || stationsCfg.StatusURL == "" {
		cfg, err := config.New()
		if err != nil {
			return errors.Wrap(err, "feed URLs not given and config could not be loaded")
		}
		if stationsCfg.InformationURL == "" {
			stationsCfg.InformationURL = cfg.Stations.InformationURL
		}
		if stationsCfg.StatusURL == "" {
			stationsCfg.StatusURL = cfg.Stations.StatusURL
		}
	}

	return runMirror(ctx, stationsCfg, *flags.Mirror.bucket)
}

func handleValidate(ctx context.Context, flags *feedsFlags) error {
	if err := flags.Validate.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse validate flags")
	}

	return runValidate(ctx, *flags.Validate.bucket)
}

func runMirror(ctx context.Context, stationsCfg *config.StationsConfig, bucketURL string) error {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return errors.Wrapf(err, "open bucket %s", bucketURL)
	}
	defer bucket.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	source := stations.New(stationsCfg, logger, nil)

	fmt.Printf("Mirroring station feeds into %s\n", bucketURL)
	fmt.Printf("Information: %s\n", stationsCfg.InformationURL)
	fmt.Printf("Status:      %s\n", stationsCfg.StatusURL)

	start := time.Now()
	manifest, err := source.Mirror(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, "mirror failed")
	}

	printManifest(manifest)
	fmt.Printf("\nMirror completed in %s\n", util.FormatDuration(time.Since(start)))

	return nil
}

func runValidate(ctx context.Context, bucketURL string) error {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return errors.Wrapf(err, "open bucket %s", bucketURL)
	}
	defer bucket.Close()

	fmt.Printf("Validating station feeds in %s\n", bucketURL)

	manifest, err := stations.VerifyMirror(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, "validation failed")
	}

	printManifest(manifest)
	fmt.Println("\nValidation passed")

	return nil
}

func printManifest(manifest *stations.Manifest) {
	fmt.Printf("\nGenerated: %s\n", manifest.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Stations:  %d\n", manifest.Stations)
	fmt.Printf("Inventory: %d\n", manifest.Inventory)

	keys := make([]string, 0, len(manifest.Files))
	for key := range manifest.Files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		file := manifest.Files[key]
		fmt.Printf("  %s (%s) sha256:%s\n", key, util.FormatBytes(file.SizeBytes), file.SHA256)
	}
}

func printUsage() {
	fmt.Println("Usage: feeds <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  mirror      Copy the GBFS station feeds into a bucket")
	fmt.Println("  validate    Check a mirrored bucket against its manifest")
	fmt.Println("")
	fmt.Println("Use 'feeds <command> -h' for more information about a command.")
}
