package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/temporalab/modelconf/persistence"
	"github.com/temporalab/modelconf/runstore"
	"github.com/temporalab/modelconf/snapshot"
	"github.com/temporalab/modelconf/variant"
)

// confDir returns the configuration directory, honoring the --conf-dir flag
// and the MODELCONF_CONF_DIR environment variable.
func confDir() string {
	return viper.GetString("conf_dir")
}

// openRegistry builds a registry over the configuration directory.
func openRegistry(opts ...variant.Option) *variant.Registry {
	return variant.NewRegistry(persistence.NewFSRepository(confDir()), opts...)
}

// newRunStore builds the snapshot store selected by a --save flag. Redis and
// S3 settings come from MODELCONF_REDIS_ADDR and MODELCONF_S3_BUCKET.
func newRunStore(ctx context.Context, backend string) (runstore.Store, error) {
	switch backend {
	case "memory":
		return runstore.NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: viper.GetString("redis_addr")})
		return runstore.NewRedisStore(client), nil

	case "s3":
		bucket := viper.GetString("s3_bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 store requires MODELCONF_S3_BUCKET")
		}
		return runstore.NewS3Store(ctx, bucket)

	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, redis or s3)", backend)
	}
}

// encodeSnapshot renders a snapshot in the requested output format.
func encodeSnapshot(snap *snapshot.Snapshot, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return snap.EncodeYAML()
	case "json":
		return snap.EncodeJSON()
	default:
		return nil, fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}

// writeOutput writes data to a file, or to stdout when path is empty.
func writeOutput(data []byte, path string) error {
	if path == "" {
		fmt.Print(string(data))
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Println()
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
