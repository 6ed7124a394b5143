/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/suparena/chainquery"
	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/registry"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
	"github.com/suparena/chainquery/transport/ddb"
	"github.com/suparena/chainquery/transport/ws"
)

const (
	backendWS  = "ws"
	backendDDB = "ddb"
)

// config holds the resolved CLI settings. Flags win over the environment.
type config struct {
	Backend   string
	Endpoint  string
	Metadata  string
	Table     string
	Region    string
	AccessKey string
	SecretKey string
	At        string
	PageSize  uint
}

// loadConfig reads envFile (a missing file is fine) and overlays flags.
func loadConfig(envFile string, flags config) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := config{
		Backend:   os.Getenv("CHAINQUERY_BACKEND"),
		Endpoint:  os.Getenv("CHAINQUERY_ENDPOINT"),
		Metadata:  os.Getenv("CHAINQUERY_METADATA"),
		Table:     os.Getenv("AWS_DDB_TABLE"),
		Region:    os.Getenv("AWS_REGION"),
		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
		SecretKey: os.Getenv("AWS_SECRET_KEY"),
		At:        flags.At,
		PageSize:  flags.PageSize,
	}
	override(&cfg.Backend, flags.Backend)
	override(&cfg.Endpoint, flags.Endpoint)
	override(&cfg.Metadata, flags.Metadata)
	override(&cfg.Table, flags.Table)
	override(&cfg.Region, flags.Region)
	if cfg.Backend == "" {
		cfg.Backend = backendWS
	}
	return cfg, cfg.validate()
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func (c config) validate() error {
	if c.Metadata == "" {
		return errors.New("no metadata document: set CHAINQUERY_METADATA or --metadata")
	}
	switch c.Backend {
	case backendWS:
		if c.Endpoint == "" {
			return errors.New("no endpoint: set CHAINQUERY_ENDPOINT or --endpoint")
		}
	case backendDDB:
		if c.Table == "" {
			return errors.New("no table: set AWS_DDB_TABLE or --table")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, backendWS, backendDDB)
	}
	return nil
}

// block returns the block reference selected by --at.
func (c config) block() (storagemodels.BlockRef, error) {
	if c.At == "" {
		return storagemodels.Current, nil
	}
	hash, err := storagemodels.ParseHash(c.At)
	if err != nil {
		return storagemodels.Current, err
	}
	return storagemodels.At(hash), nil
}

func (c config) queryOptions() []storagemodels.QueryOption {
	opts := []storagemodels.QueryOption{storagemodels.WithLogger(logger)}
	if c.PageSize > 0 {
		opts = append(opts, storagemodels.WithIterationPageSize(c.PageSize))
	}
	return opts
}

// openTransport connects the configured backend. Tests replace it.
var openTransport = func(ctx context.Context, cfg config) (transport.Transport, func(), error) {
	switch cfg.Backend {
	case backendDDB:
		tr, err := ddb.NewFromCredentials(cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Table, ddb.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return tr, func() {}, nil
	default:
		client, err := ws.Dial(ctx, cfg.Endpoint, ws.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close connection", zap.Error(err))
			}
		}, nil
	}
}

// connect loads settings and metadata and returns a ready API.
func connect(ctx context.Context) (*chainquery.API, config, func(), error) {
	cfg, err := loadConfig(envFile, cfgFlags)
	if err != nil {
		return nil, cfg, nil, err
	}
	md, err := registry.LoadFile(cfg.Metadata)
	if err != nil {
		return nil, cfg, nil, err
	}
	tr, closeFn, err := openTransport(ctx, cfg)
	if err != nil {
		return nil, cfg, nil, err
	}
	api, err := chainquery.New(tr, newCodec(), md, cfg.queryOptions()...)
	if err != nil {
		closeFn()
		return nil, cfg, nil, err
	}
	logger.Debug("Connected",
		zap.String("backend", cfg.Backend),
		zap.Uint32("metadataVersion", md.Version()),
		zap.Strings("modules", md.Modules()))
	return api, cfg, closeFn, nil
}

// rawCodec decodes types the primitive registry does not know as raw bytes,
// so composite values still print.
type rawCodec struct {
	*codec.Registry
}

func newCodec() rawCodec {
	return rawCodec{Registry: codec.NewPrimitiveRegistry()}
}

func (c rawCodec) Decode(typeRef storagemodels.TypeRef, data []byte) (any, error) {
	if !c.Has(typeRef) {
		return append([]byte(nil), data...), nil
	}
	return c.Registry.Decode(typeRef, data)
}
