/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client used by the snapshot transport.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *sdk.BatchGetItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *sdk.BatchWriteItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error)
}

const (
	// batchGetLimit is the DynamoDB cap on keys per BatchGetItem.
	batchGetLimit = 100
	// batchWriteLimit is the DynamoDB cap on requests per BatchWriteItem.
	batchWriteLimit = 25
	// queryPageLimit bounds a single Query page during key iteration.
	queryPageLimit = 1000
)

// Options configures a Transport.
type Options struct {
	Logger       *zap.Logger
	MaxRetries   int
	RetryBackoff time.Duration
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns three retries with a 100ms linear backoff and a no-op logger.
func DefaultOptions() Options {
	return Options{
		Logger:       zap.NewNop(),
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMaxRetries sets how many times throttled calls are retried.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries. Attempt n waits n times the base.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.RetryBackoff = d
	}
}

// NewDynamoDBClient creates a DynamoDB client with static credentials.
func NewDynamoDBClient(awsAccessKey, awsSecretKey, awsRegion string) (*sdk.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(awsAccessKey, awsSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return sdk.NewFromConfig(cfg), nil
}

// NewFromCredentials builds a Transport over tableName using static credentials.
func NewFromCredentials(awsAccessKey, awsSecretKey, awsRegion, tableName string, opts ...Option) (*Transport, error) {
	client, err := NewDynamoDBClient(awsAccessKey, awsSecretKey, awsRegion)
	if err != nil {
		return nil, err
	}
	return New(client, tableName, opts...), nil
}

// withRetry runs call until it succeeds, fails with a non-retryable error or
// runs out of attempts.
func withRetry[T any](ctx context.Context, opts Options, op string, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return zero, err
		}

		if attempt < opts.MaxRetries {
			opts.Logger.Debug("Retrying DynamoDB call",
				zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
			if err := backoff(ctx, opts, attempt); err != nil {
				return zero, err
			}
		}
	}
	return zero, fmt.Errorf("%s failed after %d retries: %w", op, opts.MaxRetries, lastErr)
}

// backoff sleeps (attempt+1) times the base delay unless ctx ends first.
func backoff(ctx context.Context, opts Options, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(attempt+1) * opts.RetryBackoff):
		return nil
	}
}

// isRetryableError determines if an error should trigger a retry.
// SDK errors arrive wrapped in operation errors, so the checks unwrap.
func isRetryableError(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return true
	}

	var awsErr interface{ IsRetryable() bool }
	if errors.As(err, &awsErr) {
		return awsErr.IsRetryable()
	}
	return false
}

func snapshotKey(partition, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partition},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
