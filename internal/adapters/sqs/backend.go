// Package sqs implements the queue backend secondary port against AWS SQS.
package sqs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/models"
)

// Config holds SQS backend configuration.
type Config struct {
	Region          string
	Profile         string
	Endpoint        string // custom endpoint, e.g. localstack
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// QueuePatterns are lowercase substrings a queue name must contain
	// to be treated as a dead-letter queue during discovery.
	QueuePatterns []string

	// CallTimeout bounds each individual API call.
	CallTimeout time.Duration

	// PeekOldest enables a zero-visibility single-message receive per
	// snapshot to estimate the oldest message's age.
	PeekOldest bool
}

// Backend implements secondary.QueueBackend for AWS SQS.
type Backend struct {
	client *sqs.Client
	config Config
	logger *zap.Logger

	mu   sync.RWMutex
	urls map[string]string // queue name -> queue URL, filled by Discover
}

// New creates an SQS backend with optional profile, static credentials,
// and custom endpoint support.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("aws region is required")
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if len(cfg.QueuePatterns) == 0 {
		cfg.QueuePatterns = []string{"-dlq", "-dead-letter", "-deadletter", "_dlq", "-dl"}
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		loadOptions = append(loadOptions, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var opts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Backend{
		client: sqs.NewFromConfig(awsCfg, opts...),
		config: cfg,
		logger: logger,
		urls:   make(map[string]string),
	}, nil
}

// Discover lists all queues and returns the names matching the
// dead-letter patterns, caching their URLs for later calls.
func (b *Backend) Discover(ctx context.Context) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		opCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
		out, err := b.client.ListQueues(opCtx, &sqs.ListQueuesInput{NextToken: nextToken})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to list queues: %w", err)
		}

		for _, url := range out.QueueUrls {
			name := queueNameFromURL(url)
			if !matchesDLQPattern(name, b.config.QueuePatterns) {
				continue
			}
			b.mu.Lock()
			b.urls[name] = url
			b.mu.Unlock()
			names = append(names, name)
		}

		if out.NextToken == nil {
			return names, nil
		}
		nextToken = out.NextToken
	}
}

// Attributes returns the current snapshot for one queue.
func (b *Backend) Attributes(ctx context.Context, queueName string) (models.QueueSnapshot, error) {
	url, err := b.queueURL(ctx, queueName)
	if err != nil {
		return models.QueueSnapshot{}, err
	}

	opCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	out, err := b.client.GetQueueAttributes(opCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return models.QueueSnapshot{}, fmt.Errorf("failed to get attributes for %s: %w", queueName, err)
	}

	count, err := strconv.Atoi(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)])
	if err != nil {
		return models.QueueSnapshot{}, fmt.Errorf("unparseable message count for %s: %w", queueName, err)
	}

	snap := models.QueueSnapshot{
		Name:         queueName,
		MessageCount: count,
		ObservedAt:   time.Now(),
	}

	if b.config.PeekOldest && count > 0 {
		if age, err := b.peekOldestAge(ctx, url); err != nil {
			// Age is advisory; a failed peek does not invalidate the count.
			b.logger.Warn("failed to peek oldest message age",
				zap.String("queue", queueName), zap.Error(err))
		} else {
			snap.OldestMessageAge = age
		}
	}

	return snap, nil
}

// Purge removes all messages from a queue. Operator-initiated only.
func (b *Backend) Purge(ctx context.Context, queueName string) error {
	url, err := b.queueURL(ctx, queueName)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	if _, err := b.client.PurgeQueue(opCtx, &sqs.PurgeQueueInput{QueueUrl: aws.String(url)}); err != nil {
		return fmt.Errorf("failed to purge %s: %w", queueName, err)
	}
	return nil
}

// queueURL resolves a queue name to its URL, via the discovery cache or a
// GetQueueUrl call for queues addressed before the first Discover.
func (b *Backend) queueURL(ctx context.Context, queueName string) (string, error) {
	b.mu.RLock()
	url, ok := b.urls[queueName]
	b.mu.RUnlock()
	if ok {
		return url, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	out, err := b.client.GetQueueUrl(opCtx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue %s: %w", queueName, err)
	}

	b.mu.Lock()
	b.urls[queueName] = *out.QueueUrl
	b.mu.Unlock()
	return *out.QueueUrl, nil
}

// peekOldestAge receives one message without consuming it (zero visibility
// timeout) and derives its age from the SentTimestamp attribute.
func (b *Backend) peekOldestAge(ctx context.Context, url string) (time.Duration, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	out, err := b.client.ReceiveMessage(opCtx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(url),
		MaxNumberOfMessages:         1,
		VisibilityTimeout:           0,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameSentTimestamp},
	})
	if err != nil {
		return 0, err
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	return ageFromSentTimestamp(out.Messages[0].Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], time.Now())
}

// matchesDLQPattern reports whether a queue name looks like a dead-letter
// queue. Matching is case-insensitive substring search.
func matchesDLQPattern(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// queueNameFromURL extracts the queue name from an SQS queue URL
// (https://sqs.<region>.amazonaws.com/<account>/<name>).
func queueNameFromURL(url string) string {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return url
	}
	return url[idx+1:]
}

// ageFromSentTimestamp converts SQS's millisecond-epoch SentTimestamp into
// an age relative to now.
func ageFromSentTimestamp(raw string, now time.Time) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable SentTimestamp %q: %w", raw, err)
	}
	age := now.Sub(time.UnixMilli(ms))
	if age < 0 {
		age = 0
	}
	return age, nil
}
