package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

const (
	// CloudWatch Logs limits
	maxLogEventsPerRequest = 10000
	maxLogEventSize        = 256000 // 256 KB

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
)

// LogsSinkConfig holds configuration for the CloudWatch Logs sink.
type LogsSinkConfig struct {
	LogGroupName    string // CloudWatch log group name
	LogStreamName   string // CloudWatch log stream name
	Region          string // AWS region
	Endpoint        string // Optional endpoint override (for LocalStack)
	AccessKeyID     string // AWS access key
	SecretAccessKey string // AWS secret key
	BufferSize      int    // Buffer size before auto-flush
	FlushInterval   time.Duration
	AutoCreate      bool // Automatically create log group/stream if missing
}

// LogsSink buffers records and ships them to CloudWatch Logs in batches.
// It implements logging.Sink: Deliver only appends to the buffer, the
// network work happens on the flush path.
type LogsSink struct {
	client        *cloudwatchlogs.Client
	logGroupName  string
	logStreamName string
	autoCreate    bool

	mu         sync.Mutex
	buffer     []logging.Record
	bufferSize int

	sequenceToken *string // CloudWatch requires sequence tokens for ordering

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewLogsSink creates a CloudWatch Logs sink and starts its background flush
// goroutine.
func NewLogsSink(ctx context.Context, cfg LogsSinkConfig) (*LogsSink, error) {
	if cfg.LogGroupName == "" {
		return nil, fmt.Errorf("log group name is required")
	}
	if cfg.LogStreamName == "" {
		return nil, fmt.Errorf("log stream name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s := &LogsSink{
		client:        cloudwatchlogs.NewFromConfig(awsCfg),
		logGroupName:  cfg.LogGroupName,
		logStreamName: cfg.LogStreamName,
		autoCreate:    cfg.AutoCreate,
		buffer:        make([]logging.Record, 0, cfg.BufferSize),
		bufferSize:    cfg.BufferSize,
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		stopCh:        make(chan struct{}),
	}

	if cfg.AutoCreate {
		if err := s.ensureLogGroupAndStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to create log group/stream: %w", err)
		}
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Deliver implements logging.Sink: the record is buffered for the next batch.
func (s *LogsSink) Deliver(ctx context.Context, rec logging.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, rec)

	if len(s.buffer) >= s.bufferSize {
		if err := s.flushBufferUnsafe(ctx); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered records.
func (s *LogsSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining records.
func (s *LogsSink) Close(ctx context.Context) error {
	close(s.stopCh)
	s.flushTicker.Stop()
	s.wg.Wait()

	return s.Flush(ctx)
}

func (s *LogsSink) flushLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			// Failed flushes keep the buffer; the next tick retries.
			_ = s.Flush(ctx)
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (s *LogsSink) flushBufferUnsafe(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}

	events := make([]types.InputLogEvent, 0, len(s.buffer))
	for _, rec := range s.buffer {
		event, err := s.convertToLogEvent(rec)
		if err != nil {
			// Skip malformed records but don't fail the entire batch
			continue
		}
		events = append(events, event)
	}

	if len(events) == 0 {
		s.buffer = s.buffer[:0]
		return nil
	}

	// CloudWatch requires events sorted by timestamp.
	sort.Slice(events, func(i, j int) bool {
		return *events[i].Timestamp < *events[j].Timestamp
	})

	for i := 0; i < len(events); i += maxLogEventsPerRequest {
		end := i + maxLogEventsPerRequest
		if end > len(events) {
			end = len(events)
		}

		if err := s.putLogEventsWithRetry(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	s.buffer = s.buffer[:0]

	return nil
}

func (s *LogsSink) putLogEventsWithRetry(ctx context.Context, events []types.InputLogEvent) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		input := &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(s.logGroupName),
			LogStreamName: aws.String(s.logStreamName),
			LogEvents:     events,
			SequenceToken: s.sequenceToken,
		}

		output, err := s.client.PutLogEvents(ctx, input)
		if err == nil {
			s.sequenceToken = output.NextSequenceToken
			return nil
		}

		// Retry immediately with the token CloudWatch expected.
		var invalidSeqErr *types.InvalidSequenceTokenException
		if errors.As(err, &invalidSeqErr) {
			s.sequenceToken = invalidSeqErr.ExpectedSequenceToken
			continue
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// convertToLogEvent serializes a record to one CloudWatch InputLogEvent. The
// event message is the same flat JSON object the other sinks see; the event
// timestamp comes from the record's ts field when it parses.
func (s *LogsSink) convertToLogEvent(rec logging.Record) (types.InputLogEvent, error) {
	messageJSON, err := json.Marshal(rec)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	message := string(messageJSON)
	if len(message) > maxLogEventSize {
		message = message[:maxLogEventSize-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(recordTimestamp(rec).UnixMilli()),
	}, nil
}

func recordTimestamp(rec logging.Record) time.Time {
	if raw, ok := rec[logging.KeyTimestamp].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

// ensureLogGroupAndStream creates the log group and stream if they don't exist.
func (s *LogsSink) ensureLogGroupAndStream(ctx context.Context) error {
	_, err := s.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(s.logGroupName),
	})
	if err != nil {
		var alreadyExists *types.ResourceAlreadyExistsException
		if !errors.As(err, &alreadyExists) {
			return fmt.Errorf("failed to create log group: %w", err)
		}
	}

	_, err = s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.logGroupName),
		LogStreamName: aws.String(s.logStreamName),
	})
	if err != nil {
		var alreadyExists *types.ResourceAlreadyExistsException
		if !errors.As(err, &alreadyExists) {
			return fmt.Errorf("failed to create log stream: %w", err)
		}
	}

	return nil
}

func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	// Static credentials take precedence over the default chain if provided
	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
