package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	todoSuffix   = ":todo"
	doingSuffix  = ":doing"
	failedSuffix = ":failed"
)

var (
	ErrStoreUnavailable = errors.New("queue store unavailable")
	ErrNotAList         = errors.New("queue key does not hold a list")
)

// StoreUnavailableError reports a failed read against the store for one key.
type StoreUnavailableError struct {
	Key string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s: LLEN %s: %v", ErrStoreUnavailable, e.Key, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// KeyTypeError reports a key that exists but does not hold a list. The store
// itself answered, so this is not a StoreUnavailableError.
type KeyTypeError struct {
	Key string
	Err error
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("%s: LLEN %s: %v", ErrNotAList, e.Key, e.Err)
}

func (e *KeyTypeError) Unwrap() []error {
	return []error{ErrNotAList, e.Err}
}

// Lister is the subset of the redis client the reader needs.
type Lister interface {
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Options configures the connection to the store.
type Options struct {
	Addr     string
	Database int
	Prefix   string
}

// Queue reads the lengths of the todo, doing and failed lists under one prefix.
type Queue struct {
	client     Lister
	closer     func() error
	todoName   string
	doingName  string
	failedName string
}

// New connects lazily; the first read opens the connection.
func New(opts Options) *Queue {
	client := redis.NewClient(&redis.Options{
		Addr:       opts.Addr,
		DB:         opts.Database,
		MaxRetries: -1,
	})
	q := NewWithClient(client, opts.Prefix)
	q.closer = client.Close
	return q
}

func NewWithClient(client Lister, prefix string) *Queue {
	return &Queue{
		client:     client,
		todoName:   prefix + todoSuffix,
		doingName:  prefix + doingSuffix,
		failedName: prefix + failedSuffix,
	}
}

func (q *Queue) TodoCount(ctx context.Context) (int64, error) {
	return q.length(ctx, q.todoName)
}

func (q *Queue) DoingCount(ctx context.Context) (int64, error) {
	return q.length(ctx, q.doingName)
}

func (q *Queue) FailedCount(ctx context.Context) (int64, error) {
	return q.length(ctx, q.failedName)
}

// Counts reads todo, doing and failed in that order and stops at the first failure.
func (q *Queue) Counts(ctx context.Context) (models.QueueCounts, error) {
	var counts models.QueueCounts
	var err error
	if counts.Todo, err = q.TodoCount(ctx); err != nil {
		return models.QueueCounts{}, err
	}
	if counts.Doing, err = q.DoingCount(ctx); err != nil {
		return models.QueueCounts{}, err
	}
	if counts.Failed, err = q.FailedCount(ctx); err != nil {
		return models.QueueCounts{}, err
	}
	return counts, nil
}

// Keys returns the three list names, in read order.
func (q *Queue) Keys() []string {
	return []string{q.todoName, q.doingName, q.failedName}
}

func (q *Queue) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer()
}

func (q *Queue) length(ctx context.Context, key string) (int64, error) {
	n, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		if isWrongType(err) {
			return 0, &KeyTypeError{Key: key, Err: err}
		}
		return 0, &StoreUnavailableError{Key: key, Err: err}
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func isWrongType(err error) bool {
	var replyErr redis.Error
	return errors.As(err, &replyErr) && strings.HasPrefix(replyErr.Error(), "WRONGTYPE")
}
