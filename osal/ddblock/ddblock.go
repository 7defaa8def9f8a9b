// Package ddblock implements osal.Host with DynamoDB leases, so that the
// metadata lock of a volume stored in a shared object store (see
// bdev/blobdev) is exclusive across hosts, not just within one process.
//
// Each mutex name is one item in the lock table. Acquiring the mutex is a
// conditional PutItem that only succeeds when no item exists or the
// previous holder's lease expired; releasing it deletes the item if this
// host still owns it. While the mutex is held, the lease is extended every
// Lease/3 by a conditional UpdateItem, so critical sections may outlast the
// lease. A host that stops renewing (crash, partition longer than the
// remaining lease) loses the lock to the next contender.
//
// Table schema:
//   - Partition key: lock_key (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name edgeport-locks \
//	  --attribute-definitions AttributeName=lock_key,AttributeType=S \
//	  --key-schema AttributeName=lock_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package ddblock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hupe1980/edgeport/osal"
	"golang.org/x/time/rate"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Options configures a Locker.
type Options struct {
	// Owner identifies this host in lock items. Default: a random UUID.
	Owner string
	// Lease is how long an acquired lock stays valid without renewal.
	// Held locks are renewed every Lease/3.
	// Default: 30s
	Lease time.Duration
	// PollInterval paces retries while the lock is held elsewhere.
	// Default: 250ms
	PollInterval time.Duration
	// MaxHandles bounds the number of live handles. Default: 64
	MaxHandles int
	// Now returns the current time. Default: time.Now
	Now func() time.Time
	// After paces lease renewal. Default: time.After
	After func(d time.Duration) <-chan time.Time
}

type handle struct {
	key  string
	held bool

	stop chan struct{} // closes to end renewal; nil when not renewing
	done chan struct{} // closed when the renewal goroutine exits
}

// Locker is an osal.Host backed by a DynamoDB table.
type Locker struct {
	client  Client
	table   string
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	next    osal.Handle
	handles map[osal.Handle]*handle
}

// New creates a Locker using table.
func New(client Client, table string, optFns ...func(*Options)) *Locker {
	opts := Options{
		Owner:        uuid.NewString(),
		Lease:        30 * time.Second,
		PollInterval: 250 * time.Millisecond,
		MaxHandles:   64,
		Now:          time.Now,
		After:        time.After,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Lease <= 0 {
		opts.Lease = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}

	return &Locker{
		client:  client,
		table:   table,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.PollInterval), 1),
		handles: make(map[osal.Handle]*handle),
	}
}

// Owner returns the owner id written into lock items.
func (l *Locker) Owner() string { return l.opts.Owner }

// MutexCreate implements osal.Host. It only allocates local state; the
// lock item is created on first lock.
func (l *Locker) MutexCreate(name string) (osal.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.handles) >= l.opts.MaxHandles {
		return osal.InvalidHandle, osal.ErrNoResources
	}
	l.next++
	if l.next == osal.InvalidHandle {
		l.next++
	}
	l.handles[l.next] = &handle{key: name}
	return l.next, nil
}

// MutexDestroy implements osal.Host. Renewal of a held lock stops; the
// item then expires after the lease.
func (l *Locker) MutexDestroy(h osal.Handle) error {
	l.mu.Lock()
	hd, ok := l.handles[h]
	if !ok {
		l.mu.Unlock()
		return osal.ErrInvalidHandle
	}
	delete(l.handles, h)
	l.mu.Unlock()

	l.stopRenewal(hd)
	return nil
}

func (l *Locker) lookup(h osal.Handle) (*handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hd, ok := l.handles[h]
	if !ok {
		return nil, osal.ErrInvalidHandle
	}
	return hd, nil
}

func (l *Locker) setHeld(hd *handle, v bool) {
	l.mu.Lock()
	hd.held = v
	l.mu.Unlock()
}

// MutexLock implements osal.Host. While the item is held by another owner
// the lock is retried every PollInterval until timeout. Errors other than a
// lost race are returned immediately.
func (l *Locker) MutexLock(h osal.Handle, timeout time.Duration) error {
	hd, err := l.lookup(h)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if timeout != osal.Forever && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		won, err := l.tryLock(ctx, hd.key)
		if err != nil {
			return err
		}
		if won {
			l.setHeld(hd, true)
			l.startRenewal(hd)
			return nil
		}
		if timeout != osal.Forever && timeout <= 0 {
			return osal.ErrTimeout
		}
		if err := l.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met.
			return osal.ErrTimeout
		}
	}
}

func (l *Locker) tryLock(ctx context.Context, key string) (bool, error) {
	now := l.opts.Now()
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			"lock_key":   &types.AttributeValueMemberS{Value: key},
			"owner":      &types.AttributeValueMemberS{Value: l.opts.Owner},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(l.opts.Lease).UnixMilli(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(lock_key) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("ddblock: lock %s: %w", key, err)
	}
	return true, nil
}

// MutexUnlock implements osal.Host. It returns osal.ErrNotLocked if this
// host does not hold the lock, including when the lease expired and another
// owner took over.
func (l *Locker) MutexUnlock(h osal.Handle) error {
	hd, err := l.lookup(h)
	if err != nil {
		return err
	}

	l.mu.Lock()
	held := hd.held
	l.mu.Unlock()
	if !held {
		return osal.ErrNotLocked
	}
	l.stopRenewal(hd)

	_, err = l.client.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"lock_key": &types.AttributeValueMemberS{Value: hd.key},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.opts.Owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			l.setHeld(hd, false)
			return osal.ErrNotLocked
		}
		return fmt.Errorf("ddblock: unlock %s: %w", hd.key, err)
	}
	l.setHeld(hd, false)
	return nil
}

func (l *Locker) startRenewal(hd *handle) {
	l.stopRenewal(hd)
	stop, done := make(chan struct{}), make(chan struct{})

	l.mu.Lock()
	hd.stop, hd.done = stop, done
	l.mu.Unlock()

	go l.renew(hd.key, stop, done)
}

func (l *Locker) stopRenewal(hd *handle) {
	l.mu.Lock()
	stop, done := hd.stop, hd.done
	hd.stop, hd.done = nil, nil
	l.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// renew extends the lease every Lease/3 until stopped or until the item is
// no longer ours. Transient errors are retried on the next tick.
func (l *Locker) renew(key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.opts.Lease / 3
	for {
		select {
		case <-stop:
			return
		case <-l.opts.After(interval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		err := l.extend(ctx, key)
		cancel()

		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return
		}
	}
}

func (l *Locker) extend(ctx context.Context, key string) error {
	expires := l.opts.Now().Add(l.opts.Lease).UnixMilli()
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"lock_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression:    aws.String("SET expires_at = :exp"),
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.opts.Owner},
			":exp":   &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
		},
	})
	return err
}
