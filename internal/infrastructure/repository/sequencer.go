package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/usecase"
)

const seqCounterKey = "web5:seq"

// SequencerRepository is the ordered event log: a global monotonic
// counter plus a redis stream keyed by sequence number, so stream order
// and sequence order are the same thing.
type SequencerRepository struct {
	rdb *redis.Client
	mu  sync.Mutex
}

func NewSequencerRepository(rdb *redis.Client) *SequencerRepository {
	return &SequencerRepository{rdb: rdb}
}

// WithExclusive runs fn holding the emit lock. Events appended by one
// request are never interleaved with another's.
func (r *SequencerRepository) WithExclusive(ctx context.Context, fn func(usecase.Emitter) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (r *SequencerRepository) append(ctx context.Context, kind domain.EventKind, did string, payload any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, domain.SequencerError{Reason: "event payload serialization failed: " + err.Error()}
	}

	seq, err := r.rdb.Incr(ctx, seqCounterKey).Result()
	if err != nil {
		return 0, domain.SequencerError{Reason: "sequence counter failed: " + err.Error()}
	}

	event := domain.Event{
		Seq:     seq,
		Kind:    kind,
		DID:     did,
		Payload: body,
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return 0, domain.SequencerError{Reason: "event serialization failed: " + err.Error()}
	}

	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: domain.FirehoseStream,
		ID:     strconv.FormatInt(seq, 10) + "-0",
		Values: map[string]any{
			"did":   did,
			"kind":  string(kind),
			"event": string(raw),
		},
	}).Err()
	if err != nil {
		return 0, domain.SequencerError{Reason: "stream append failed: " + err.Error()}
	}
	return seq, nil
}

func (r *SequencerRepository) SequenceIdentityEvt(ctx context.Context, did string, handle *string) (int64, error) {
	return r.append(ctx, domain.EventKindIdentity, did, domain.IdentityEvt{
		DID:    did,
		Handle: handle,
	})
}

func (r *SequencerRepository) SequenceAccountEvt(ctx context.Context, did string, status domain.AccountStatus) (int64, error) {
	return r.append(ctx, domain.EventKindAccount, did, domain.AccountEvt{
		DID:    did,
		Status: status,
		Active: status == domain.AccountStatusActive,
	})
}

func (r *SequencerRepository) SequenceCommit(ctx context.Context, did string, commit domain.Commit, ops []domain.WriteResult) (int64, error) {
	return r.append(ctx, domain.EventKindCommit, did, domain.CommitEvt{
		DID:  did,
		Rev:  commit.Rev,
		CID:  commit.CID,
		Prev: commit.Prev,
		Ops:  ops,
	})
}

func (r *SequencerRepository) SequenceSyncEvt(ctx context.Context, did string, commit domain.Commit) (int64, error) {
	return r.append(ctx, domain.EventKindSync, did, domain.SyncEvt{
		DID:  did,
		Rev:  commit.Rev,
		CID:  commit.CID,
		Data: commit.Data,
	})
}

// Compact drops the DID's history from the stream, keeping only the
// excepted entries. Used after deletion so the tombstone survives alone.
func (r *SequencerRepository) Compact(ctx context.Context, did string, except []int64) error {
	keep := make(map[string]bool, len(except))
	for _, seq := range except {
		keep[strconv.FormatInt(seq, 10)+"-0"] = true
	}

	messages, err := r.rdb.XRange(ctx, domain.FirehoseStream, "-", "+").Result()
	if err != nil {
		return domain.SequencerError{Reason: "stream scan failed: " + err.Error()}
	}

	var doomed []string
	for _, message := range messages {
		owner, ok := message.Values["did"].(string)
		if !ok || owner != did {
			continue
		}
		if keep[message.ID] {
			continue
		}
		doomed = append(doomed, message.ID)
	}
	if len(doomed) == 0 {
		return nil
	}

	if err := r.rdb.XDel(ctx, domain.FirehoseStream, doomed...).Err(); err != nil {
		return domain.SequencerError{Reason: "stream compaction failed: " + err.Error()}
	}
	return nil
}
