package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"pulse/internal/core"
	"pulse/internal/ingest"
)

type fakeSource struct {
	mu          sync.Mutex
	fingerprint string
	records     []core.TransactionRecord
	loads       int
	err         error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fingerprint(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fingerprint, nil
}

func (f *fakeSource) Load(context.Context) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Result{
		Records: append([]core.TransactionRecord(nil), f.records...),
		Report:  ingest.Report{RunID: "run", Source: "fake"},
	}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStoreInitialSnapshotIsDegraded(t *testing.T) {
	s := NewStore(&fakeSource{}, quiet())
	snap := s.Current()
	if snap == nil || !snap.Degraded() || snap.Version != 0 || len(snap.Records) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestStoreReloadSkipsUnchangedSource(t *testing.T) {
	src := &fakeSource{
		fingerprint: "v1",
		records:     []core.TransactionRecord{{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Recharge", Count: 1, Amount: 2}},
	}
	s := NewStore(src, quiet())
	ctx := context.Background()

	snap, changed, err := s.Reload(ctx, false)
	if err != nil || !changed || snap.Version != 1 {
		t.Fatalf("first Reload() = %+v, %v, %v", snap, changed, err)
	}
	if len(snap.Dimensions.States) != 1 || snap.Dimensions.States[0] != "Goa" {
		t.Fatalf("dimensions not computed: %+v", snap.Dimensions)
	}

	_, changed, _ = s.Reload(ctx, false)
	if changed || src.loads != 1 {
		t.Fatalf("unchanged source was reloaded: changed=%v loads=%d", changed, src.loads)
	}

	snap, changed, _ = s.Reload(ctx, true)
	if !changed || src.loads != 2 || snap.Version != 2 {
		t.Fatalf("forced reload ignored: changed=%v loads=%d version=%d", changed, src.loads, snap.Version)
	}

	src.fingerprint = "v2"
	if _, changed, _ = s.Reload(ctx, false); !changed {
		t.Fatal("changed fingerprint did not trigger a reload")
	}
}

func TestStoreReloadErrorKeepsSnapshot(t *testing.T) {
	src := &fakeSource{fingerprint: "v1"}
	s := NewStore(src, quiet())
	ctx := context.Background()
	first, _, _ := s.Reload(ctx, false)

	src.err = errors.New("disk on fire")
	src.fingerprint = "v2"
	snap, changed, err := s.Reload(ctx, false)
	if err == nil || changed {
		t.Fatalf("expected error without publish, got changed=%v err=%v", changed, err)
	}
	if snap != first || s.Current() != first {
		t.Fatal("failed reload replaced the published snapshot")
	}
}
