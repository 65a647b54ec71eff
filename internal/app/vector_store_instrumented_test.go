package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
)

func TestInstrumentVectorStorePassThrough(t *testing.T) {
	inner := &testVectorStore{}
	vs := instrumentVectorStore("qdrant", inner)
	if vs == nil {
		t.Fatalf("instrumentVectorStore: expected non-nil wrapper")
	}
	ctx := context.Background()

	if err := vs.EnsureIndex(ctx, 3); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := vs.Upsert(ctx, "ns", []pinecone.Vector{{ID: "v1", Values: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := vs.QueryMatches(ctx, "ns", []float32{1, 2, 3}, 3, nil)
	if err != nil {
		t.Fatalf("QueryMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "v1" {
		t.Fatalf("QueryMatches: unexpected %+v", matches)
	}
	if err := vs.DeleteIDs(ctx, "ns", []string{"v1"}); err != nil {
		t.Fatalf("DeleteIDs: %v", err)
	}

	if inner.ensureCalls != 1 || inner.upsertCalls != 1 || inner.queryCalls != 1 || inner.deleteCalls != 1 {
		t.Fatalf(
			"unexpected call counts: ensure=%d upsert=%d query=%d delete=%d",
			inner.ensureCalls,
			inner.upsertCalls,
			inner.queryCalls,
			inner.deleteCalls,
		)
	}
}

func TestInstrumentVectorStoreErrorPassThrough(t *testing.T) {
	want := errors.New("delete failed")
	vs := instrumentVectorStore("qdrant", &testVectorStore{deleteErr: want})

	err := vs.DeleteIDs(context.Background(), "ns", []string{"v1"})
	if !errors.Is(err, want) {
		t.Fatalf("DeleteIDs: want=%v got=%v", want, err)
	}
}

func TestOperationStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), "timeout"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range cases {
		if got := operationStatus(tc.err); got != tc.want {
			t.Fatalf("operationStatus(%v): want=%s got=%s", tc.err, tc.want, got)
		}
	}
}

func TestInstrumentVectorStoreNil(t *testing.T) {
	if vs := instrumentVectorStore("qdrant", nil); vs != nil {
		t.Fatalf("instrumentVectorStore(nil): want nil, got %T", vs)
	}
}

type testVectorStore struct {
	ensureCalls int
	upsertCalls int
	queryCalls  int
	deleteCalls int

	ensureErr error
	deleteErr error
}

func (f *testVectorStore) EnsureIndex(_ context.Context, _ int) error {
	f.ensureCalls++
	return f.ensureErr
}

func (f *testVectorStore) Upsert(_ context.Context, _ string, _ []pinecone.Vector) error {
	f.upsertCalls++
	return nil
}

func (f *testVectorStore) QueryMatches(_ context.Context, _ string, _ []float32, _ int, _ map[string]any) ([]pinecone.VectorMatch, error) {
	f.queryCalls++
	return []pinecone.VectorMatch{{ID: "v1", Score: 0.9}}, nil
}

func (f *testVectorStore) DeleteIDs(_ context.Context, _ string, _ []string) error {
	f.deleteCalls++
	return f.deleteErr
}
