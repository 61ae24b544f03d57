package db

import (
	"errors"
	"strings"
	"testing"
)

func TestIndexBuilder_CorpusSchema(t *testing.T) {
	idx, err := NewIndex("listbot:corpus:idx").
		Prefix("listbot:corpus:").
		Tag("entity_type").
		Tag("entity_id").
		VectorHNSW("__vector", "vector", 768, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idx.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(idx.Fields))
	}
	vf, ok := idx.VectorField()
	if !ok {
		t.Fatal("expected vector field")
	}
	if vf.Alias != "vector" || vf.VectorDim != 768 || vf.VectorAlgo != VectorHNSW {
		t.Errorf("unexpected vector field %+v", vf)
	}
	if vf.VectorM != 16 || vf.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params M=%d EF=%d", vf.VectorM, vf.VectorEFConstruct)
	}
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("built definition changed after builder mutation: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("a"), "name is required"},
		{"bad name", NewIndex("bad name").Tag("a"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"duplicate", NewIndex("idx").Tag("a").Tag("a"), "duplicate field"},
		{"zero dim", NewIndex("idx").VectorFlat("v", "", 0, DistanceL2), "positive DIM"},
		{"alias clash", NewIndex("idx").Tag("vector").VectorFlat("__vector", "vector", 4, DistanceL2), "duplicate field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("c:idx").Prefix("c:").Tag("entity_type").
		VectorHNSW("__vector", "vector", 4, DistanceCosine, 0, 0).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE c:idx ON HASH PREFIX c: SCHEMA entity_type TAG __vector AS vector VECTOR HNSW"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseDistance(t *testing.T) {
	for in, want := range map[string]DistanceMetric{"": DistanceCosine, "cosine": DistanceCosine, "l2": DistanceL2, "IP": DistanceIP} {
		got, err := ParseDistance(in)
		if err != nil || got != want {
			t.Errorf("ParseDistance(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDistance("manhattan"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("conn refused")
	err := &Error{Op: OpSearch, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find inner error")
	}
	if err.Error() != "FT.SEARCH: conn refused" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(OpGet, "k", nil) != nil {
		t.Error("expected nil for a nil error")
	}

	inner := errors.New("timeout")
	err := Wrap(OpHSet, "listbot:doc:list:1", inner)
	if err.Error() != "HSET listbot:doc:list:1: timeout" {
		t.Errorf("unexpected message %q", err.Error())
	}
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Target != "listbot:doc:list:1" {
		t.Errorf("expected *Error with target, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		metric   DistanceMetric
		distance float64
		want     float64
	}{
		{"cosine", DistanceCosine, 0.25, 0.75},
		{"empty metric is cosine", "", 0.25, 0.75},
		{"cosine clamps to zero", DistanceCosine, 1.3, 0},
		{"ip", DistanceIP, 0.4, 0.6},
		{"squared l2", DistanceL2, 1.2, 0.4},
		{"l2 opposite vectors", DistanceL2, 4, 0},
		{"negative distance clamps to one", DistanceCosine, -0.01, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.metric, tt.distance); got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("Similarity(%s, %v) = %v, want %v", tt.metric, tt.distance, got, tt.want)
			}
		})
	}
}
