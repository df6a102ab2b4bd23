package db

import (
	"errors"
	"strings"
	"testing"
)

func TestNewVectorIndex(t *testing.T) {
	idx, err := NewVectorIndex("zg:ann:run-1:idx", "zg:ann:run-1:", "vector", 768, 32, 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Fields) != 1 {
		t.Fatalf("fields count = %d, want 1", len(idx.Fields))
	}
	f := idx.Fields[0]
	if f.VectorAlgo != VectorHNSW || f.VectorDistance != DistanceCosine {
		t.Errorf("field = %+v, want HNSW COSINE", f)
	}
	if f.VectorDim != 768 || f.VectorM != 32 || f.VectorEFConstruct != 400 {
		t.Errorf("field params = %+v", f)
	}
}

func TestIndexDefinition_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     IndexDefinition
		wantErr string
	}{
		{"empty name", IndexDefinition{Fields: []IndexField{{Name: "x"}}}, "index name is required"},
		{"no fields", IndexDefinition{Name: "idx"}, "at least one field"},
		{
			"vector without dim",
			IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "v", Type: IndexFieldVector}}},
			"positive DIM",
		},
		{"invalid characters", IndexDefinition{Name: "idx with spaces", Fields: []IndexField{{Name: "x"}}}, "invalid characters"},
		{
			"duplicate fields",
			IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "x"}, {Name: "x"}}},
			"duplicate field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewVectorIndex("my-idx", "doc:", "vec", 4, 16, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE my-idx ON HASH PREFIX doc: SCHEMA vec VECTOR HNSW"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: OpGet, Err: ErrKeyNotFound}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Error("expected errors.Is to see the wrapped sentinel")
	}
	if err.Error() != "GET: db: key not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
