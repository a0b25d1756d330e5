package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/temporalab/modelconf/document"
)

func mustParse(t *testing.T, yaml string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("Unexpected parse error: %v", err)
	}
	return doc
}

func TestResolve_FullStringReferenceKeepsType(t *testing.T) {
	doc := mustParse(t, `
data:
  train:
    num_feat_dynamic_real: 3
params:
  num_feat_dynamic_real: ${data.train.num_feat_dynamic_real}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("params.num_feat_dynamic_real")
	if v != 3 {
		t.Errorf("Expected int 3, got %v (%T)", v, v)
	}
}

func TestResolve_EmbeddedReferenceSplices(t *testing.T) {
	doc := mustParse(t, `
name: deepar
trainer:
  epochs: 30
run_id: ${name}-e${trainer.epochs}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("run_id")
	if v != "deepar-e30" {
		t.Errorf("Expected %q, got %v", "deepar-e30", v)
	}
}

func TestResolve_ChainedReferences(t *testing.T) {
	doc := mustParse(t, `
a: ${b}
b: ${c}
c: 42
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("a")
	if v != 42 {
		t.Errorf("Expected a to resolve to c's value 42, got %v", v)
	}
}

func TestResolve_SelfReferenceIsCyclic(t *testing.T) {
	doc := mustParse(t, "a: ${a}")

	_, err := Resolve(doc)
	if err == nil {
		t.Fatal("Expected cyclic reference error")
	}

	var cyclic *CyclicReferenceError
	if !errors.As(err, &cyclic) {
		t.Fatalf("Expected *CyclicReferenceError, got %T: %v", err, err)
	}
	if !strings.Contains(cyclic.Error(), "a -> a") {
		t.Errorf("Expected chain a -> a in %q", cyclic.Error())
	}
}

func TestResolve_MutualCycle(t *testing.T) {
	doc := mustParse(t, `
a: ${b}
b: ${a}
`)

	_, err := Resolve(doc)
	var cyclic *CyclicReferenceError
	if !errors.As(err, &cyclic) {
		t.Fatalf("Expected *CyclicReferenceError, got %v", err)
	}
}

func TestResolve_MissingPathNamesIt(t *testing.T) {
	doc := mustParse(t, "x: ${data.test.freq}")

	_, err := Resolve(doc)
	if err == nil {
		t.Fatal("Expected unresolved reference error")
	}

	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Expected *UnresolvedReferenceError, got %T: %v", err, err)
	}
	if unresolved.Reference.String() != "data.test.freq" {
		t.Errorf("Expected missing path %q, got %q", "data.test.freq", unresolved.Reference.String())
	}
	if unresolved.Site.String() != "x" {
		t.Errorf("Expected site %q, got %q", "x", unresolved.Site.String())
	}
}

func TestResolve_IdentityWithoutReferences(t *testing.T) {
	doc := mustParse(t, `
name: tempflow
params:
  n_blocks: 3
  hidden_size: 100
  lags_seq: [1, 24, 168]
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(doc.Map(), resolved.Map()) {
		t.Errorf("Expected identical tree, got %v", resolved.Map())
	}
}

func TestResolve_NoResidualReferences(t *testing.T) {
	doc := mustParse(t, `
data:
  freq: H
  prediction_length: 24
params:
  freq: ${data.freq}
  prediction_length: ${data.prediction_length}
  run: ${data.freq}-${data.prediction_length}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = resolved.Walk(func(path document.Path, value any) error {
		if s, ok := value.(string); ok && document.ContainsReference(s) {
			t.Errorf("Residual reference at %q: %q", path.String(), s)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected walk error: %v", err)
	}
}

func TestResolve_NullTargetResolvesToNull(t *testing.T) {
	doc := mustParse(t, `
trainer:
  ckpt_path: Null
params:
  ckpt: ${trainer.ckpt_path}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, ok := resolved.Get("params.ckpt")
	if !ok {
		t.Fatal("Expected params.ckpt to be present")
	}
	if v != nil {
		t.Errorf("Expected null, got %v", v)
	}
}

func TestResolve_MappingTarget(t *testing.T) {
	doc := mustParse(t, `
defaults:
  rnn:
    num_layers: 2
    cell_type: LSTM
params: ${defaults.rnn}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("params.cell_type")
	if v != "LSTM" {
		t.Errorf("Expected LSTM, got %v", v)
	}

	// The copied-in mapping must not alias the target.
	m, _ := resolved.Get("params")
	m.(map[string]any)["cell_type"] = "GRU"
	v, _ = resolved.Get("params.cell_type")
	if v != "LSTM" {
		t.Errorf("Resolved tree aliased through reference: %v", v)
	}
}

func TestResolve_MappingIntoStringFails(t *testing.T) {
	doc := mustParse(t, `
defaults:
  rnn:
    num_layers: 2
label: model-${defaults.rnn}
`)

	_, err := Resolve(doc)
	if !errors.Is(err, ErrNonScalarInterpolation) {
		t.Fatalf("Expected ErrNonScalarInterpolation, got %v", err)
	}
}

func TestResolve_ReferencesInsideSequences(t *testing.T) {
	doc := mustParse(t, `
data:
  daily: 24
params:
  lags_seq:
    - 1
    - ${data.daily}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("params.lags_seq")
	if !reflect.DeepEqual(v, []any{1, 24}) {
		t.Errorf("Expected [1 24], got %v", v)
	}
}

func TestResolve_MalformedReference(t *testing.T) {
	doc := mustParse(t, `x: "${data.freq"`)

	_, err := Resolve(doc)
	if !errors.Is(err, ErrMalformedReference) {
		t.Fatalf("Expected ErrMalformedReference, got %v", err)
	}

	doc = mustParse(t, `y: "${}"`)
	_, err = Resolve(doc)
	if !errors.Is(err, ErrMalformedReference) {
		t.Fatalf("Expected ErrMalformedReference for empty path, got %v", err)
	}
}

func TestResolve_DepthBound(t *testing.T) {
	var b strings.Builder
	b.WriteString("a0: 1\n")
	for i := 1; i <= 8; i++ {
		b.WriteString("a")
		b.WriteString(string(rune('0' + i)))
		b.WriteString(": ${a")
		b.WriteString(string(rune('0' + i - 1)))
		b.WriteString("}\n")
	}
	doc := mustParse(t, b.String())

	if _, err := NewResolver(WithMaxDepth(4)).Resolve(doc); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Fatalf("Expected ErrMaxDepthExceeded, got %v", err)
	}

	if _, err := NewResolver().Resolve(doc); err != nil {
		t.Fatalf("Unexpected error at default depth: %v", err)
	}
}

func TestResolve_InputUnchanged(t *testing.T) {
	doc := mustParse(t, `
data:
  freq: H
params:
  freq: ${data.freq}
`)

	_, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := doc.Get("params.freq")
	if v != "${data.freq}" {
		t.Errorf("Input document mutated: %v", v)
	}
}

func TestResolve_SpliceRendersScalars(t *testing.T) {
	doc := mustParse(t, `
lr: 0.001
scaling: true
empty: Null
label: lr=${lr} scaling=${scaling} ckpt=${empty}
`)

	resolved, err := Resolve(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, _ := resolved.Get("label")
	expected := "lr=0.001 scaling=true ckpt=null"
	if v != expected {
		t.Errorf("Expected %q, got %q", expected, v)
	}
}
