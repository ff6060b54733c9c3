package local

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/modelmux/modelmux/internal/manager"
	"github.com/modelmux/modelmux/pkg/types"
)

// Family tags what a model file computes.
type Family string

const (
	FamilyEmbedding Family = "embedding"
	FamilyNLI       Family = "nli"
)

// Default footprint estimates per family, in MB. Deliberately coarse;
// config entries may override per model.
var defaultFootprintMB = map[Family]int{
	FamilyEmbedding: 120,
	FamilyNLI:       600,
}

const defaultMaxSeqLen = 512

// NLI head label order for cross-encoder style MNLI exports.
const (
	nliContradiction = 0
	nliNeutral       = 1
	nliEntailment    = 2
)

// Spec describes one on-device model file.
type Spec struct {
	ID          string
	Path        string
	VocabPath   string
	Family      Family
	Dims        int
	FootprintMB int
}

// Store maps model identifiers to their file specs. It is built once
// from configuration and read-only afterwards.
type Store struct {
	specs map[string]Spec
}

// NewStore builds the spec table from configuration. Relative paths are
// resolved against modelDir.
func NewStore(modelDir string, configs []types.LocalModelConfig) (*Store, error) {
	specs := make(map[string]Spec, len(configs))
	for _, cfg := range configs {
		family := Family(cfg.Family)
		if family != FamilyEmbedding && family != FamilyNLI {
			return nil, fmt.Errorf("local: model %q: unknown family %q", cfg.ID, cfg.Family)
		}

		footprint := cfg.FootprintMB
		if footprint <= 0 {
			footprint = defaultFootprintMB[family]
		}

		spec := Spec{
			ID:          cfg.ID,
			Path:        resolvePath(modelDir, cfg.Path),
			VocabPath:   resolvePath(modelDir, cfg.VocabPath),
			Family:      family,
			Dims:        cfg.Dims,
			FootprintMB: footprint,
		}
		specs[cfg.ID] = spec
		for _, alias := range cfg.Aliases {
			specs[alias] = spec
		}
	}
	return &Store{specs: specs}, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// Spec returns the spec for a model identifier.
func (s *Store) Spec(id string) (Spec, bool) {
	spec, ok := s.specs[id]
	return spec, ok
}

// Footprint is the manager's EstimateFunc over this store.
func (s *Store) Footprint(id string) (int, bool) {
	spec, ok := s.specs[id]
	if !ok {
		return 0, false
	}
	return spec.FootprintMB, true
}

// Loader is the manager's LoadFunc over this store.
func (s *Store) Loader() manager.LoadFunc {
	return func(ctx context.Context, modelID string) (manager.Handle, error) {
		spec, ok := s.specs[modelID]
		if !ok {
			return nil, fmt.Errorf("local: unknown model %q", modelID)
		}
		return loadModel(ctx, spec)
	}
}

// Model is one loaded on-device model: tokenizer plus ONNX session.
// It satisfies manager.Handle; Close is idempotent.
type Model struct {
	spec      Spec
	tokenizer *Tokenizer
	sess      *session
	closeOnce sync.Once
	closeErr  error
}

func loadModel(ctx context.Context, spec Spec) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokenizer, err := NewTokenizer(spec.VocabPath, defaultMaxSeqLen)
	if err != nil {
		return nil, err
	}

	outputName := "last_hidden_state"
	if spec.Family == FamilyNLI {
		outputName = "logits"
	}
	sess, err := newSession(spec.Path, outputName)
	if err != nil {
		return nil, err
	}

	return &Model{spec: spec, tokenizer: tokenizer, sess: sess}, nil
}

// Close destroys the ONNX session.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.sess.close()
	})
	return m.closeErr
}

// Embed computes a mean-pooled, L2-normalized sentence embedding.
func (m *Model) Embed(text string) ([]float32, error) {
	if m.spec.Family != FamilyEmbedding {
		return nil, fmt.Errorf("local: model %q is not an embedding model", m.spec.ID)
	}

	ids, mask := m.tokenizer.Encode(text)
	outputShape := onnxruntime.NewShape(1, int64(len(ids)), int64(m.spec.Dims))
	hidden, err := m.sess.run(ids, mask, outputShape)
	if err != nil {
		return nil, err
	}
	return meanPool(hidden, mask, m.spec.Dims), nil
}

// NLI scores a premise/hypothesis pair, returning probabilities for
// entailment, contradiction and neutral.
func (m *Model) NLI(premise, hypothesis string) (entailment, contradiction, neutral float64, err error) {
	if m.spec.Family != FamilyNLI {
		return 0, 0, 0, fmt.Errorf("local: model %q is not an NLI model", m.spec.ID)
	}

	ids, mask := m.tokenizer.Encode(premise, hypothesis)
	logits, err := m.sess.run(ids, mask, onnxruntime.NewShape(1, 3))
	if err != nil {
		return 0, 0, 0, err
	}

	probs := softmax(logits)
	return probs[nliEntailment], probs[nliContradiction], probs[nliNeutral], nil
}
