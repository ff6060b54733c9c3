package local

import (
	"fmt"
	"math"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime initializes the ONNX Runtime environment once per process.
func initRuntime() error {
	ortOnce.Do(func() {
		ortErr = onnxruntime.InitializeEnvironment()
	})
	return ortErr
}

// session wraps one ONNX inference session. ONNX Runtime sessions are
// not safe for concurrent Run calls through this wrapper's pre-allocated
// tensors, so a mutex serializes inference.
type session struct {
	session    *onnxruntime.DynamicAdvancedSession
	outputName string
	mu         sync.Mutex
	closed     bool
}

func newSession(modelPath, outputName string) (*session, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("local: failed to initialize ONNX runtime: %w", err)
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("local: failed to create session options: %w", err)
	}
	defer options.Destroy()

	s, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"}, []string{outputName}, options)
	if err != nil {
		return nil, fmt.Errorf("local: failed to load model %s: %w", modelPath, err)
	}

	return &session{session: s, outputName: outputName}, nil
}

// run executes the model on one encoded sequence and returns the raw
// output values together with the output tensor shape.
func (s *session) run(ids, mask []int64, outputShape onnxruntime.Shape) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("local: session is closed")
	}

	seqLen := int64(len(ids))
	inputShape := onnxruntime.NewShape(1, seqLen)

	idsTensor, err := onnxruntime.NewTensor(inputShape, ids)
	if err != nil {
		return nil, fmt.Errorf("local: failed to create input tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := onnxruntime.NewTensor(inputShape, mask)
	if err != nil {
		return nil, fmt.Errorf("local: failed to create mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputData := make([]float32, outputShape.FlattenedSize())
	outputTensor, err := onnxruntime.NewTensor(outputShape, outputData)
	if err != nil {
		return nil, fmt.Errorf("local: failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	inputs := []onnxruntime.Value{idsTensor, maskTensor}
	outputs := []onnxruntime.Value{outputTensor}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("local: inference failed: %w", err)
	}

	result := make([]float32, len(outputData))
	copy(result, outputData)
	return result, nil
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.session.Destroy()
}

// meanPool averages token vectors over the attention mask and
// L2-normalizes the result.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	pooled := make([]float32, dims)
	var count float32
	for tok := range mask {
		if mask[tok] == 0 {
			continue
		}
		count++
		for d := 0; d < dims; d++ {
			pooled[d] += hidden[tok*dims+d]
		}
	}
	if count == 0 {
		return pooled
	}

	var norm float64
	for d := range pooled {
		pooled[d] /= count
		norm += float64(pooled[d]) * float64(pooled[d])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for d := range pooled {
			pooled[d] = float32(float64(pooled[d]) / norm)
		}
	}
	return pooled
}

// softmax converts logits to probabilities.
func softmax(logits []float32) []float64 {
	probs := make([]float64, len(logits))
	var max float64 = math.Inf(-1)
	for _, l := range logits {
		if float64(l) > max {
			max = float64(l)
		}
	}
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l) - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
