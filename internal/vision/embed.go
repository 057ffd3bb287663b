package vision

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/lostfound/internal/observability"
)

const (
	// InputSize is the square side the ResNet50 backbone expects.
	InputSize = 224
	// EmbeddingDim is the width of the pooled feature vector.
	EmbeddingDim = 2048

	inputName  = "input"
	outputName = "features"
)

// Embedder extracts global image features with a headless ResNet50 ONNX model.
type Embedder struct {
	mu           sync.Mutex // the session reuses its tensors
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewEmbedder loads the model. opts may be nil (ORT defaults).
func NewEmbedder(modelPath string, opts *ort.SessionOptions) (*Embedder, error) {
	inputShape := ort.NewShape(1, 3, InputSize, InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, EmbeddingDim)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Extract runs the model on CHW input [3, 224, 224] and returns an
// L2-normalized 2048-dimensional embedding.
func (e *Embedder) Extract(input []float32) ([]float32, error) {
	if len(input) != 3*InputSize*InputSize {
		return nil, fmt.Errorf("embedder input has %d values, want %d", len(input), 3*InputSize*InputSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), input)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	embedding := make([]float32, EmbeddingDim)
	copy(embedding, e.outputTensor.GetData())
	normalize(embedding)

	return embedding, nil
}

// EmbedImage decodes, preprocesses and embeds an encoded image.
func (e *Embedder) EmbedImage(data []byte) ([]float32, error) {
	start := time.Now()
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	input := Preprocess(img, InputSize)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	emb, err := e.Extract(input)
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	return emb, err
}

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}
