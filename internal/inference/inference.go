// Package inference holds the model-backed capabilities of the pipeline:
// extractive span prediction and sentence embedding.
package inference

import (
	"context"
)

// SpanPrediction is the raw model output for one (question, text) pair.
// Start and End are independent argmax positions into Tokens; End may be
// smaller than Start.
type SpanPrediction struct {
	Start      int
	End        int
	StartLogit float32
	EndLogit   float32
	Tokens     []string
}

// SpanPredictor runs an extractive question-answering model. The result is
// aligned with texts.
type SpanPredictor interface {
	Predict(ctx context.Context, question string, texts []string) ([]SpanPrediction, error)
}

// Embedder maps texts to fixed-size vectors, one per input, order preserved.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
