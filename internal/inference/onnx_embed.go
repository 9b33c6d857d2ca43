package inference

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"
)

// hiddenRunner runs an encoder graph and returns the flattened
// [rows, cols, hidden] last hidden state.
type hiddenRunner interface {
	run(b batch) (data []float32, hidden int, err error)
	close() error
}

// OnnxEmbedder is a sentence-transformers model exported to ONNX, pooled by
// the attention-masked mean of the last hidden state.
type OnnxEmbedder struct {
	enc    Encoder
	runner hiddenRunner
}

// EmbedConfig locates the embedding model files.
type EmbedConfig struct {
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
}

// NewOnnxEmbedder loads the tokenizer and creates the session. InitRuntime
// must have been called.
func NewOnnxEmbedder(cfg EmbedConfig) (*OnnxEmbedder, error) {
	enc, err := LoadEncoder(cfg.TokenizerPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"last_hidden_state"}, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: open embedding model %s", cfg.ModelPath)
	}
	return &OnnxEmbedder{enc: enc, runner: &ortHiddenRunner{session: session}}, nil
}

// Embed implements Embedder.
func (o *OnnxEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	encs := make([]Encoding, len(texts))
	for i, t := range texts {
		e, err := o.enc.Encode(t)
		if err != nil {
			return nil, err
		}
		encs[i] = e
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newBatch(encs)
	data, hidden, err := o.runner.run(b)
	if err != nil {
		return nil, err
	}
	if hidden <= 0 || len(data) != b.rows*b.cols*hidden {
		return nil, eris.Errorf("inference: embedding output size %d, hidden %d", len(data), hidden)
	}
	return meanPool(b, data, hidden), nil
}

// Close releases the session.
func (o *OnnxEmbedder) Close() error {
	return o.runner.close()
}

func meanPool(b batch, data []float32, hidden int) [][]float32 {
	out := make([][]float32, b.rows)
	for r := 0; r < b.rows; r++ {
		vec := make([]float32, hidden)
		var n float32
		for c := 0; c < b.cols; c++ {
			if b.mask[r*b.cols+c] == 0 {
				continue
			}
			off := (r*b.cols + c) * hidden
			for h := 0; h < hidden; h++ {
				vec[h] += data[off+h]
			}
			n++
		}
		if n > 0 {
			for h := range vec {
				vec[h] /= n
			}
		}
		out[r] = vec
	}
	return out
}

type ortHiddenRunner struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

func (r *ortHiddenRunner) run(b batch) ([]float32, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := int64Tensor(b, b.ids)
	if err != nil {
		return nil, 0, err
	}
	mask, err := int64Tensor(b, b.mask)
	if err != nil {
		destroyAll(ids)
		return nil, 0, err
	}
	defer destroyAll(ids, mask)

	// A nil output is allocated by onnxruntime.
	outputs := []ort.Value{nil}
	if err := r.session.Run([]ort.Value{ids, mask}, outputs); err != nil {
		return nil, 0, eris.Wrap(err, "inference: run embedding model")
	}
	defer destroyAll(outputs...)

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, 0, eris.New("inference: embedding output is not a float32 tensor")
	}
	shape := t.GetShape()
	if len(shape) != 3 {
		return nil, 0, eris.Errorf("inference: embedding output rank %d, want 3", len(shape))
	}
	return append([]float32(nil), t.GetData()...), int(shape[2]), nil
}

func (r *ortHiddenRunner) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return eris.Wrap(r.session.Destroy(), "inference: destroy embedding session")
}
