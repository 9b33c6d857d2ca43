package inference

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"
)

// logitsRunner runs the QA graph over a batch and returns flattened
// [rows, cols] start and end logits.
type logitsRunner interface {
	run(b batch) (start, end []float32, err error)
	close() error
}

// OnnxQA is a SpanPredictor backed by an ONNX export of a
// *ForQuestionAnswering model. Calls are serialized.
type OnnxQA struct {
	enc    Encoder
	runner logitsRunner
}

// QAConfig locates the QA model files.
type QAConfig struct {
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// TokenTypeIDs feeds token_type_ids; BERT exports need it, DistilBERT
	// exports reject it.
	TokenTypeIDs bool
}

// NewOnnxQA loads the tokenizer and creates the session. InitRuntime must
// have been called.
func NewOnnxQA(cfg QAConfig) (*OnnxQA, error) {
	enc, err := LoadEncoder(cfg.TokenizerPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, err
	}

	inputs := []string{"input_ids", "attention_mask"}
	if cfg.TokenTypeIDs {
		inputs = append(inputs, "token_type_ids")
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs,
		[]string{"start_logits", "end_logits"}, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: open qa model %s", cfg.ModelPath)
	}

	return &OnnxQA{
		enc:    enc,
		runner: &ortLogitsRunner{session: session, tokenTypes: cfg.TokenTypeIDs},
	}, nil
}

// Predict implements SpanPredictor.
func (q *OnnxQA) Predict(ctx context.Context, question string, texts []string) ([]SpanPrediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	encs := make([]Encoding, len(texts))
	for i, t := range texts {
		e, err := q.enc.EncodePair(question, t)
		if err != nil {
			return nil, err
		}
		encs[i] = e
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newBatch(encs)
	start, end, err := q.runner.run(b)
	if err != nil {
		return nil, err
	}
	if len(start) != b.rows*b.cols || len(end) != b.rows*b.cols {
		return nil, eris.Errorf("inference: qa output size %d/%d, want %d", len(start), len(end), b.rows*b.cols)
	}

	preds := make([]SpanPrediction, b.rows)
	for r := range preds {
		s, sv := argmax(b.row(start, r))
		e, ev := argmax(b.row(end, r))
		preds[r] = SpanPrediction{Start: s, End: e, StartLogit: sv, EndLogit: ev, Tokens: b.tokens[r]}
	}
	return preds, nil
}

// Close releases the session.
func (q *OnnxQA) Close() error {
	return q.runner.close()
}

type ortLogitsRunner struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenTypes bool
}

func (r *ortLogitsRunner) run(b batch) ([]float32, []float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := int64Tensor(b, b.ids)
	if err != nil {
		return nil, nil, err
	}
	mask, err := int64Tensor(b, b.mask)
	if err != nil {
		destroyAll(ids)
		return nil, nil, err
	}
	inputs := []ort.Value{ids, mask}
	if r.tokenTypes {
		types, err := int64Tensor(b, b.typeIDs)
		if err != nil {
			destroyAll(ids, mask)
			return nil, nil, err
		}
		inputs = append(inputs, types)
	}
	defer destroyAll(inputs...)

	shape := ort.NewShape(int64(b.rows), int64(b.cols))
	startT, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return nil, nil, eris.Wrap(err, "inference: create output tensor")
	}
	endT, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		destroyAll(startT)
		return nil, nil, eris.Wrap(err, "inference: create output tensor")
	}
	defer destroyAll(startT, endT)

	if err := r.session.Run(inputs, []ort.Value{startT, endT}); err != nil {
		return nil, nil, eris.Wrap(err, "inference: run qa model")
	}

	start := append([]float32(nil), startT.GetData()...)
	end := append([]float32(nil), endT.GetData()...)
	return start, end, nil
}

func (r *ortLogitsRunner) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return eris.Wrap(r.session.Destroy(), "inference: destroy qa session")
}
