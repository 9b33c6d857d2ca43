package inference

import (
	"github.com/rotisserie/eris"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Encoding is a tokenized input ready for a transformer.
type Encoding struct {
	IDs     []int64
	TypeIDs []int64
	Mask    []int64
	Tokens  []string
}

// Encoder tokenizes single texts and (question, context) pairs.
type Encoder interface {
	Encode(text string) (Encoding, error)
	EncodePair(question, text string) (Encoding, error)
}

// hfEncoder wraps a HuggingFace tokenizer.json.
type hfEncoder struct {
	tk     *tokenizer.Tokenizer
	maxLen int
}

// LoadEncoder loads a tokenizer.json. Encodings longer than maxLen are cut,
// keeping the final special token.
func LoadEncoder(path string, maxLen int) (Encoder, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inference: load tokenizer %s", path)
	}
	return &hfEncoder{tk: tk, maxLen: maxLen}, nil
}

func (h *hfEncoder) Encode(text string) (Encoding, error) {
	en, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return Encoding{}, eris.Wrap(err, "inference: encode")
	}
	return truncate(fromTokenizer(en), h.maxLen), nil
}

func (h *hfEncoder) EncodePair(question, text string) (Encoding, error) {
	en, err := h.tk.EncodePair(question, text, true)
	if err != nil {
		return Encoding{}, eris.Wrap(err, "inference: encode pair")
	}
	return truncate(fromTokenizer(en), h.maxLen), nil
}

func fromTokenizer(en *tokenizer.Encoding) Encoding {
	return Encoding{
		IDs:     toInt64(en.GetIds()),
		TypeIDs: toInt64(en.GetTypeIds()),
		Mask:    toInt64(en.GetAttentionMask()),
		Tokens:  en.GetTokens(),
	}
}

func toInt64(xs []int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

// truncate shortens e to maxLen positions, keeping the last position (the
// closing separator) at the end.
func truncate(e Encoding, maxLen int) Encoding {
	n := len(e.IDs)
	if maxLen <= 1 || n <= maxLen {
		return e
	}
	cut := func(xs []int64) []int64 {
		if len(xs) != n {
			return xs
		}
		out := append([]int64{}, xs[:maxLen-1]...)
		return append(out, xs[n-1])
	}
	tokens := e.Tokens
	if len(tokens) == n {
		tokens = append(append([]string{}, tokens[:maxLen-1]...), tokens[n-1])
	}
	return Encoding{IDs: cut(e.IDs), TypeIDs: cut(e.TypeIDs), Mask: cut(e.Mask), Tokens: tokens}
}

// batch is a right-padded rectangle of encodings in row-major order.
type batch struct {
	rows, cols int
	ids        []int64
	typeIDs    []int64
	mask       []int64
	lengths    []int
	tokens     [][]string
}

func newBatch(encs []Encoding) batch {
	b := batch{rows: len(encs)}
	for _, e := range encs {
		b.cols = max(b.cols, len(e.IDs))
	}
	size := b.rows * b.cols
	b.ids = make([]int64, size)
	b.typeIDs = make([]int64, size)
	b.mask = make([]int64, size)
	b.lengths = make([]int, b.rows)
	b.tokens = make([][]string, b.rows)
	for r, e := range encs {
		off := r * b.cols
		copy(b.ids[off:], e.IDs)
		copy(b.typeIDs[off:], e.TypeIDs)
		if len(e.Mask) == len(e.IDs) {
			copy(b.mask[off:], e.Mask)
		} else {
			for i := range e.IDs {
				b.mask[off+i] = 1
			}
		}
		b.lengths[r] = len(e.IDs)
		b.tokens[r] = e.Tokens
	}
	return b
}

// row returns the unpadded slice of a flattened [rows, cols] output.
func (b batch) row(data []float32, r int) []float32 {
	off := r * b.cols
	return data[off : off+b.lengths[r]]
}
