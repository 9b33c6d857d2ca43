package nlp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wikiqa/internal/cost"
	"github.com/sells-group/wikiqa/internal/metrics"
	"github.com/sells-group/wikiqa/pkg/anthropic"
)

const annotatePrompt = `You are a linguistic annotator equivalent to spaCy en_core_web_sm.
Given a sentence, return ONLY a JSON object with this shape and no prose:
{"entities":[{"text":str,"label":str,"start":int,"end":int}],
 "tokens":[{"text":str,"pos":str,"dep":str,"head":int}]}
Rules:
- entity labels use OntoNotes names (PERSON, NORP, FAC, ORG, GPE, LOC, PRODUCT, EVENT, WORK_OF_ART, LAW, LANGUAGE, DATE, TIME, PERCENT, MONEY, QUANTITY, ORDINAL, CARDINAL); start/end are character offsets.
- tokens cover the whole sentence including punctuation, in order.
- pos uses Universal POS tags (PROPN, NOUN, VERB, ADJ, NUM, DET, ADP, PUNCT, ...).
- dep uses ClearNLP labels as spaCy does (nsubj, dobj, compound, amod, nummod, nmod, prep, pobj, det, punct, ROOT, ...).
- head is the 0-based index of the governing token; the ROOT token's head is its own index.`

// ClaudeAnnotator asks an Anthropic model for a spaCy-style annotation.
type ClaudeAnnotator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	cost      *cost.Calculator
}

// ClaudeOption configures a ClaudeAnnotator.
type ClaudeOption func(*ClaudeAnnotator)

// WithCostCalculator prices each call's token usage into the LLM metrics.
func WithCostCalculator(c *cost.Calculator) ClaudeOption {
	return func(a *ClaudeAnnotator) { a.cost = c }
}

// NewClaudeAnnotator creates an annotator backed by the Messages API.
func NewClaudeAnnotator(client anthropic.Client, model string, maxTokens int64, opts ...ClaudeOption) *ClaudeAnnotator {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	a := &ClaudeAnnotator{client: client, model: model, maxTokens: maxTokens}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Annotate implements Annotator.
func (a *ClaudeAnnotator) Annotate(ctx context.Context, text string) (*Doc, error) {
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      annotatePrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "annotator: claude request")
	}
	resp.Usage.Log(a.model, "annotate")
	metrics.RecordLLMUsage(a.model, resp.Usage.InputTokens, resp.Usage.OutputTokens,
		a.cost.Claude(a.model, resp.Usage.InputTokens, resp.Usage.OutputTokens))

	doc, err := parseDocJSON(resp.Text())
	if err != nil {
		return nil, err
	}
	doc.Text = text
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseDocJSON extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose.
func parseDocJSON(reply string) (*Doc, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, eris.New("annotator: no JSON object in reply")
	}
	var doc Doc
	if err := json.Unmarshal([]byte(reply[start:end+1]), &doc); err != nil {
		return nil, eris.Wrap(err, "annotator: unmarshal reply")
	}
	return &doc, nil
}
