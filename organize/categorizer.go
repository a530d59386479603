package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/chat-organizer/organize/provider"
)

// FallbackCategory is the reserved label applied to every session of a chunk
// whose classification could not be determined. It is never offered to the
// model as a choice.
const FallbackCategory = "Uncategorized"

// DefaultCategories is the category list used when the caller supplies none.
var DefaultCategories = []string{
	"Programming & Development",
	"Writing & Content Creation",
	"Learning & Education",
	"Creative & Design",
	"Business & Strategy",
	"Personal Advice",
	"Technical Support",
	"Research & Analysis",
	"Data Science & ML",
	"Career & Professional",
}

const (
	defaultClassifierModel = "gpt-4o-mini"
	classifierCallTimeout  = 45 * time.Second
	interChunkPause        = 150 * time.Millisecond

	// Batch size bounds; submissions outside the range are clamped, not
	// rejected.
	MinBatchSize     = 5
	MaxBatchSize     = 100
	DefaultBatchSize = 25
)

// ClampBatchSize normalizes a requested batch size into [MinBatchSize,
// MaxBatchSize], with zero meaning DefaultBatchSize.
func ClampBatchSize(n int) int {
	if n == 0 {
		return DefaultBatchSize
	}
	if n < MinBatchSize {
		return MinBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// ChunkClassifier assigns one category label per digest, in input order,
// choosing from categories or coining a new label when none fits.
type ChunkClassifier interface {
	ClassifyChunk(ctx context.Context, digests []string, categories []string) ([]string, error)
}

// ProgressFunc reports cumulative progress: processed sessions out of total.
type ProgressFunc func(processed, total int)

// CategorizeOptions tunes a categorization run.
type CategorizeOptions struct {
	// Categories overrides DefaultCategories when non-empty.
	Categories []string

	// BatchSize is the number of sessions per classification request,
	// clamped via ClampBatchSize.
	BatchSize int

	// MaxConcurrency is accepted for API stability but currently advisory:
	// chunks are dispatched sequentially to stay inside the classification
	// service's rate limits.
	MaxConcurrency int
}

// Categorizer assigns one category to each session via chunked requests to a
// ChunkClassifier. A chunk whose classification fails for any reason falls
// back to FallbackCategory for every member; the response format offers no
// per-item fault isolation, so a partial assignment is never produced.
type Categorizer struct {
	classifier ChunkClassifier
	pause      time.Duration
}

// NewCategorizer builds an OpenAI-backed Categorizer. The key must carry the
// "sk-" prefix; a malformed key is a construction-time error so a job fails
// before any chunk is attempted. The key is handed straight to the client and
// not retained. An empty model selects the default.
func NewCategorizer(apiKey, model string) (*Categorizer, error) {
	if !strings.HasPrefix(apiKey, "sk-") {
		return nil, errors.New("valid OpenAI API key is required")
	}
	if model == "" {
		model = defaultClassifierModel
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(classifierCallTimeout),
	)
	return &Categorizer{
		classifier: &openAIChunkClassifier{client: &client, model: model},
		pause:      interChunkPause,
	}, nil
}

// NewCategorizerWithClassifier builds a Categorizer on a caller-supplied
// classifier with no inter-chunk pause.
func NewCategorizerWithClassifier(c ChunkClassifier) *Categorizer {
	return &Categorizer{classifier: c}
}

// Categorize classifies sessions in chunks and returns category -> sessions,
// each category's sessions ordered newest-first (Unknown last). The total
// session count across categories always equals len(sessions). progress, when
// non-nil, is invoked once up front and once per processed session.
func (c *Categorizer) Categorize(ctx context.Context, sessions []SessionRecord, opts CategorizeOptions, progress ProgressFunc) (map[string][]CategorizedSession, error) {
	if c.classifier == nil {
		return nil, errors.New("Categorize: classifier is nil")
	}

	batchSize := ClampBatchSize(opts.BatchSize)
	categories := opts.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	total := len(sessions)
	if progress != nil {
		progress(0, total)
	}

	out := make(map[string][]CategorizedSession)
	processed := 0

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		chunk := sessions[start:end]

		digests := make([]string, len(chunk))
		for i, s := range chunk {
			digests[i] = s.Digest()
		}

		labels, err := c.classifier.ClassifyChunk(ctx, digests, categories)
		if err != nil || len(labels) != len(chunk) {
			// Whole-chunk fallback: a malformed or failed response taints
			// every member, never a subset. Session content stays out of the
			// log line.
			slog.Warn("chunk classification failed, applying fallback",
				"chunk_start", start, "chunk_size", len(chunk), "err", err)
			labels = make([]string, len(chunk))
			for i := range labels {
				labels[i] = FallbackCategory
			}
		}

		for i, s := range chunk {
			cs := CategorizedSession{SessionSummary: s.Summary(), Category: labels[i]}
			out[cs.Category] = append(out[cs.Category], cs)
			processed++
			if progress != nil {
				progress(processed, total)
			}
		}

		if end < total && c.pause > 0 {
			time.Sleep(c.pause)
		}
	}

	for category := range out {
		sortByClockDesc(out[category], func(v CategorizedSession) string { return v.CreateTime })
	}
	return out, nil
}

// openAIChunkClassifier implements ChunkClassifier with a strict
// structured-output call per chunk.
type openAIChunkClassifier struct {
	client *openai.Client
	model  string
}

type classifyResponse struct {
	Categories []string `json:"categories"`
}

var classifySchema = provider.GenerateSchema[classifyResponse]()

const classifierInstructions = `You are a precise conversation categorizer. Output strict JSON only.

You will receive a category list and a numbered list of conversation digests (title plus opening messages).

Assign each conversation exactly ONE category.

RULES:
- The categories array MUST contain exactly one label per conversation, in input order.
- Choose labels from the provided category list.
- Never use the label "Uncategorized".
- If no listed category fits a conversation, coin a concise new category name at that position instead.

Return a single JSON object matching the schema. Do not include any additional text.`

func (c *openAIChunkClassifier) ClassifyChunk(ctx context.Context, digests []string, categories []string) ([]string, error) {
	if c.client == nil {
		return nil, errors.New("openAIChunkClassifier: client is nil")
	}
	if c.model == "" {
		return nil, errors.New("openAIChunkClassifier: model is empty")
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "ConversationCategories",
			Schema:      classifySchema,
			Strict:      openai.Bool(true),
			Description: openai.String("One category label per conversation, in input order"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(500),
		Instructions:    openai.String(classifierInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(buildClassifyPrompt(digests, categories), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := provider.CallWithRetry(ctx, c.client, params)
	if err != nil {
		return nil, err
	}

	var out classifyResponse
	if err := provider.DecodeModelJSON(resp.OutputText(), &out); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	if len(out.Categories) != len(digests) {
		return nil, fmt.Errorf("model returned %d categories for %d conversations", len(out.Categories), len(digests))
	}
	return out.Categories, nil
}

func buildClassifyPrompt(digests []string, categories []string) string {
	var b strings.Builder
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString("\n\n")
	for i, d := range digests {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "Conversation %d:\n%s\n", i+1, d)
	}
	return b.String()
}
