package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/match"
	"github.com/sells-group/donation-cli/internal/model"
)

const verifySystemPrompt = `You review candidate matches between a donation record and a customer directory entry.

Decide whether the directory entry refers to the same person or organization as the donation record. Name order, punctuation, nicknames, and business suffixes do not matter. Different people who happen to share a surname are not a match.

Also compare the mailing addresses when both sides have one. Mark them materially different only when they point to a different physical location, not for formatting or abbreviation differences.

Respond with a single JSON object and nothing else:
{"valid": <bool>, "address_materially_different": <bool>}`

// DefaultModel is the model used for match verification unless overridden.
const DefaultModel = "claude-haiku-4-5-20251001"

// Judge verifies candidate matches using a language model. Implements the
// matcher's Judge interface.
type Judge struct {
	client Client
	model  string
}

// Option configures a Judge.
type Option func(*Judge)

// WithModel overrides the verification model.
func WithModel(model string) Option {
	return func(j *Judge) {
		if model != "" {
			j.model = model
		}
	}
}

// New creates a Judge backed by the given client.
func New(client Client, opts ...Option) *Judge {
	j := &Judge{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var _ match.Judge = (*Judge)(nil)

// Verify asks the model whether the candidate entry refers to the same payer
// as the record.
func (j *Judge) Verify(ctx context.Context, record model.RawRecord, candidate model.DirectoryEntry) (match.Verdict, error) {
	resp, err := j.client.CreateMessage(ctx, MessageRequest{
		Model:     j.model,
		MaxTokens: 256,
		System:    verifySystemPrompt,
		Messages: []Message{
			{Role: "user", Content: buildVerifyPrompt(record, candidate)},
		},
	})
	if err != nil {
		return match.Verdict{}, err
	}

	resp.Usage.LogCost(j.model)

	text := firstText(resp)
	if text == "" {
		return match.Verdict{}, eris.New("judge: empty response")
	}

	var verdict match.Verdict
	if err := json.Unmarshal([]byte(stripFences(text)), &verdict); err != nil {
		return match.Verdict{}, eris.Wrapf(err, "judge: parse verdict %q", text)
	}
	return verdict, nil
}

func buildVerifyPrompt(record model.RawRecord, candidate model.DirectoryEntry) string {
	var b strings.Builder
	b.WriteString("Donation record:\n")
	writeField(&b, "name", record.Get(model.FieldDonorName))
	writeField(&b, "customer hint", record.Get(model.FieldDirectoryHint))
	writeField(&b, "address", record.Get(model.FieldAddressLine1))
	writeField(&b, "city", record.Get(model.FieldCity))
	writeField(&b, "state", record.Get(model.FieldState))
	writeField(&b, "zip", record.Get(model.FieldZip))
	writeField(&b, "email", record.Get(model.FieldEmail))
	writeField(&b, "phone", record.Get(model.FieldPhone))
	writeField(&b, "memo", record.Get(model.FieldMemo))

	b.WriteString("\nDirectory entry:\n")
	writeField(&b, "name", candidate.DisplayName)
	writeField(&b, "company", candidate.CompanyName)
	writeField(&b, "address", candidate.Address.Line1)
	writeField(&b, "city", candidate.Address.City)
	writeField(&b, "state", candidate.Address.State)
	writeField(&b, "zip", candidate.Address.Zip)
	writeField(&b, "emails", strings.Join(candidate.Emails, ", "))
	writeField(&b, "phones", strings.Join(candidate.Phones, ", "))
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, value)
}

func firstText(resp *MessageResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return strings.TrimSpace(block.Text)
		}
	}
	return ""
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
