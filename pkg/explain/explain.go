// Package explain attaches a natural-language explanation to a
// detection via a Bedrock-backed text model, generalized from the
// teacher's EC2-only AnalyzeInstance to all eleven resource kinds. It
// is never on the critical path: ingest calls it best-effort and
// swallows failures, matching the teacher's own "continue the report
// with an ERROR: ... string rather than fail the batch" pattern.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/cloudtrim/engine/pkg/model"
)

// Explainer turns a Detection into a short prose explanation.
type Explainer struct {
	client       *bedrockruntime.Client
	invocationID string
}

// New builds an Explainer bound to one Bedrock model or inference
// profile ARN.
func New(client *bedrockruntime.Client, invocationID string) *Explainer {
	return &Explainer{client: client, invocationID: invocationID}
}

// Explain returns a short natural-language explanation of why d was
// flagged. On any failure it returns an "ERROR: ..." string and a nil
// error — callers that want best-effort behavior can store the string
// as-is without special-casing failure, exactly as the teacher's report
// builder does when Bedrock analysis fails mid-batch.
func (e *Explainer) Explain(ctx context.Context, d model.Detection) (string, error) {
	prompt := buildPrompt(d)

	body, err := e.requestBody(prompt)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err), nil
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.invocationID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		log.Printf("explain: bedrock invoke failed for %s: %v", d.DetectionID, err)
		return fmt.Sprintf("ERROR: %v", err), nil
	}

	return extractText(e.invocationID, resp.Body), nil
}

func buildPrompt(d model.Detection) string {
	return fmt.Sprintf(`This is a cloud cost optimisation tool. Keep clean formatting and don't use "*" or "#".

A %s resource %q in account %s/%s was flagged by the %q rule with %d%% confidence.
Estimated monthly cost: $%.2f. Estimated potential savings: $%.2f.

In two or three sentences, explain in plain language why this is likely waste and
what taking the recommended action would change.`,
		d.ResourceType, d.ResourceName, d.AccountID, d.Region, d.ScenarioID, d.Confidence,
		d.MonthlyCost, d.PotentialSavings)
}

// requestBody dispatches to the Claude or Titan request schema based on
// the invocation ID, the same sniffing the teacher's analyse.go does.
func (e *Explainer) requestBody(prompt string) ([]byte, error) {
	lower := strings.ToLower(e.invocationID)
	switch {
	case strings.Contains(lower, "anthropic") || strings.Contains(lower, "claude"):
		payload := map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        300,
			"temperature":       0.0,
			"messages": []map[string]any{
				{"role": "user", "content": []map[string]string{{"type": "text", "text": prompt}}},
			},
		}
		return json.Marshal(payload)
	case strings.Contains(lower, "text-lite-v1"):
		payload := map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": 300,
				"temperature":   0.0,
				"topP":          1.0,
			},
		}
		return json.Marshal(payload)
	default:
		payload := map[string]any{"prompt": prompt, "maxTokens": 300, "temperature": 0.0}
		return json.Marshal(payload)
	}
}

// extractText parses the response schema matching requestBody's
// dispatch. Unknown/malformed shapes fall back to the raw body text.
func extractText(invocationID string, raw []byte) string {
	lower := strings.ToLower(invocationID)
	if strings.Contains(lower, "anthropic") || strings.Contains(lower, "claude") {
		var parsed struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Content) > 0 {
			return strings.TrimSpace(parsed.Content[0].Text)
		}
		return string(raw)
	}
	var parsed struct {
		Results []struct {
			OutputText string `json:"outputText"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Results) > 0 {
		return strings.TrimSpace(parsed.Results[0].OutputText)
	}
	return string(raw)
}
