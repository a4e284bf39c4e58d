package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"ledgerly/internal/core"
)

const advicePrompt = `You are a smart Indian financial advisor. Analyze these transactions (amounts in INR):
%s

Provide 3 concise bullet points with insights.
Focus on:
1. Spending patterns (for example frequent small purchases or a dominant category).
2. Savings opportunities for the Indian middle class.
3. An encouraging "Pro-tip" for financial health.

Use a friendly tone. Format with clear bullet points.`

const categorizePrompt = `Categorize this Indian transaction: %q.
Options: %s.
Respond with JUST the category name.`

func buildAdvicePrompt(txs []core.Transaction) (string, error) {
	b, err := json.Marshal(txs)
	if err != nil {
		return "", fmt.Errorf("encode transactions for prompt: %w", err)
	}
	return fmt.Sprintf(advicePrompt, b), nil
}

func buildCategorizePrompt(description string, schema core.Schema) string {
	return fmt.Sprintf(categorizePrompt, strings.TrimSpace(description), strings.Join(schema.CategoryNames(), ", "))
}
