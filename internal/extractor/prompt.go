package extractor

import (
	"fmt"
	"strings"
)

// DefaultInstruction applies when the caller gives no splitting instruction.
const DefaultInstruction = "Split everything equally among all participants."

const promptTemplate = `You are reading a shopping receipt or restaurant bill and deciding how to split it.

Participants: %s

Splitting instruction from the user:
%s

Rules:
- List every purchased line item with its name and the total price of that line.
- Only use participant names from the list above in "assigned_to". Each item needs at least one.
- Mark items that were voided or refunded as "cancelled", and items whose price was changed by weight as "weight-adjusted"; everything else is "shopped".
- Set "confidence" to how sure you are about the item's name, price and assignment.
- Report tax and tip separately when the receipt shows them, with the participants who share them.
- Report the printed subtotal, total, currency and merchant when visible.

Respond with a single JSON object and nothing else. It must match this JSON schema:
%s
`

func buildPrompt(participants []string, instruction string) string {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	return fmt.Sprintf(promptTemplate, strings.Join(participants, ", "), strings.TrimSpace(instruction), responseSchema)
}
