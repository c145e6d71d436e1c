package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/splitthat/internal/models"
)

// responseSchema is the JSON shape the model is asked to produce. It is
// embedded verbatim in the prompt.
const responseSchema = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "price", "assigned_to", "status", "confidence"],
        "properties": {
          "name": {"type": "string", "description": "Item name as printed on the receipt."},
          "price": {"type": "number", "minimum": 0, "description": "Total price of the line."},
          "quantity": {"type": "string", "description": "Quantity or weight, if printed."},
          "assigned_to": {"type": "array", "items": {"type": "string"}, "minItems": 1, "description": "Participants sharing this item."},
          "status": {"type": "string", "enum": ["shopped", "weight-adjusted", "cancelled"]},
          "confidence": {"type": "string", "enum": ["low", "medium", "high"], "description": "How sure you are about name, price and assignment."}
        }
      }
    },
    "tax": {"$ref": "#/definitions/assignee_amount"},
    "tip": {"$ref": "#/definitions/assignee_amount"},
    "subtotal": {"type": "number", "description": "Subtotal printed on the receipt, if any."},
    "total": {"type": "number", "description": "Total printed on the receipt, if any."},
    "currency": {"type": "string", "description": "ISO 4217 currency code, if identifiable."},
    "merchant": {"type": "string", "description": "Store or restaurant name, if visible."}
  },
  "definitions": {
    "assignee_amount": {
      "type": "object",
      "required": ["amount", "assigned_to"],
      "properties": {
        "amount": {"type": "number", "minimum": 0},
        "assigned_to": {"type": "array", "items": {"type": "string"}, "minItems": 1}
      }
    }
  }
}`

// Wire types use pointers so that a missing field can be told apart from a
// zero value.
type wireSplit struct {
	Items    *[]wireItem `json:"items"`
	Tax      *wireAmount `json:"tax"`
	Tip      *wireAmount `json:"tip"`
	Subtotal *float64    `json:"subtotal"`
	Total    *float64    `json:"total"`
	Currency string      `json:"currency"`
	Merchant string      `json:"merchant"`
}

type wireItem struct {
	Name       *string         `json:"name"`
	Price      *float64        `json:"price"`
	Quantity   json.RawMessage `json:"quantity"`
	AssignedTo *[]string       `json:"assigned_to"`
	Status     *string         `json:"status"`
	Confidence *string         `json:"confidence"`
}

type wireAmount struct {
	Amount     *float64  `json:"amount"`
	AssignedTo *[]string `json:"assigned_to"`
}

var fenceRE = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// extractJSON pulls the JSON object out of a model response, dropping any
// markdown code fence and surrounding prose.
func extractJSON(text string) (string, error) {
	body := strings.TrimSpace(text)
	if m := fenceRE.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return "", &ParsingError{Reason: "no JSON object found", Response: text}
	}
	candidate := body[start : end+1]
	if !json.Valid([]byte(candidate)) {
		var syntaxErr error
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			syntaxErr = err
		}
		return "", &ParsingError{Reason: "malformed JSON", Response: text, Err: syntaxErr}
	}
	return candidate, nil
}

// parseSplit decodes and validates a model response against the participant
// list. Participant names are matched case-insensitively and replaced by the
// spelling the caller supplied.
func parseSplit(text string, participants []string) (*models.Split, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var wire wireSplit
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, violation(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
		}
		return nil, violation("", "%v", err)
	}

	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[strings.ToLower(strings.TrimSpace(p))] = p
	}
	v := validator{names: names}

	if wire.Items == nil {
		return nil, violation("items", "required field missing")
	}

	split := &models.Split{
		Items:    make([]models.Item, 0, len(*wire.Items)),
		Subtotal: wire.Subtotal,
		Total:    wire.Total,
		Currency: strings.ToUpper(strings.TrimSpace(wire.Currency)),
		Merchant: strings.TrimSpace(wire.Merchant),
	}
	for i, wi := range *wire.Items {
		item, err := v.item(fmt.Sprintf("items[%d]", i), wi)
		if err != nil {
			return nil, err
		}
		split.Items = append(split.Items, item)
	}

	if split.Tax, err = v.amount("tax", wire.Tax); err != nil {
		return nil, err
	}
	if split.Tip, err = v.amount("tip", wire.Tip); err != nil {
		return nil, err
	}
	if split.Subtotal != nil && *split.Subtotal < 0 {
		return nil, violation("subtotal", "must not be negative")
	}
	if split.Total != nil && *split.Total < 0 {
		return nil, violation("total", "must not be negative")
	}
	return split, nil
}

type validator struct {
	names map[string]string
}

func (v validator) item(path string, wi wireItem) (models.Item, error) {
	if wi.Name == nil || strings.TrimSpace(*wi.Name) == "" {
		return models.Item{}, violation(path+".name", "required field missing")
	}
	if wi.Price == nil {
		return models.Item{}, violation(path+".price", "required field missing")
	}
	if *wi.Price < 0 {
		return models.Item{}, violation(path+".price", "must not be negative")
	}
	assigned, err := v.assignees(path+".assigned_to", wi.AssignedTo)
	if err != nil {
		return models.Item{}, err
	}

	status := models.StatusShopped
	if wi.Status != nil {
		status = models.ItemStatus(strings.ToLower(strings.TrimSpace(*wi.Status)))
		if !status.Valid() {
			return models.Item{}, violation(path+".status", "unknown status %q", *wi.Status)
		}
	}
	confidence := models.ConfidenceLow
	if wi.Confidence != nil {
		confidence = models.Confidence(strings.ToLower(strings.TrimSpace(*wi.Confidence)))
		if !confidence.Valid() {
			return models.Item{}, violation(path+".confidence", "unknown confidence %q", *wi.Confidence)
		}
	}
	quantity, err := freeForm(wi.Quantity)
	if err != nil {
		return models.Item{}, violation(path+".quantity", "%v", err)
	}

	return models.Item{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(*wi.Name),
		Price:      *wi.Price,
		Quantity:   quantity,
		AssignedTo: assigned,
		Status:     status,
		Confidence: confidence,
	}, nil
}

// amount validates tax or tip. A zero amount with nobody assigned is
// treated as absent.
func (v validator) amount(path string, wa *wireAmount) (*models.AssigneeAmount, error) {
	if wa == nil {
		return nil, nil
	}
	if wa.Amount == nil {
		return nil, violation(path+".amount", "required field missing")
	}
	if *wa.Amount < 0 {
		return nil, violation(path+".amount", "must not be negative")
	}
	if *wa.Amount == 0 && (wa.AssignedTo == nil || len(*wa.AssignedTo) == 0) {
		return nil, nil
	}
	assigned, err := v.assignees(path+".assigned_to", wa.AssignedTo)
	if err != nil {
		return nil, err
	}
	return &models.AssigneeAmount{Amount: *wa.Amount, AssignedTo: assigned}, nil
}

func (v validator) assignees(path string, list *[]string) ([]string, error) {
	if list == nil {
		return nil, violation(path, "required field missing")
	}
	if len(*list) == 0 {
		return nil, violation(path, "must name at least one participant")
	}
	out := make([]string, 0, len(*list))
	seen := make(map[string]bool, len(*list))
	for _, name := range *list {
		canonical, ok := v.names[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, violation(path, "unknown participant %q", name)
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out, nil
}

// freeForm turns a quantity given as a string or a number into text.
func freeForm(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", string(raw))
}
