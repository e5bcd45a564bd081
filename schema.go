package banklens

// ResponseSchema is the JSON schema sent to the model as an output format
// constraint. It mirrors the Statement shape: an account holder plus a list
// of transactions.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"account_holder", "transactions"},
		"properties": map[string]any{
			"account_holder": map[string]any{
				"type":     "object",
				"required": []any{"name", "account_number"},
				"properties": map[string]any{
					"name":           map[string]any{"type": "string"},
					"account_number": map[string]any{"type": "string"},
				},
			},
			"transactions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"date", "amount", "currency", "type", "description", "balance"},
					"properties": map[string]any{
						"date":        map[string]any{"type": "string"},
						"amount":      map[string]any{"type": "number"},
						"currency":    map[string]any{"type": "string"},
						"type":        map[string]any{"type": "string", "enum": []any{"CREDIT", "DEBIT"}},
						"description": map[string]any{"type": "string"},
						"balance":     map[string]any{"type": "number"},
					},
				},
			},
		},
	}
}
