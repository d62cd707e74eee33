package response

// SelectionResponse is the caller's current selection plus its price.
type SelectionResponse struct {
	Numbers    []string `json:"numbers"`
	TotalValue float64  `json:"total_value"`
}

// ReserveResponse lists the numbers a successful reservation locked in.
type ReserveResponse struct {
	Reserved []string `json:"reserved"`
}

// ConflictResponse lists the numbers that were already taken when an
// all-or-nothing batch failed.
type ConflictResponse struct {
	Message   string   `json:"error"`
	Conflicts []string `json:"conflicts"`
}
