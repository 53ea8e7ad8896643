package api

// Model is one entry in the model listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the OpenAI-compatible model listing envelope.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
