package api

// TextDelta is one incremental fragment of generated text.
type TextDelta struct {
	Text string `json:"text"`
}

// StreamResult carries either a delta or the error that ended the stream.
type StreamResult struct {
	Delta *TextDelta
	Err   error
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type SandboxResponse struct {
	Result string `json:"result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ProviderInfo describes a registered provider for clients building a picker.
type ProviderInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Configured bool   `json:"configured"`
}

type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}
