package api

// ChatRequest is the protocol-neutral chat call accepted by the gateway.
type ChatRequest struct {
	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// the provider the caller prefers, looked up in the registry by id
	Provider string `json:"provider" binding:"required"`

	// the model to request, passed to the upstream verbatim
	Model string `json:"model" binding:"required"`
}

type ChatMessage struct {
	Role      Role   `json:"role" binding:"required,oneof=user assistant system"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Role string

const (
	User           Role = "user"
	Assistant      Role = "assistant"
	System         Role = "system"
	ModelAssistant Role = "model"
)
