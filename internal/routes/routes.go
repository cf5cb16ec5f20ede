// Package routes defines HTTP route constants for the application.
package routes

// API Routes
const (
	// SSE
	SSEPath = "/sse"

	// Drafts
	NewDraft         = "/new/draft"
	APIDraft         = "/api/drafts/{id}"
	APIDraftTitle    = "/api/drafts/{id}/title"
	APIDraftCommands = "/api/drafts/{id}/commands"
	APIDraftAssist   = "/api/drafts/{id}/assist/{action}"
	APIDraftPublish  = "/api/drafts/{id}/publish"
	APIDraftImages   = "/api/drafts/{id}/images"

	// Assist
	APIAssistActions = "/api/assist/actions"

	// Health
	Healthz = "/healthz"
)
