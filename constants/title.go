package constants

const (
	// MaxTitleLength is the longest title Paperless accepts, in characters.
	MaxTitleLength = 128

	ServiceName  = "Paperless Webhook Service"
	DefaultModel = "gpt-4o-mini"
)

// Job sources.
const (
	SourceWebhook = "webhook"
	SourceManual  = "manual"
)
