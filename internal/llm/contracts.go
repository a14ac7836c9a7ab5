package llm

import "context"

// TitleGenerator is the interface the pipeline depends on.
// found is false when the model produced no usable title; failures are
// logged by the implementation and never returned.
type TitleGenerator interface {
	RequestTitle(ctx context.Context, text, documentID string) (title string, found bool)
}
