package transcript

// Kind is the conversation kind of a record.
type Kind string

const (
	KindChat    Kind = "chat"
	KindCase    Kind = "case"
	KindUnknown Kind = "unknown"
)

// Record is one conversation extracted from a larger document.
type Record struct {
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"kind" yaml:"kind"`
	// Content is the raw span of the source document.
	Content string `json:"content" yaml:"content"`
	// Timestamp is "2006-01-02 15:04:05" formatted, or empty when the span
	// carries no parsable start time.
	Timestamp        string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ProcessedContent string `json:"processed_content" yaml:"processed_content"`
	Turns            int    `json:"turns" yaml:"turns"`
}
