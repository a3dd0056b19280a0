// internal/supervisor/types/types.go
package types

// SpecialistID identifies a registered specialist agent.
type SpecialistID string

const (
	SpecialistFinancial      SpecialistID = "financial_analyst"
	SpecialistKnowledgeGraph SpecialistID = "knowledge_graph"
	SpecialistGeneral        SpecialistID = "general"
)

// ConversationTurn is a single prior exchange in the conversation.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Intent is a prior classification of the user query, produced upstream.
type Intent struct {
	Domain               string   `json:"domain"` // "factual", "analytical", "greeting", ...
	SubCategory          string   `json:"subCategory,omitempty"`
	Confidence           float64  `json:"confidence"`
	Rationale            string   `json:"rationale,omitempty"`
	SuggestedEntityTypes []string `json:"suggestedEntityTypes,omitempty"`
}

// QueryContext is the immutable input to the pipeline, created once per
// incoming user message.
type QueryContext struct {
	Query               string             `json:"query"`
	DealID              string             `json:"dealId"`
	OrganizationID      string             `json:"organizationId"`
	ConversationHistory []ConversationTurn `json:"conversationHistory,omitempty"`
	Intent              *Intent            `json:"intent,omitempty"`
}

// RoutingResult is the routing engine's decision for one query.
type RoutingResult struct {
	Specialists     []SpecialistID `json:"specialists"` // never empty
	IsParallel      bool           `json:"isParallel"`
	Rationale       string         `json:"rationale"`
	MatchedKeywords []string       `json:"matchedKeywords"` // lowercase, deduplicated
}

// SourceReference is a citation attached to a specialist result.
type SourceReference struct {
	DocumentID     string  `json:"documentId,omitempty"`
	DocumentName   string  `json:"documentName,omitempty"`
	ChunkID        string  `json:"chunkId,omitempty"`
	RelevanceScore float64 `json:"relevanceScore,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
}

// IdentityKey returns the deduplication key for this reference: the document
// id when present, otherwise the (name, chunk) pair.
func (s SourceReference) IdentityKey() string {
	if s.DocumentID != "" {
		return s.DocumentID
	}
	return s.DocumentName + "\x00" + s.ChunkID
}

// SpecialistResult is the normalized output of one specialist invocation.
// Created atomically by the dispatch layer; immutable afterward.
type SpecialistResult struct {
	SpecialistID SpecialistID      `json:"specialistId"`
	Output       string            `json:"output"`
	Confidence   float64           `json:"confidence"`
	Sources      []SourceReference `json:"sources,omitempty"`
	TimingMs     int64             `json:"timingMs"`
	Error        string            `json:"error,omitempty"`
	Stub         bool              `json:"stub,omitempty"`
}

// IsGenuine reports whether this result carries real specialist content
// rather than a degraded placeholder.
func (r *SpecialistResult) IsGenuine() bool {
	return r != nil && !r.Stub && r.Error == ""
}

// SynthesizedResponse is the terminal pipeline artifact.
type SynthesizedResponse struct {
	Content        string            `json:"content"`
	Confidence     float64           `json:"confidence"`
	Sources        []SourceReference `json:"sources"`
	Specialists    []SpecialistID    `json:"specialists"`
	WasSynthesized bool              `json:"wasSynthesized"`
	TotalLatencyMs int64             `json:"totalLatencyMs"`
}

// SynthesisStats summarizes a response for logging; no behavioral effect.
type SynthesisStats struct {
	SpecialistCount int     `json:"specialistCount"`
	SourceCount     int     `json:"sourceCount"`
	ContentLength   int     `json:"contentLength"`
	Confidence      float64 `json:"confidence"`
	WasSynthesized  bool    `json:"wasSynthesized"`
	LatencyMs       int64   `json:"latencyMs"`
}
