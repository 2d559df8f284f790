package models

// ReasoningStep is one ordered entry of the analyzer's explanation.
type ReasoningStep struct {
	Step     string `json:"step"`
	Analysis string `json:"analysis"`
}

// ConceptSuggestion is one creative direction proposed by the analyzer.
type ConceptSuggestion struct {
	Concept   string `json:"concept"`
	Prompt    string `json:"prompt"`
	Rationale string `json:"rationale"`
}

// Analysis is the analyzer's full result for one product image.
type Analysis struct {
	ProductType string              `json:"productType,omitempty"`
	Steps       []ReasoningStep     `json:"steps"`
	Concepts    []ConceptSuggestion `json:"concepts"`
}

// Image is an inline image payload.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// LinkedConcept is a concept proposed for several products at once.
type LinkedConcept struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	SellingPoints []string `json:"sellingPoints"`
	ProductIDs    []string `json:"productIds"`
}

// AnalyzeRequest is the input to an image analyzer.
type AnalyzeRequest struct {
	Image      Image
	Language   string
	Credential string
	Model      string
}

// GenerateRequest is the input to an image generator. References are sent
// in order: product image first, then the prior generated image.
type GenerateRequest struct {
	Prompt      string
	References  []Image
	AspectRatio string
	// Platform and PresetName frame the prompt. Both are optional.
	Platform   string
	PresetName string
	Credential string
	Model      string
}
