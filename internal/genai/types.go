// Package genai provides an HTTP client for the Gemini API, covering
// long-running Veo video generation and single-shot text generation.
package genai

// VideoRequest contains the parameters for starting a video generation job.
type VideoRequest struct {
	// Prompt is the text description driving the generation.
	Prompt string
	// NegativePrompt lists elements to exclude, if any.
	NegativePrompt string
	// ImageBytes is an optional seed image conditioning the generation.
	ImageBytes []byte
	// ImageMimeType is the mime type of ImageBytes (e.g. "image/jpeg").
	ImageMimeType string
	// Resolution is "720p" or "1080p".
	Resolution string
	// DurationSeconds is the clip length (4, 6 or 8).
	DurationSeconds int
	// AspectRatio is "16:9" or "9:16".
	AspectRatio string
}

// Operation is the state of a long-running video generation operation.
type Operation struct {
	// Name is the server-assigned operation name used for polling.
	Name string
	// Done reports whether the operation reached a terminal state.
	Done bool
	// VideoURI is the download URI of the generated video (set when Done
	// and the operation succeeded).
	VideoURI string
	// Error is the failure message (set when Done and the operation failed).
	Error string
}

// predictRequest is the request body for models/{model}:predictLongRunning.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	NegativePrompt  string `json:"negativePrompt,omitempty"`
	SampleCount     int    `json:"sampleCount,omitempty"`
}

// operationResponse is the response from both predictLongRunning and the
// operation polling endpoint.
type operationResponse struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationPayload  `json:"response,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type operationPayload struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples []generatedSample `json:"generatedSamples"`
}

type generatedSample struct {
	Video videoRef `json:"video"`
}

type videoRef struct {
	URI string `json:"uri"`
}

// generateContentRequest is the request body for models/{model}:generateContent.
type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// generateContentResponse is the response from generateContent.
type generateContentResponse struct {
	Candidates []candidate     `json:"candidates"`
	Error      *operationError `json:"error,omitempty"`
}

type candidate struct {
	Content content `json:"content"`
}
