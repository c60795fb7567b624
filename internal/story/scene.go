// Package story decomposes a free-text story prompt into an ordered list
// of per-scene video generation prompts using a text-generation model,
// with a deterministic fallback when the model output cannot be parsed.
package story

// Scene is one storyboard entry driving a single video segment.
// Scenes are immutable once produced; edits create a new list.
type Scene struct {
	// SceneNumber is the 1-based position in the storyboard.
	SceneNumber int `json:"scene_number"`
	// Prompt is the visual description passed to the video model.
	Prompt string `json:"prompt"`
	// NegativePrompt lists elements to exclude, if any.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// Duration is the segment length in seconds (4, 6 or 8).
	Duration int `json:"duration"`
	// CameraStyle is the camera movement hint, if any.
	CameraStyle string `json:"camera_style,omitempty"`
	// StyleControl is the visual style hint, if any.
	StyleControl string `json:"style_control,omitempty"`
}

// Request contains the decomposition parameters.
type Request struct {
	// Story is the long-form story text (20-8192 characters, caller-validated).
	Story string
	// AspectRatio guides shot framing ("16:9" or "9:16").
	AspectRatio string
	// SceneCount is the exact number of scenes to produce (4-8).
	SceneCount int
	// Duration is the per-scene duration in seconds (4, 6 or 8).
	Duration int
	// CameraStyle, when set, is applied to every scene; otherwise the
	// model chooses per scene.
	CameraStyle string
	// StyleControl, when set, is applied to every scene; otherwise the
	// model chooses per scene.
	StyleControl string
}
