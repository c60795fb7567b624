package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Static errors for story decomposition.
var (
	// ErrInvalidSceneCount is returned when the requested count is outside 4-8.
	ErrInvalidSceneCount = errors.New("story: scene count must be between 4 and 8")
)

// TextModel is the single-shot text completion port used for decomposition.
type TextModel interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Decomposer breaks a story prompt into an ordered storyboard of scenes.
type Decomposer struct {
	model  TextModel
	logger *slog.Logger
}

// NewDecomposer creates a Decomposer backed by the given text model.
func NewDecomposer(model TextModel, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{model: model, logger: logger}
}

// scenesDocument is the structured shape requested from the model.
type scenesDocument struct {
	Scenes []sceneEntry `json:"scenes"`
}

type sceneEntry struct {
	SceneNumber  int    `json:"scene_number"`
	Prompt       string `json:"prompt"`
	Duration     int    `json:"duration"`
	CameraStyle  string `json:"camera_style"`
	StyleControl string `json:"style_control"`
}

// Decompose breaks the story into exactly req.SceneCount scenes. The model
// is invoked once; its output is parsed permissively, padded or truncated
// to the exact count. If the model call fails or nothing parseable comes
// back, a deterministic template-based storyboard is returned instead, so
// the output count guarantee holds even when the model is unavailable.
func (d *Decomposer) Decompose(ctx context.Context, req Request) ([]Scene, error) {
	if req.SceneCount < 4 || req.SceneCount > 8 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSceneCount, req.SceneCount)
	}
	if req.Duration == 0 {
		req.Duration = 8
	}

	prompt := d.buildInstructionPrompt(req)

	text, err := d.model.GenerateContent(ctx, prompt)
	if err != nil {
		d.logger.Warn("story decomposition model call failed, using fallback scenes",
			slog.String("error", err.Error()),
		)
		return fallbackScenes(req), nil
	}

	doc := extractScenes(text)
	if len(doc.Scenes) == 0 {
		d.logger.Warn("story decomposition output unparseable, using fallback scenes",
			slog.Int("response_len", len(text)),
		)
		return fallbackScenes(req), nil
	}

	scenes := make([]Scene, 0, req.SceneCount)
	for idx, entry := range doc.Scenes {
		if idx == req.SceneCount {
			break
		}
		scenes = append(scenes, Scene{
			SceneNumber:  idx + 1,
			Prompt:       entry.Prompt,
			Duration:     req.Duration,
			CameraStyle:  firstNonEmpty(entry.CameraStyle, req.CameraStyle),
			StyleControl: firstNonEmpty(entry.StyleControl, req.StyleControl),
		})
	}

	// Pad with continuation placeholders if the model under-delivered.
	for len(scenes) < req.SceneCount {
		num := len(scenes) + 1
		scenes = append(scenes, Scene{
			SceneNumber:  num,
			Prompt:       fmt.Sprintf("Continuation of the story, scene %d of %d", num, req.SceneCount),
			Duration:     req.Duration,
			CameraStyle:  req.CameraStyle,
			StyleControl: req.StyleControl,
		})
	}

	return scenes, nil
}

// buildInstructionPrompt constructs the storyboard instruction sent to the
// text model, fixing the scene count and encoding camera/style defaults.
func (d *Decomposer) buildInstructionPrompt(req Request) string {
	framingGuide := "cinematic widescreen"
	if req.AspectRatio == "9:16" {
		framingGuide = "vertical mobile-friendly"
	}

	var cameraStyle string
	switch {
	case req.CameraStyle != "" && req.StyleControl != "":
		cameraStyle = fmt.Sprintf(`CAMERA & STYLE (USER-SPECIFIED DEFAULTS):
- Apply camera movement: %q to ALL scenes
- Apply visual style: %q to ALL scenes
- These are fixed defaults - use them for every scene`, req.CameraStyle, req.StyleControl)
	case req.CameraStyle != "":
		cameraStyle = fmt.Sprintf(`CAMERA & STYLE (MIXED DEFAULTS):
- Apply camera movement: %q to ALL scenes
- Visual style: Intelligently choose an appropriate visual style for each scene based on the story mood, setting, and narrative (e.g., "cinematic" for dramatic moments, "documentary" for realistic scenes, "vintage" for nostalgic content)`, req.CameraStyle)
	case req.StyleControl != "":
		cameraStyle = fmt.Sprintf(`CAMERA & STYLE (MIXED DEFAULTS):
- Camera movement: Intelligently choose an appropriate camera movement for each scene based on the action and pacing (e.g., "static" for intimate moments, "pan" for reveals, "zoom in" for focus, "aerial view" for establishing shots)
- Apply visual style: %q to ALL scenes`, req.StyleControl)
	default:
		cameraStyle = `CAMERA & STYLE (AI SMART DEFAULTS):
- Intelligently choose an appropriate camera movement for each scene based on the action, pacing, and narrative flow ("static" for dialogue, "pan left/right" for reveals, "zoom in" for emotional focus, "aerial view" for establishing shots, "tracking shot" for following action, "handheld" for urgency)
- Intelligently choose an appropriate visual style for each scene based on the story mood, setting, and tone ("cinematic", "documentary", "vintage", "film noir", "vibrant saturated", "moody dark")
- Vary camera and style choices across scenes to create visual interest and match the narrative arc`
	}

	totalDuration := req.SceneCount * req.Duration

	return fmt.Sprintf(`You are an expert video storyboard creator for AI video generation.

Your task: Break the user's story into EXACTLY %d sequential scenes for %d-second video generation.
Each scene will be %d seconds long and generated by an AI video model.

CRITICAL REQUIREMENTS:
1. Generate EXACTLY %d scenes - no more, no less
2. Each scene must have a detailed, visual prompt (100-500 characters)
3. Maintain character consistency - use same character descriptions across scenes
4. Include specific details: camera angles, lighting, actions, emotions
5. Progressive narrative - each scene should advance the story
6. Format: %s shots
7. Each prompt should be self-contained but reference previous context for continuity

OUTPUT FORMAT (JSON):
{
  "scenes": [
    {
      "scene_number": 1,
      "prompt": "Detailed visual description of scene 1...",
      "duration": %d,
      "camera_style": "appropriate camera movement",
      "style_control": "appropriate visual style"
    }
  ]
}

%s

PROMPT WRITING GUIDELINES:
- Start with camera movement (e.g., "Slow pan across...", "Close-up of...")
- Describe the subject with consistent details (clothing, appearance, age)
- Include setting details (time of day, location, weather, lighting)
- Specify action or emotion
- Add cinematic details (depth of field, color grading, atmosphere)

Now generate %d scenes for this story:

STORY: %s`,
		req.SceneCount, totalDuration, req.Duration,
		req.SceneCount,
		framingGuide,
		req.Duration,
		cameraStyle,
		req.SceneCount, req.Story,
	)
}

var (
	fencedJSONPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	looseScenesPattern = regexp.MustCompile(`(?s)\{.*"scenes".*\}`)
)

// extractScenes parses the model output permissively: direct JSON first,
// then a fenced code block, then any embedded object containing a "scenes"
// key. An empty document means total parse failure.
func extractScenes(text string) scenesDocument {
	var doc scenesDocument

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err == nil && len(doc.Scenes) > 0 {
		return doc
	}

	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		doc = scenesDocument{}
		if err := json.Unmarshal([]byte(m[1]), &doc); err == nil && len(doc.Scenes) > 0 {
			return doc
		}
	}

	if m := looseScenesPattern.FindString(text); m != "" {
		doc = scenesDocument{}
		if err := json.Unmarshal([]byte(m), &doc); err == nil && len(doc.Scenes) > 0 {
			return doc
		}
	}

	return scenesDocument{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
