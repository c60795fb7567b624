package story

import "fmt"

// maxFallbackStoryLen caps the story excerpt embedded in fallback prompts.
const maxFallbackStoryLen = 500

// fallbackSelection maps a scene count to the indices chosen from the
// 8-slot template pool, preserving the narrative arc at every count.
var fallbackSelection = map[int][]int{
	4: {0, 3, 5, 7},
	5: {0, 2, 4, 5, 7},
	6: {0, 2, 3, 4, 5, 7},
	7: {0, 1, 2, 4, 5, 6, 7},
	8: {0, 1, 2, 3, 4, 5, 6, 7},
}

// fallbackTemplates builds the full 8-slot narrative template pool for a
// story excerpt: establishing, introduction, detail, action, development,
// climax, resolution, closing.
func fallbackTemplates(base string) [8]string {
	return [8]string{
		fmt.Sprintf("Opening scene: %s, establishing shot, wide angle", base),
		fmt.Sprintf("Scene 2: %s, medium shot, introducing main elements", base),
		fmt.Sprintf("Scene 3: %s, close-up on key details", base),
		fmt.Sprintf("Scene 4: %s, action or interaction begins", base),
		fmt.Sprintf("Scene 5: %s, development of the narrative", base),
		fmt.Sprintf("Scene 6: %s, climax or key moment", base),
		fmt.Sprintf("Scene 7: %s, resolution beginning", base),
		fmt.Sprintf("Scene 8: %s, closing shot, cinematic ending", base),
	}
}

// fallbackScenes produces a fully deterministic storyboard when the model
// is unavailable or its output cannot be parsed at all.
func fallbackScenes(req Request) []Scene {
	base := req.Story
	if len(base) > maxFallbackStoryLen {
		base = base[:maxFallbackStoryLen]
	}

	templates := fallbackTemplates(base)
	indices := fallbackSelection[req.SceneCount]

	scenes := make([]Scene, 0, len(indices))
	for i, idx := range indices {
		scenes = append(scenes, Scene{
			SceneNumber:  i + 1,
			Prompt:       templates[idx],
			Duration:     req.Duration,
			CameraStyle:  req.CameraStyle,
			StyleControl: req.StyleControl,
		})
	}
	return scenes
}
