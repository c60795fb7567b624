// Package composer provides the Composition aggregate and the orchestration
// service that drives sequential multi-segment video generation: one
// external generation job per scene, last-frame seeding between segments,
// and crossfade stitching of the completed segments.
package composer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/internal/story"
)

// Status represents the current state of a Composition.
type Status string

const (
	// StatusPending indicates the composition is created but not yet generating.
	StatusPending Status = "pending"
	// StatusGenerating indicates segments are being generated sequentially.
	StatusGenerating Status = "generating"
	// StatusStitching indicates all segments completed and are being joined.
	StatusStitching Status = "stitching"
	// StatusCompleted indicates the final video is ready.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the composition failed permanently.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// There is no cancel transition: a started composition runs to
// completion or failure.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusStitching, StatusFailed},
	StatusStitching:  {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SegmentStatus represents the status of a single segment.
type SegmentStatus string

const (
	// SegmentPending indicates the segment has not started yet.
	SegmentPending SegmentStatus = "pending"
	// SegmentProcessing indicates the segment is being generated.
	SegmentProcessing SegmentStatus = "processing"
	// SegmentCompleted indicates the segment finished successfully.
	SegmentCompleted SegmentStatus = "completed"
	// SegmentFailed indicates the segment generation failed.
	SegmentFailed SegmentStatus = "failed"
)

// SegmentRecord tracks one segment of a composition, index-aligned with
// the scene list. It is mutated exclusively by the composition's own
// orchestration task.
type SegmentRecord struct {
	SceneNumber int           `json:"scene_number"`
	Status      SegmentStatus `json:"status"`
	OperationID string        `json:"operation_id,omitempty"`
	VideoID     string        `json:"video_id,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Composition is the aggregate root for one multi-segment video job.
// Persisted snapshots of it are the source of truth for concurrent
// status readers.
type Composition struct {
	CompositionID  string          `json:"composition_id"`
	Status         Status          `json:"status"`
	CurrentSegment int             `json:"current_segment"`
	TotalSegments  int             `json:"total_segments"`
	Scenes         []story.Scene   `json:"scenes"`
	Segments       []SegmentRecord `json:"segments"`
	Resolution     string          `json:"resolution"`
	AspectRatio    string          `json:"aspect_ratio"`
	FinalVideoID   string          `json:"final_video_id,omitempty"`
	FinalVideoPath string          `json:"final_video_path,omitempty"`
	FinalVideoURL  string          `json:"final_video_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// NewComposition creates a pending Composition for the given scenes with
// all segment records pending. Scene count validity (4-8) is enforced at
// the submission boundary.
func NewComposition(scenes []story.Scene, resolution, aspectRatio string) *Composition {
	segments := make([]SegmentRecord, len(scenes))
	for i := range segments {
		segments[i] = SegmentRecord{
			SceneNumber: i + 1,
			Status:      SegmentPending,
		}
	}

	return &Composition{
		CompositionID: uuid.NewString(),
		Status:        StatusPending,
		TotalSegments: len(scenes),
		Scenes:        scenes,
		Segments:      segments,
		Resolution:    resolution,
		AspectRatio:   aspectRatio,
		CreatedAt:     time.Now(),
	}
}

// TransitionTo attempts to change the composition status.
// Returns ErrInvalidTransition if the transition is not allowed.
// Terminal transitions set CompletedAt.
func (c *Composition) TransitionTo(status Status) error {
	if !canTransition(c.Status, status) {
		return ErrInvalidTransition
	}
	c.Status = status
	if status.IsTerminal() {
		now := time.Now()
		c.CompletedAt = &now
	}
	return nil
}

// Fail moves the composition to the failed state with the given reason.
// Calling Fail on an already-terminal composition leaves it unchanged.
func (c *Composition) Fail(reason string) {
	if c.Status.IsTerminal() {
		return
	}
	c.Error = reason
	c.Status = StatusFailed
	now := time.Now()
	c.CompletedAt = &now
}

// Clone creates a deep copy of the composition for safe reads.
func (c *Composition) Clone() *Composition {
	clone := *c

	clone.Scenes = make([]story.Scene, len(c.Scenes))
	copy(clone.Scenes, c.Scenes)

	clone.Segments = make([]SegmentRecord, len(c.Segments))
	copy(clone.Segments, c.Segments)

	if c.CompletedAt != nil {
		t := *c.CompletedAt
		clone.CompletedAt = &t
	}

	return &clone
}
