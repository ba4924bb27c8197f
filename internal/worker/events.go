package worker

import "lessonforge/internal/lesson"

// GeneratePayload is the course.generate message body.
type GeneratePayload struct {
	CourseID string `json:"course_id"`
	// Workflow overrides the stored workflow when set (regeneration).
	Workflow      string `json:"workflow,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// IndexPayload is the course.index message body: one lesson to embed.
type IndexPayload struct {
	CourseID    string `json:"course_id"`
	LessonIndex int    `json:"lesson_index"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Summary     string `json:"summary"`
	Topic       string `json:"topic"`
	Complexity  string `json:"complexity"`

	CorrelationID string `json:"correlation_id"`
}

func newIndexPayload(courseID, correlationID string, l *lesson.Lesson) IndexPayload {
	return IndexPayload{
		CourseID:      courseID,
		LessonIndex:   l.Index,
		Title:         l.Title,
		Content:       l.Content,
		Summary:       l.Summary,
		Topic:         l.Topic,
		Complexity:    string(l.Complexity),
		CorrelationID: correlationID,
	}
}
