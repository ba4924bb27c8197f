package config

const (
	// TopicCourseGenerate carries course IDs whose lessons need generating.
	TopicCourseGenerate = "course.generate"

	// TopicCourseIndex carries one generated lesson per message to index for search.
	TopicCourseIndex = "course.index"
)
