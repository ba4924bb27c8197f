package vector

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate/entities/models"
)

// LessonClass is the Weaviate class holding indexed lessons.
const LessonClass = "Lesson"

// LessonDocument is one lesson as stored in the index.
type LessonDocument struct {
	CourseID    string    `json:"course_id"`
	LessonIndex int       `json:"lesson_index"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	Topic       string    `json:"topic"`
	Complexity  string    `json:"complexity"`
	Vector      []float32 `json:"vector,omitempty"`
}

var lessonNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lessonforge/lesson"))

// ObjectID is stable for a course and lesson position, so storing the same
// lesson twice replaces the first copy.
func (d LessonDocument) ObjectID() string {
	return uuid.NewSHA1(lessonNamespace, []byte(d.CourseID+"/"+strconv.Itoa(d.LessonIndex))).String()
}

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func lessonProperties() []*models.Property {
	return []*models.Property{
		{Name: "courseId", DataType: []string{"string"}}, // exact match
		{Name: "lessonIndex", DataType: []string{"int"}},
		{Name: "title", DataType: []string{"text"}},
		{Name: "content", DataType: []string{"text"}},
		{Name: "summary", DataType: []string{"text"}},
		{Name: "topic", DataType: []string{"text"}},
		{Name: "complexity", DataType: []string{"string"}},
	}
}

// EnsureSchema creates the lesson class, or adds properties missing from an
// older deployment.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, LessonClass)
	if err != nil {
		return err
	}

	properties := lessonProperties()

	if !exists {
		class := &models.Class{
			Class:       LessonClass,
			Description: "A generated lesson",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, LessonClass)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, LessonClass, p); err != nil {
				return err
			}
		}
	}

	return nil
}
