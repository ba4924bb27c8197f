package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"lessonforge/internal/retrieval"
	"lessonforge/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewSchemaAdapter(s.client))
}

// StoreLesson upserts a lesson under its ObjectID. Redelivered index
// messages overwrite the earlier object instead of adding a duplicate.
func (s *Store) StoreLesson(ctx context.Context, doc vector.LessonDocument) error {
	id := doc.ObjectID()
	props := map[string]interface{}{
		"courseId":    doc.CourseID,
		"lessonIndex": doc.LessonIndex,
		"title":       doc.Title,
		"content":     doc.Content,
		"summary":     doc.Summary,
		"topic":       doc.Topic,
		"complexity":  doc.Complexity,
	}

	exists, err := s.client.Data().Checker().
		WithClassName(vector.LessonClass).
		WithID(id).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check lesson object: %w", err)
	}

	if exists {
		updater := s.client.Data().Updater().
			WithClassName(vector.LessonClass).
			WithID(id).
			WithProperties(props)
		if len(doc.Vector) > 0 {
			updater = updater.WithVector(doc.Vector)
		}
		return updater.Do(ctx)
	}

	creator := s.client.Data().Creator().
		WithClassName(vector.LessonClass).
		WithID(id).
		WithProperties(props)
	if len(doc.Vector) > 0 {
		creator = creator.WithVector(doc.Vector)
	}
	_, err = creator.Do(ctx)
	return err
}

// DeleteLessonsByCourse removes every indexed lesson of a course. Used before
// regeneration and on course deletion.
func (s *Store) DeleteLessonsByCourse(ctx context.Context, courseID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.LessonClass).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"courseId"}).
			WithOperator(filters.Equal).
			WithValueString(courseID)).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, query string, vec []float32, alpha float32, limit int, f retrieval.Filters) ([]retrieval.SearchResult, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(alpha)
	if len(vec) > 0 {
		hybrid = hybrid.WithVector(vec)
	}

	fields := []graphql.Field{
		{Name: "courseId"},
		{Name: "lessonIndex"},
		{Name: "title"},
		{Name: "content"},
		{Name: "summary"},
		{Name: "topic"},
		{Name: "complexity"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	get := s.client.GraphQL().Get().
		WithClassName(vector.LessonClass).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(fields...)
	if where := buildWhere(f); where != nil {
		get = get.WithWhere(where)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var results []retrieval.SearchResult
	data, _ := res.Data["Get"].(map[string]interface{})
	objects, _ := data[vector.LessonClass].([]interface{})
	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		result := retrieval.SearchResult{
			CourseID:   str(props["courseId"]),
			Title:      str(props["title"]),
			Content:    str(props["content"]),
			Summary:    str(props["summary"]),
			Topic:      str(props["topic"]),
			Complexity: str(props["complexity"]),
		}
		if idx, ok := props["lessonIndex"].(float64); ok {
			result.LessonIndex = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			result.Score = score(additional["score"])
		}
		results = append(results, result)
	}
	return results, nil
}

// CountLessons returns the number of indexed lessons.
func (s *Store) CountLessons(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.LessonClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := agg[vector.LessonClass].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func buildWhere(f retrieval.Filters) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if f.CourseID != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"courseId"}).
			WithOperator(filters.Equal).
			WithValueString(f.CourseID))
	}
	if f.Complexity != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"complexity"}).
			WithOperator(filters.Equal).
			WithValueString(f.Complexity))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Weaviate reports hybrid scores as strings; older servers send numbers.
func score(v interface{}) float32 {
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0
		}
		return float32(f)
	case float64:
		return float32(s)
	}
	return 0
}
