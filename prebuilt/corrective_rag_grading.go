package prebuilt

import (
	"context"
	"fmt"

	"github.com/smallnest/crag/graph"
	"github.com/smallnest/crag/log"
	"github.com/smallnest/crag/rag"
)

// GradeParallel grades every document concurrently and waits for all calls
// to return. It returns the relevant documents in their original order and
// whether any document was judged not relevant. limit bounds the calls in
// flight; 0 means one per document. A nil logger uses the package default.
func GradeParallel(ctx context.Context, grader rag.Grader, question string, docs []rag.Document, limit int, policy GradeFailurePolicy, logger log.Logger) ([]rag.Document, bool, error) {
	logger = orDefault(logger)
	grades, err := graph.MapParallel(ctx, docs, limit, gradeFunc(grader, question, policy, logger))
	if err != nil {
		return nil, false, err
	}
	kept, webSearch := partition(docs, grades, logger)
	return kept, webSearch, nil
}

// GradeSequential is GradeParallel with one call at a time. It yields the
// same partition for the same grader.
func GradeSequential(ctx context.Context, grader rag.Grader, question string, docs []rag.Document, policy GradeFailurePolicy, logger log.Logger) ([]rag.Document, bool, error) {
	logger = orDefault(logger)
	grades, err := graph.MapSequential(ctx, docs, gradeFunc(grader, question, policy, logger))
	if err != nil {
		return nil, false, err
	}
	kept, webSearch := partition(docs, grades, logger)
	return kept, webSearch, nil
}

func orDefault(logger log.Logger) log.Logger {
	if logger == nil {
		return log.GetDefaultLogger()
	}
	return logger
}

func gradeFunc(grader rag.Grader, question string, policy GradeFailurePolicy, logger log.Logger) func(context.Context, rag.Document) (rag.Grade, error) {
	return func(ctx context.Context, doc rag.Document) (rag.Grade, error) {
		grade, err := grader.Grade(ctx, question, doc.Content)
		if err == nil {
			return grade, nil
		}
		if policy == GradeFailureAsNotRelevant {
			logger.Warn("grade failed, treating document as not relevant: %v", err)
			return rag.GradeNotRelevant, nil
		}
		return rag.GradeNotRelevant, fmt.Errorf("grade document: %w", err)
	}
}

// partition splits docs by grade. grades[i] belongs to docs[i].
func partition(docs []rag.Document, grades []rag.Grade, logger log.Logger) ([]rag.Document, bool) {
	kept := make([]rag.Document, 0, len(docs))
	webSearch := false
	for i, doc := range docs {
		if grades[i] == rag.GradeRelevant {
			logger.Debug("grade: document relevant")
			kept = append(kept, doc)
		} else {
			logger.Debug("grade: document not relevant")
			webSearch = true
		}
	}
	return kept, webSearch
}
