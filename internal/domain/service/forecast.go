package service

import (
	"context"

	"stockcast/internal/domain/models"
)

// Classifier scores a single feature vector aligned to the trained schema.
type Classifier interface {
	// ProbUp returns the probability of the up class for one row of features.
	ProbUp(features []float64) (float64, error)
	// Importances returns per-column importance weights, aligned to the schema.
	Importances() []float64
	// NumFeatures returns the width of the feature vector the model expects.
	NumFeatures() int
}

// ArtifactLoader loads a trained classifier and its column schema from disk.
type ArtifactLoader interface {
	Load(ctx context.Context) (Classifier, models.FeatureSchema, error)
}

// Explainer produces a one-line reason string for a scored row.
type Explainer interface {
	Explain(ctx context.Context, schema models.FeatureSchema, importances []float64, table *models.FeatureTable) string
}
