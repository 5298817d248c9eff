package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stockcast/internal/domain/models"
	domsvc "stockcast/internal/domain/service"
	"stockcast/internal/service/metrics"
	"stockcast/pkg/logger"
)

// Artifact file names produced by the offline training pipeline.
const (
	ModelFile  = "model.json"
	SchemaFile = "feature_cols.json"
)

// Loader reads the trained forest and its column schema from a directory.
// A successful load is cached for the life of the process; the returned
// classifier is immutable. Failed loads are retried on the next call.
type Loader struct {
	dir    string
	logger *logger.Logger

	mu     sync.Mutex
	forest domsvc.Classifier
	schema models.FeatureSchema
}

func NewLoader(dir string, l *logger.Logger) *Loader {
	if l == nil {
		l = logger.Nop()
	}
	return &Loader{dir: dir, logger: l}
}

func (l *Loader) Load(ctx context.Context) (domsvc.Classifier, models.FeatureSchema, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.forest != nil {
		return l.forest, l.schema, nil
	}
	start := time.Now()

	modelPath := filepath.Join(l.dir, ModelFile)
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", modelPath, err)
	}
	var spec forestSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", modelPath, err)
	}
	forest, err := newForest(spec)
	if err != nil {
		return nil, nil, err
	}

	schemaPath := filepath.Join(l.dir, SchemaFile)
	raw, err = os.ReadFile(schemaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", schemaPath, err)
	}
	var schema models.FeatureSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", schemaPath, err)
	}
	if len(schema) == 0 {
		return nil, nil, fmt.Errorf("%s: empty column schema", schemaPath)
	}
	if len(schema) != forest.NumFeatures() {
		return nil, nil, fmt.Errorf("schema has %d columns but model expects %d", len(schema), forest.NumFeatures())
	}
	if n := len(forest.Importances()); n != 0 && n != forest.NumFeatures() {
		l.logger.Warn("importances length differs from schema, rationale quality degrades",
			logger.Int("importances", n),
			logger.Int("features", forest.NumFeatures()))
	}

	elapsed := time.Since(start)
	metrics.ArtifactLoadSeconds.Observe(elapsed.Seconds())
	l.logger.Info("loaded model artifacts",
		logger.String("dir", l.dir),
		logger.Int("trees", len(spec.Trees)),
		logger.Int("features", forest.NumFeatures()),
		logger.Duration("elapsed", elapsed))

	l.forest = forest
	l.schema = schema
	return forest, schema, nil
}

var _ domsvc.ArtifactLoader = (*Loader)(nil)
