package vector

import (
	"fmt"
	"regexp"
	"slices"
)

// Metric is the similarity function an index is declared with.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dot_product"
	MetricL2         Metric = "l2_norm"
)

// ParseMetric converts a user supplied metric name into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "dot_product", "dot", "ip":
		return MetricDotProduct, nil
	case "l2_norm", "l2", "euclidean":
		return MetricL2, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", ErrSchemaConflict, s)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricDotProduct, MetricL2:
		return true
	}
	return false
}

var indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Schema declares the shape of an index. Dimensions and Metric are fixed for
// the lifetime of the index.
type Schema struct {
	// Name is the unique index identifier.
	Name string `json:"name" toml:"name"`

	// Dimensions is the length every stored embedding must have.
	Dimensions int `json:"dimensions" toml:"dimensions"`

	// Metric is the similarity function used for scoring.
	Metric Metric `json:"metric" toml:"metric"`

	// TextFields are the text field names documents may carry. An empty set
	// leaves the field names unconstrained.
	TextFields []string `json:"text_fields,omitempty" toml:"text_fields"`
}

// Validate checks the schema parameters.
func (s Schema) Validate() error {
	if !indexNamePattern.MatchString(s.Name) {
		return fmt.Errorf("%w: invalid index name %q", ErrSchemaConflict, s.Name)
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("%w: vector dimensions must be positive, got %d", ErrSchemaConflict, s.Dimensions)
	}
	if !s.Metric.Valid() {
		return fmt.Errorf("%w: unknown similarity metric %q", ErrSchemaConflict, s.Metric)
	}

	seen := make(map[string]bool, len(s.TextFields))
	for _, f := range s.TextFields {
		if f == "" {
			return fmt.Errorf("%w: empty text field name", ErrSchemaConflict)
		}
		if seen[f] {
			return fmt.Errorf("%w: duplicate text field %q", ErrSchemaConflict, f)
		}
		seen[f] = true
	}

	return nil
}

// HasField reports whether documents in this index may carry the text field.
func (s Schema) HasField(name string) bool {
	return len(s.TextFields) == 0 || slices.Contains(s.TextFields, name)
}

// Compatible reports whether other describes the same vector space.
func (s Schema) Compatible(other Schema) bool {
	return s.Dimensions == other.Dimensions && s.Metric == other.Metric
}
