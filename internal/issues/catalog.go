package issues

import (
	_ "embed"
	"fmt"
	"math"
	"sync"

	models "stowage/internal/domain/models/storage"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogFile []byte

// Kind says which report list an issue belongs to.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Definition describes one issue type.
type Definition struct {
	Type        models.IssueType `yaml:"type"`
	Subject     string           `yaml:"subject"`
	Severity    models.Severity  `yaml:"severity"`
	Kind        Kind             `yaml:"kind"`
	Repairable  bool             `yaml:"repairable"`
	Description string           `yaml:"description"`
}

type catalogDoc struct {
	Penalties map[models.Severity]int `yaml:"penalties"`
	Issues    []Definition            `yaml:"issues"`
}

// Catalog is the immutable table of issue types and score penalties.
type Catalog struct {
	defs      map[models.IssueType]Definition
	order     []models.IssueType
	penalties map[models.Severity]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return parse(catalogFile)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once. It panics if the
// embedded file is malformed, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load()
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("issues: embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

func parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	c := &Catalog{
		defs:      make(map[models.IssueType]Definition, len(doc.Issues)),
		penalties: doc.Penalties,
	}
	for _, def := range doc.Issues {
		if def.Type == "" {
			return nil, fmt.Errorf("catalog entry without type")
		}
		if _, dup := c.defs[def.Type]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", def.Type)
		}
		switch def.Kind {
		case KindError, KindWarning:
		default:
			return nil, fmt.Errorf("%s: unknown kind %q", def.Type, def.Kind)
		}
		if _, ok := doc.Penalties[def.Severity]; !ok {
			return nil, fmt.Errorf("%s: severity %q has no penalty", def.Type, def.Severity)
		}
		c.defs[def.Type] = def
		c.order = append(c.order, def.Type)
	}
	return c, nil
}

// Lookup returns the definition of t.
func (c *Catalog) Lookup(t models.IssueType) (Definition, bool) {
	def, ok := c.defs[t]
	return def, ok
}

// Types lists every issue type in catalog order.
func (c *Catalog) Types() []models.IssueType {
	return append([]models.IssueType(nil), c.order...)
}

// IsWarning reports whether t belongs in the warnings list.
func (c *Catalog) IsWarning(t models.IssueType) bool {
	return c.defs[t].Kind == KindWarning
}

// Repairable reports whether the repair engine handles t.
func (c *Catalog) Repairable(t models.IssueType) bool {
	return c.defs[t].Repairable
}

// Penalty is the score deduction for one error of the given severity.
func (c *Catalog) Penalty(s models.Severity) int {
	return c.penalties[s]
}

// New builds an issue of type t with its catalog severity.
func (c *Catalog) New(t models.IssueType, message string) models.Issue {
	return models.Issue{
		Type:     t,
		Message:  message,
		Severity: c.defs[t].Severity,
	}
}

// Score computes the integrity score: the percentage of valid items rounded
// to the nearest integer, minus the severity penalty of every error, clamped
// to [0, 100]. An empty run scores 100 before penalties.
func (c *Catalog) Score(valid, total int, errs []models.Issue) int {
	score := 100
	if total > 0 {
		score = int(math.Round(float64(valid) * 100 / float64(total)))
	}
	for _, issue := range errs {
		score -= c.Penalty(issue.Severity)
	}
	return min(max(score, 0), 100)
}
