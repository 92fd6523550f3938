package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phytolab/sage/pkg/models"
)

// defaultTemplates returns the built-in category templates.
func defaultTemplates() map[models.TaskCategory]Template {
	return map[models.TaskCategory]Template{
		models.CategoryLiteratureReview: {
			{ID: "literature", Worker: models.WorkerLiterature},
		},
		models.CategoryCrossValidation: {
			{ID: "literature", Worker: models.WorkerLiterature},
			{ID: "cross-reference", Worker: models.WorkerCrossReference, DependsOn: []string{"literature"}, Optional: true},
		},
		models.CategoryDiscovery: {
			{ID: "compound-analysis", Worker: models.WorkerCompoundAnalysis},
			{ID: "cross-reference", Worker: models.WorkerCrossReference, DependsOn: []string{"compound-analysis"}, Optional: true},
		},
		models.CategoryResearch: {
			{ID: "literature", Worker: models.WorkerLiterature, Parallel: true},
			{ID: "compound-analysis", Worker: models.WorkerCompoundAnalysis, Parallel: true},
			{ID: "cross-reference", Worker: models.WorkerCrossReference, DependsOn: []string{"literature", "compound-analysis"}},
		},
	}
}

// templateFile is the YAML shape of a template override file: a mapping
// from category name to step list.
type templateFile map[string]Template

// LoadFile replaces templates for the categories present in the YAML file.
// Categories absent from the file keep their current template. The file is
// rejected as a whole if any template fails validation.
func (p *Planner) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse template file: %w", err)
	}

	parsed := make(map[models.TaskCategory]Template, len(file))
	for name, tmpl := range file {
		category := models.TaskCategory(name)
		if !category.Valid() {
			return fmt.Errorf("%w: %q in template file", ErrUnknownCategory, name)
		}
		if err := validateTemplate(category, tmpl); err != nil {
			return err
		}
		parsed[category] = tmpl
	}

	p.mu.Lock()
	for category, tmpl := range parsed {
		p.templates[category] = tmpl
	}
	p.mu.Unlock()

	p.logger.Info("loaded %d workflow template(s) from %s", len(parsed), path)
	return nil
}
