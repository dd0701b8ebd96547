package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

// Diagrams resolves diagram ids to image references.
type Diagrams struct {
	db *gorm.DB
}

func NewDiagrams(db *gorm.DB) *Diagrams {
	return &Diagrams{db: db}
}

// ImageRef returns the image reference for diagramID or an errx.CodeNotFound error.
func (d *Diagrams) ImageRef(ctx context.Context, diagramID string) (string, error) {
	var row Diagram
	if err := d.db.WithContext(ctx).Select("image_url").Where("id = ?", diagramID).Take(&row).Error; err != nil {
		return "", errx.WrapDB(err)
	}
	return row.ImageURL, nil
}

func (d *Diagrams) Create(ctx context.Context, diagram *Diagram) error {
	if diagram.CreatedAt.IsZero() {
		diagram.CreatedAt = time.Now()
	}
	return errx.WrapDB(d.db.WithContext(ctx).Create(diagram).Error)
}

// Components is the per-diagram component catalog.
type Components struct {
	db *gorm.DB
}

func NewComponents(db *gorm.DB) *Components {
	return &Components{db: db}
}

// Known returns the catalog for diagramID in extraction order. An empty
// catalog is not an error.
func (c *Components) Known(ctx context.Context, diagramID string) ([]model.Component, error) {
	var rows []DiagramComponent
	if err := c.db.WithContext(ctx).Where("diagram_id = ?", diagramID).Order("position").Find(&rows).Error; err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]model.Component, 0, len(rows))
	for _, r := range rows {
		comp := model.Component{
			ID:          r.ComponentID,
			Name:        r.Name,
			Type:        r.Type,
			Location:    r.Location,
			Connections: []string{},
		}
		if r.Connections != "" {
			if err := json.Unmarshal([]byte(r.Connections), &comp.Connections); err != nil {
				logx.Warn().Err(err).Str("diagram_id", diagramID).Str("component_id", r.ComponentID).Msg("bad stored connections, ignoring")
				comp.Connections = []string{}
			}
			if comp.Connections == nil {
				comp.Connections = []string{}
			}
		}
		out = append(out, comp)
	}
	return out, nil
}

// Replace swaps the catalog for diagramID with components in one transaction.
func (c *Components) Replace(ctx context.Context, diagramID string, components []model.Component) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("diagram_id = ?", diagramID).Delete(&DiagramComponent{}).Error; err != nil {
			return err
		}
		if len(components) == 0 {
			return nil
		}
		rows := make([]DiagramComponent, 0, len(components))
		for i, comp := range components {
			conns, err := json.Marshal(comp.Connections)
			if err != nil {
				return fmt.Errorf("marshal connections for %s: %w", comp.ID, err)
			}
			rows = append(rows, DiagramComponent{
				DiagramID:   diagramID,
				ComponentID: comp.ID,
				Position:    i,
				Name:        comp.Name,
				Type:        comp.Type,
				Location:    comp.Location,
				Connections: string(conns),
				UpdatedAt:   time.Now(),
			})
		}
		return tx.Create(&rows).Error
	})
	return errx.WrapDB(err)
}
