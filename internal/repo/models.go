package repo

import "time"

// UsageEvent is one metered action. Rows are only ever inserted, and pruned
// once they fall out of the retention window.
type UsageEvent struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;index:idx_usage_key,priority:1"`
	Category  string    `gorm:"size:32;not null;index:idx_usage_key,priority:2"`
	Period    string    `gorm:"size:7;not null;index:idx_usage_key,priority:3;index"`
	Metadata  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

// Subscription is the billing state mirrored from the payment provider.
type Subscription struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Plan      string `gorm:"size:32;not null"`
	Status    string `gorm:"size:16;not null"`
	UpdatedAt time.Time
}

// Diagram is an uploaded wiring diagram; ImageURL points at the rendered image.
type Diagram struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;index"`
	Title     string `gorm:"size:255"`
	ImageURL  string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// DiagramComponent is one extracted component of a diagram. Connections is a
// JSON array of component ids.
type DiagramComponent struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	DiagramID   string `gorm:"size:64;not null;uniqueIndex:idx_diagram_component,priority:1"`
	ComponentID string `gorm:"size:64;not null;uniqueIndex:idx_diagram_component,priority:2"`
	Position    int
	Name        string `gorm:"size:255"`
	Type        string `gorm:"size:64"`
	Location    string `gorm:"size:255"`
	Connections string `gorm:"type:text"`
	UpdatedAt   time.Time
}
