package msface

// Refresher ist die Präsentationsschicht für Gruppen-Entitäten. Nach jeder
// Mutation an der Personenzuordnung einer Gruppe wird die zugehörige Entität
// explizit neu veröffentlicht; es gibt keinen automatischen Push.
type Refresher interface {
	// RefreshGroup veröffentlicht Zustand und Attribute einer Gruppen-Entität neu
	RefreshGroup(entity *GroupEntity) error
	// RemoveGroup entfernt die Entität aus der Präsentationsschicht
	RemoveGroup(entity *GroupEntity) error
}

// GroupEntity ist eine reine Leseprojektion über den Store für genau eine
// Gruppe: der Zustand ist die aktuelle Personenanzahl, die Attribute sind die
// Zuordnung Name -> Personen-ID. Jede Abfrage liest live aus dem Store.
type GroupEntity struct {
	id    string
	name  string
	store *Store
}

// NewGroupEntity erstellt eine Entitätssicht auf eine Gruppe
func NewGroupEntity(id, name string, store *Store) *GroupEntity {
	return &GroupEntity{id: id, name: name, store: store}
}

// ID gibt den Gruppen-Bezeichner zurück
func (e *GroupEntity) ID() string {
	return e.id
}

// Name gibt den Anzeigenamen der Gruppe zurück
func (e *GroupEntity) Name() string {
	return e.name
}

// State gibt die aktuelle Personenanzahl der Gruppe zurück
func (e *GroupEntity) State() int {
	return e.store.PersonCount(e.id)
}

// Attributes gibt die aktuelle Zuordnung Name -> Personen-ID zurück
func (e *GroupEntity) Attributes() map[string]string {
	return e.store.Persons(e.id)
}
