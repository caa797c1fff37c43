package msface

import "sync"

// groupRecord hält den Anzeigenamen einer Gruppe und ihre Personen
// (Name -> entfernte Personen-ID).
type groupRecord struct {
	name    string
	persons map[string]string
}

// Store ist der lokal gespiegelte Zustand des Face-Dienstes: Gruppen-ID ->
// (Personenname -> Personen-ID). Er wird ausschließlich nach bestätigten
// Remote-Operationen oder durch einen vollständigen Abgleich befüllt und
// kann gegenüber dem Dienst veralten, wenn andere Clients ihn verändern.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*groupRecord
}

// NewStore erstellt einen leeren Store
func NewStore() *Store {
	return &Store{groups: make(map[string]*groupRecord)}
}

// SetGroup legt eine Gruppe mit leerer Personenliste an. Eine bereits
// vorhandene Gruppe wird zurückgesetzt (Verhalten des vollständigen Abgleichs).
func (s *Store) SetGroup(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[id] = &groupRecord{name: name, persons: make(map[string]string)}
}

// RemoveGroup entfernt eine Gruppe samt Personenzuordnung
func (s *Store) RemoveGroup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
}

// HasGroup prüft, ob eine Gruppe lokal bekannt ist
func (s *Store) HasGroup(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[id]
	return ok
}

// GroupName gibt den Anzeigenamen einer Gruppe zurück
func (s *Store) GroupName(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return "", false
	}
	return g.name, true
}

// Groups gibt alle bekannten Gruppen als ID -> Anzeigename zurück
func (s *Store) Groups() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.groups))
	for id, g := range s.groups {
		out[id] = g.name
	}
	return out
}

// SetPerson speichert die entfernte Personen-ID unter ihrem Namen.
// Unbekannte Gruppen werden ignoriert; eine Person entsteht lokal nur nach
// bestätigtem Remote-Erfolg, und der gehört immer zu einer bekannten Gruppe.
func (s *Store) SetPerson(groupID, name, personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return
	}
	g.persons[name] = personID
}

// RemovePerson entfernt eine Person aus der Gruppenzuordnung
func (s *Store) RemovePerson(groupID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		delete(g.persons, name)
	}
}

// PersonID gibt die entfernte ID einer Person zurück
func (s *Store) PersonID(groupID, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return "", false
	}
	id, ok := g.persons[name]
	return id, ok
}

// Persons gibt eine Kopie der Zuordnung Name -> Personen-ID einer Gruppe zurück
func (s *Store) Persons(groupID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(g.persons))
	for name, id := range g.persons {
		out[name] = id
	}
	return out
}

// PersonCount gibt die Anzahl der Personen einer Gruppe zurück
func (s *Store) PersonCount(groupID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return 0
	}
	return len(g.persons)
}
