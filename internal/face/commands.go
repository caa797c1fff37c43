package face

import (
	"fmt"

	"face-bridge-go/internal/util/slug"
)

// Command benennt eine der registrierten Face-Operationen. Die Zuordnung zu
// Handlern erfolgt über eine explizite Tabelle statt über dynamische Namen.
type Command string

const (
	CommandCreateGroup  Command = "create_group"
	CommandDeleteGroup  Command = "delete_group"
	CommandTrainGroup   Command = "train_group"
	CommandCreatePerson Command = "create_person"
	CommandDeletePerson Command = "delete_person"
	CommandFacePerson   Command = "face_person"
)

// Commands gibt alle bekannten Befehle zurück
func Commands() []Command {
	return []Command{
		CommandCreateGroup,
		CommandDeleteGroup,
		CommandTrainGroup,
		CommandCreatePerson,
		CommandDeletePerson,
		CommandFacePerson,
	}
}

// GroupNameArgs ist die Payload für create_group und delete_group
type GroupNameArgs struct {
	Name string `json:"name"`
}

// Validate prüft die Pflichtfelder
func (a *GroupNameArgs) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("field 'name' is required")
	}
	return nil
}

// TrainGroupArgs ist die Payload für train_group
type TrainGroupArgs struct {
	Group string `json:"group"`
}

// Validate prüft die Pflichtfelder und normalisiert den Gruppenbezeichner
func (a *TrainGroupArgs) Validate() error {
	if a.Group == "" {
		return fmt.Errorf("field 'group' is required")
	}
	a.Group = slug.Make(a.Group)
	return nil
}

// PersonArgs ist die Payload für create_person und delete_person
type PersonArgs struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Validate prüft die Pflichtfelder und normalisiert den Gruppenbezeichner
func (a *PersonArgs) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("field 'name' is required")
	}
	if a.Group == "" {
		return fmt.Errorf("field 'group' is required")
	}
	a.Group = slug.Make(a.Group)
	return nil
}

// FacePersonArgs ist die Payload für face_person
type FacePersonArgs struct {
	Person string `json:"person"`
	Group  string `json:"group"`
	Camera string `json:"camera"`
}

// Validate prüft die Pflichtfelder und normalisiert den Gruppenbezeichner
func (a *FacePersonArgs) Validate() error {
	if a.Person == "" {
		return fmt.Errorf("field 'person' is required")
	}
	if a.Group == "" {
		return fmt.Errorf("field 'group' is required")
	}
	if a.Camera == "" {
		return fmt.Errorf("field 'camera' is required")
	}
	a.Group = slug.Make(a.Group)
	return nil
}
