package face

import (
	"context"
	"encoding/json"
	"fmt"

	"face-bridge-go/internal/integrations/msface"
	"face-bridge-go/internal/util/slug"

	log "github.com/sirupsen/logrus"
)

// ImageSource liefert das aktuelle Bild einer benannten Kamera
type ImageSource interface {
	Snapshot(ctx context.Context, camera string) ([]byte, error)
}

// Recorder protokolliert abgeschlossene Befehle (Journal)
type Recorder interface {
	RecordCommand(command, target string, payload []byte, cmdErr error)
}

// Service setzt eingehende Befehle in Aufrufe des Face-Clients um. Befehle
// gelten aus Sicht des Aufrufers als angenommen, sobald die Payload gültig
// ist; entfernte Fehler werden geloggt und protokolliert, aber nicht
// zurückgegeben und nicht wiederholt.
type Service struct {
	client   *msface.Client
	images   ImageSource
	recorder Recorder
}

// NewService erstellt den Befehls-Service. images und recorder dürfen nil
// sein (dann ist face_person nicht verfügbar bzw. wird nichts protokolliert).
func NewService(client *msface.Client, images ImageSource, recorder Recorder) *Service {
	return &Service{
		client:   client,
		images:   images,
		recorder: recorder,
	}
}

// Client gibt den zugrunde liegenden Face-Client zurück
func (s *Service) Client() *msface.Client {
	return s.client
}

// Dispatch validiert die Payload und führt den Befehl aus. Der Rückgabewert
// betrifft nur unbekannte Befehle und ungültige Payloads; das Ergebnis der
// entfernten Operation schlägt nicht auf den Aufrufer durch.
func (s *Service) Dispatch(ctx context.Context, cmd Command, payload []byte) error {
	switch cmd {
	case CommandCreateGroup:
		var args GroupNameArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, slug.Make(args.Name), payload, s.createGroup(ctx, args))
	case CommandDeleteGroup:
		var args GroupNameArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, slug.Make(args.Name), payload, s.deleteGroup(ctx, args))
	case CommandTrainGroup:
		var args TrainGroupArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, args.Group, payload, s.trainGroup(ctx, args))
	case CommandCreatePerson:
		var args PersonArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, args.Name, payload, s.createPerson(ctx, args))
	case CommandDeletePerson:
		var args PersonArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, args.Name, payload, s.deletePerson(ctx, args))
	case CommandFacePerson:
		var args FacePersonArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		s.record(cmd, args.Person, payload, s.facePerson(ctx, args))
	default:
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	return nil
}

// decode entschlüsselt die Payload und prüft die Pflichtfelder
func decode(payload []byte, args interface{ Validate() error }) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, args); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}
	return args.Validate()
}

func (s *Service) createGroup(ctx context.Context, args GroupNameArgs) error {
	if err := s.client.CreateGroup(ctx, args.Name); err != nil {
		log.Errorf("Can't create group '%s' with error: %s", slug.Make(args.Name), err)
		return err
	}
	return nil
}

func (s *Service) deleteGroup(ctx context.Context, args GroupNameArgs) error {
	if err := s.client.DeleteGroup(ctx, args.Name); err != nil {
		log.Errorf("Can't delete group '%s' with error: %s", slug.Make(args.Name), err)
		return err
	}
	return nil
}

func (s *Service) trainGroup(ctx context.Context, args TrainGroupArgs) error {
	if err := s.client.TrainGroup(ctx, args.Group); err != nil {
		log.Errorf("Can't train group '%s' with error: %s", args.Group, err)
		return err
	}
	return nil
}

func (s *Service) createPerson(ctx context.Context, args PersonArgs) error {
	if err := s.client.CreatePerson(ctx, args.Group, args.Name); err != nil {
		log.Errorf("Can't create person '%s' with error: %s", args.Name, err)
		return err
	}
	return nil
}

func (s *Service) deletePerson(ctx context.Context, args PersonArgs) error {
	if err := s.client.DeletePerson(ctx, args.Group, args.Name); err != nil {
		log.Errorf("Can't delete person '%s' with error: %s", args.Name, err)
		return err
	}
	return nil
}

func (s *Service) facePerson(ctx context.Context, args FacePersonArgs) error {
	if s.images == nil {
		err := fmt.Errorf("no image source configured")
		log.Errorf("Can't attach face to person '%s' with error: %s", args.Person, err)
		return err
	}

	image, err := s.images.Snapshot(ctx, args.Camera)
	if err != nil {
		log.Errorf("Can't attach face to person '%s' with error: %s", args.Person, err)
		return err
	}

	if err := s.client.AttachFace(ctx, args.Group, args.Person, image); err != nil {
		log.Errorf("Can't attach face to person '%s' with error: %s", args.Person, err)
		return err
	}
	return nil
}

// record schreibt den Ausgang in das Journal, sofern eines konfiguriert ist
func (s *Service) record(cmd Command, target string, payload []byte, cmdErr error) {
	if s.recorder != nil {
		s.recorder.RecordCommand(string(cmd), target, payload, cmdErr)
	}
}
