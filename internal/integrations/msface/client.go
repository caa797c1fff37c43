package msface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"face-bridge-go/internal/util/slug"

	log "github.com/sirupsen/logrus"
)

// faceAPIURL ist das Host-Muster der Microsoft-Face-API; die Azure-Region
// wird beim Erstellen des Clients eingesetzt.
const faceAPIURL = "https://%s.api.cognitive.microsoft.com/face/v1.0/"

// Platzhalter-ID, wenn eine Person lokal nicht bekannt ist. Der Wert wird
// unverändert an den Dienst durchgereicht und schlägt dort fehl; lokal wird
// bewusst nicht vorab validiert.
const unknownPersonID = "not found"

// ServiceError ist die einzige Fehlerart, die der Client nach außen gibt.
// Verbindungsfehler, Timeout, ungültige Antworten und Fehler-Status des
// Dienstes sind nur über den Nachrichtentext unterscheidbar.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// apiError ist der Fehler-Umschlag des Dienstes bei Status >= 300
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// remoteGroup ist ein Eintrag der Gruppenliste des Dienstes
type remoteGroup struct {
	PersonGroupID string `json:"personGroupId"`
	Name          string `json:"name"`
}

// remotePerson ist ein Eintrag der Personenliste einer Gruppe
type remotePerson struct {
	PersonID string `json:"personId"`
	Name     string `json:"name"`
}

// Client kapselt die zustandslosen HTTP-Aufrufe an die Face-API und besitzt
// den gespiegelten Store samt Gruppen-Entitäten. Netzwerkzugriffe finden erst
// beim ersten Aufruf statt.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	store      *Store
	refresher  Refresher

	mu       sync.Mutex
	entities map[string]*GroupEntity
}

// New erstellt einen Client für die angegebene Azure-Region
func New(region, apiKey string, timeout time.Duration, refresher Refresher) *Client {
	return NewWithURL(fmt.Sprintf(faceAPIURL, region), apiKey, timeout, refresher)
}

// NewWithURL erstellt einen Client mit explizitem Basis-URL (für Tests und
// regionsfremde Endpunkte)
func NewWithURL(baseURL, apiKey string, timeout time.Duration, refresher Refresher) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		store:     NewStore(),
		refresher: refresher,
		entities:  make(map[string]*GroupEntity),
	}
}

// Store gibt den gespiegelten Gruppen-/Personen-Zustand zurück
func (c *Client) Store() *Store {
	return c.store
}

// Entity gibt die Entitätssicht einer Gruppe zurück
func (c *Client) Entity(groupID string) (*GroupEntity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[groupID]
	return e, ok
}

// Entities gibt alle registrierten Gruppen-Entitäten zurück
func (c *Client) Entities() []*GroupEntity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*GroupEntity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	return out
}

// CallAPI führt einen Aufruf gegen die Face-API aus. Strukturierte Payloads
// werden als JSON serialisiert, binäre als application/octet-stream gesendet.
// Der Antwortkörper wird unabhängig vom Status als JSON gelesen; bei Status
// >= 300 wird die Fehlermeldung des Dienstes als ServiceError zurückgegeben.
// Fehlt dem Fehler-Umschlag das Nachrichtenfeld, bleibt die Meldung leer.
func (c *Client) CallAPI(ctx context.Context, method, path string, payload any, binary bool, params url.Values) (json.RawMessage, error) {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL = apiURL + "?" + params.Encode()
	}

	var body io.Reader
	contentType := "application/json"
	if binary {
		contentType = "application/octet-stream"
		raw, ok := payload.([]byte)
		if !ok {
			return nil, &ServiceError{Message: "Binary payload must be raw bytes"}
		}
		body = bytes.NewReader(raw)
	} else if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &ServiceError{Message: fmt.Sprintf("Can't encode payload: %v", err)}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("Can't build request: %v", err)}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Warnf("Timeout from face api %s", apiURL)
			return nil, &ServiceError{Message: "Timeout from face api"}
		}
		log.Warn("Can't connect to face api")
		return nil, &ServiceError{Message: "Can't connect to face api"}
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			log.Warnf("Timeout from face api %s", apiURL)
			return nil, &ServiceError{Message: "Timeout from face api"}
		}
		log.Warn("Can't connect to face api")
		return nil, &ServiceError{Message: "Can't connect to face api"}
	}

	log.Debugf("Read from face api: %s", string(answer))

	// PUT/DELETE-Endpunkte antworten bei Erfolg mit leerem Körper
	if len(answer) > 0 && !json.Valid(answer) {
		return nil, &ServiceError{Message: "Invalid response from face api"}
	}

	if resp.StatusCode < 300 {
		return json.RawMessage(answer), nil
	}

	log.Warnf("Error %d from face api %s", resp.StatusCode, apiURL)
	var remoteErr apiError
	// Entschlüsselungsfehler werden ignoriert; die Meldung bleibt dann leer
	_ = json.Unmarshal(answer, &remoteErr)
	return nil, &ServiceError{Message: remoteErr.Error.Message}
}

// isTimeout erkennt abgelaufene Client-Timeouts und Kontext-Deadlines
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// UpdateStore liest alle Gruppen und deren Personen vom Dienst in den Store.
// Die Entitäts-Aktualisierungen laufen nebenläufig und werden gemeinsam
// abgewartet; innerhalb einer Gruppe wird die Gruppe vor ihren Personen
// verarbeitet. Bei einem Fehler bleibt eine Teilbefüllung bestehen.
func (c *Client) UpdateStore(ctx context.Context) error {
	raw, err := c.CallAPI(ctx, http.MethodGet, "persongroups", nil, false, nil)
	if err != nil {
		return err
	}

	var groups []remoteGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return &ServiceError{Message: "Invalid response from face api"}
	}

	var wg sync.WaitGroup
	var firstErr error
	for _, group := range groups {
		gID := group.PersonGroupID
		c.store.SetGroup(gID, group.Name)
		entity := c.registerEntity(gID, group.Name)

		raw, err := c.CallAPI(ctx, http.MethodGet, "persongroups/"+gID+"/persons", nil, false, nil)
		if err != nil {
			firstErr = err
			break
		}

		var persons []remotePerson
		if err := json.Unmarshal(raw, &persons); err != nil {
			firstErr = &ServiceError{Message: "Invalid response from face api"}
			break
		}
		for _, person := range persons {
			c.store.SetPerson(gID, person.Name, person.PersonID)
		}

		wg.Add(1)
		go func(e *GroupEntity) {
			defer wg.Done()
			c.refresh(e)
		}(entity)
	}

	wg.Wait()
	return firstErr
}

// CreateGroup legt eine Personengruppe an. Der Bezeichner entsteht durch
// Normalisieren des Namens; Store und Entität werden erst nach bestätigtem
// Remote-Erfolg verändert.
func (c *Client) CreateGroup(ctx context.Context, name string) error {
	gID := slug.Make(name)

	_, err := c.CallAPI(ctx, http.MethodPut, "persongroups/"+gID,
		map[string]string{"name": name}, false, nil)
	if err != nil {
		return err
	}

	c.store.SetGroup(gID, name)
	entity := c.registerEntity(gID, name)
	c.refresh(entity)

	log.Infof("Created face group '%s'", gID)
	return nil
}

// DeleteGroup löscht eine Personengruppe und verwirft die lokale Sicht
func (c *Client) DeleteGroup(ctx context.Context, name string) error {
	gID := slug.Make(name)

	_, err := c.CallAPI(ctx, http.MethodDelete, "persongroups/"+gID, nil, false, nil)
	if err != nil {
		return err
	}

	c.store.RemoveGroup(gID)

	c.mu.Lock()
	entity, ok := c.entities[gID]
	delete(c.entities, gID)
	c.mu.Unlock()

	if ok && c.refresher != nil {
		if err := c.refresher.RemoveGroup(entity); err != nil {
			log.WithError(err).Warnf("Failed to remove entity for group '%s'", gID)
		}
	}

	log.Infof("Deleted face group '%s'", gID)
	return nil
}

// TrainGroup stößt das Training einer Gruppe an; es gibt keinen lokalen
// Zustand dazu
func (c *Client) TrainGroup(ctx context.Context, groupID string) error {
	_, err := c.CallAPI(ctx, http.MethodPost, "persongroups/"+groupID+"/train", nil, false, nil)
	if err != nil {
		return err
	}

	log.Infof("Started training for face group '%s'", groupID)
	return nil
}

// CreatePerson legt eine Person in einer Gruppe an und speichert die vom
// Dienst vergebene Personen-ID unter ihrem Namen
func (c *Client) CreatePerson(ctx context.Context, groupID, name string) error {
	raw, err := c.CallAPI(ctx, http.MethodPost, "persongroups/"+groupID+"/persons",
		map[string]string{"name": name}, false, nil)
	if err != nil {
		return err
	}

	var person remotePerson
	if err := json.Unmarshal(raw, &person); err != nil {
		return &ServiceError{Message: "Invalid response from face api"}
	}

	c.store.SetPerson(groupID, name, person.PersonID)
	c.refreshGroup(groupID)

	log.Infof("Created person '%s' in group '%s'", name, groupID)
	return nil
}

// DeletePerson löscht eine Person aus einer Gruppe. Ist die Person lokal
// unbekannt, wird die Platzhalter-ID an den Dienst geschickt und der Aufruf
// schlägt dort fehl.
func (c *Client) DeletePerson(ctx context.Context, groupID, name string) error {
	pID, ok := c.store.PersonID(groupID, name)
	if !ok {
		pID = unknownPersonID
	}

	_, err := c.CallAPI(ctx, http.MethodDelete, "persongroups/"+groupID+"/persons/"+pID, nil, false, nil)
	if err != nil {
		return err
	}

	c.store.RemovePerson(groupID, name)
	c.refreshGroup(groupID)

	log.Infof("Deleted person '%s' from group '%s'", name, groupID)
	return nil
}

// AttachFace hängt ein Gesichtsbild an eine Person an. Anhänge werden nicht
// lokal gespiegelt.
func (c *Client) AttachFace(ctx context.Context, groupID, personName string, image []byte) error {
	pID, ok := c.store.PersonID(groupID, personName)
	if !ok {
		pID = unknownPersonID
	}

	_, err := c.CallAPI(ctx, http.MethodPost,
		"persongroups/"+groupID+"/persons/"+pID+"/persistedFaces", image, true, nil)
	if err != nil {
		return err
	}

	log.Infof("Attached face image to person '%s' in group '%s'", personName, groupID)
	return nil
}

// registerEntity legt die Entitätssicht einer Gruppe an bzw. ersetzt sie
func (c *Client) registerEntity(groupID, name string) *GroupEntity {
	entity := NewGroupEntity(groupID, name, c.store)
	c.mu.Lock()
	c.entities[groupID] = entity
	c.mu.Unlock()
	return entity
}

// refreshGroup veröffentlicht die Entität einer Gruppe neu, falls vorhanden
func (c *Client) refreshGroup(groupID string) {
	c.mu.Lock()
	entity, ok := c.entities[groupID]
	c.mu.Unlock()
	if ok {
		c.refresh(entity)
	}
}

// refresh veröffentlicht eine Entität über die Präsentationsschicht neu
func (c *Client) refresh(entity *GroupEntity) {
	if c.refresher == nil {
		return
	}
	if err := c.refresher.RefreshGroup(entity); err != nil {
		log.WithError(err).Warnf("Failed to refresh entity for group '%s'", entity.ID())
	}
}
