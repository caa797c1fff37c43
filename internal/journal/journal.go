package journal

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommandRecord protokolliert einen abgesetzten Befehl samt Ausgang. Die
// Befehlsschicht meldet Befehle immer als angenommen; sichtbar wird der
// tatsächliche Ausgang nur hier.
type CommandRecord struct {
	gorm.Model
	RequestID string         `gorm:"uniqueIndex;not null"` // UUID des Aufrufs
	Command   string         `gorm:"index;not null"`       // z.B. 'create_group'
	Target    string         `gorm:"index"`                // Gruppen- bzw. Personenbezeichner
	Payload   datatypes.JSON `gorm:"type:json;null"`       // Rohdaten des Befehls
	Success   bool           `gorm:"index"`
	Error     string
}

// SyncRun protokolliert einen vollständigen Abgleich mit dem Face-Dienst
type SyncRun struct {
	gorm.Model
	Groups   int
	Persons  int
	Duration time.Duration
	Success  bool
	Error    string
}

// Repository kapselt die Journal-Zugriffe
type Repository struct {
	db *gorm.DB
}

// NewRepository erstellt ein Journal-Repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RecordCommand schreibt den Ausgang eines Befehls in das Journal. Fehler
// beim Schreiben werden nur geloggt; das Journal darf die Befehlsverarbeitung
// nicht blockieren.
func (r *Repository) RecordCommand(command, target string, payload []byte, cmdErr error) {
	if r == nil || r.db == nil {
		return
	}

	rec := CommandRecord{
		RequestID: uuid.NewString(),
		Command:   command,
		Target:    target,
		Payload:   datatypes.JSON(payload),
		Success:   cmdErr == nil,
	}
	if cmdErr != nil {
		rec.Error = cmdErr.Error()
	}

	if err := r.db.Create(&rec).Error; err != nil {
		log.WithError(err).Warnf("Failed to journal command '%s'", command)
	}
}

// RecordSync schreibt den Ausgang eines vollständigen Abgleichs in das Journal
func (r *Repository) RecordSync(groups, persons int, duration time.Duration, syncErr error) {
	if r == nil || r.db == nil {
		return
	}

	run := SyncRun{
		Groups:   groups,
		Persons:  persons,
		Duration: duration,
		Success:  syncErr == nil,
	}
	if syncErr != nil {
		run.Error = syncErr.Error()
	}

	if err := r.db.Create(&run).Error; err != nil {
		log.WithError(err).Warn("Failed to journal sync run")
	}
}

// RecentCommands gibt die letzten Befehle absteigend nach Zeitpunkt zurück
func (r *Repository) RecentCommands(limit int) ([]CommandRecord, error) {
	var records []CommandRecord
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// RecentSyncRuns gibt die letzten Abgleiche absteigend nach Zeitpunkt zurück
func (r *Repository) RecentSyncRuns(limit int) ([]SyncRun, error) {
	var runs []SyncRun
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
