// Package events carries place group notifications over Kafka.
package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const Version = 1

// GroupRegistered is published after a place group has been added to the
// catalog.
type GroupRegistered struct {
	Version     int       `json:"version"`
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Features    int       `json:"features"`
	DatasetRefs []string  `json:"dataset_refs,omitempty"`
	CycleID     string    `json:"cycle_id,omitempty"`
	TS          time.Time `json:"ts"`
}

// CollectionChanged announces that a geoDB collection was modified.
type CollectionChanged struct {
	Version    int       `json:"version"`
	Op         string    `json:"op"`
	Database   string    `json:"database"`
	Collection string    `json:"collection"`
	Seq        uint64    `json:"seq"` // per collection; stale notices are dropped
	TS         time.Time `json:"ts"`
}

// Name is the geoDB relation name "<database>_<collection>".
func (e CollectionChanged) Name() string {
	return e.Database + "_" + e.Collection
}

func (e CollectionChanged) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("version must be %d", Version)
	}
	switch e.Op {
	case "insert", "update", "delete", "truncate":
	default:
		return errors.New("op must be insert|update|delete|truncate")
	}
	if strings.TrimSpace(e.Database) == "" || strings.TrimSpace(e.Collection) == "" {
		return errors.New("database and collection are required")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}
