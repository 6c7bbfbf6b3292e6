// Package roster resolves the authoritative set of participants a sync
// run will process, combining the clinical-trial directory and a static
// UID list under the configured selection mode.
package roster

import (
	"context"
	"fmt"

	"theradash/internal/chatstore"
	"theradash/internal/config"
	"theradash/internal/redcap"

	"github.com/rs/zerolog/log"
)

// Descriptor is a not-yet-persisted participant identity. Empty string
// means absent; at least one of RedcapID and RemoteID is always set.
type Descriptor struct {
	RedcapID          string
	RemoteID          string
	ResearchAssistant string
}

// externalTesterLabel marks participants added by UID rather than
// through the study directory.
const externalTesterLabel = "External Tester"

// DirectoryClient lists clinical-trial records matching the configured filter
type DirectoryClient interface {
	ExportRecords(ctx context.Context) ([]redcap.Record, error)
}

// RemoteUserLister lists every user in the chat store (mode "all")
type RemoteUserLister interface {
	ListUsers(ctx context.Context) ([]chatstore.UserRecord, error)
}

// Resolver builds the roster for one sync run
type Resolver struct {
	directory DirectoryClient
	remote    RemoteUserLister
	cfg       config.SyncConfig
	redcapCfg config.REDCapConfig
}

// NewResolver creates a new roster resolver
func NewResolver(directory DirectoryClient, remote RemoteUserLister, cfg config.SyncConfig, redcapCfg config.REDCapConfig) *Resolver {
	return &Resolver{
		directory: directory,
		remote:    remote,
		cfg:       cfg,
		redcapCfg: redcapCfg,
	}
}

// Resolve returns the descriptor set for the configured mode.
//
// Directory failure in redcap/both mode aborts resolution entirely: a
// partial roster would silently stop monitoring enrolled participants.
// The uids mode never touches the network and cannot fail.
func (r *Resolver) Resolve(ctx context.Context) ([]Descriptor, error) {
	switch r.cfg.Mode {
	case config.ModeRedcap:
		return r.resolveDirectory(ctx)
	case config.ModeUIDs:
		return r.resolveExplicit(), nil
	case config.ModeCombined:
		directory, err := r.resolveDirectory(ctx)
		if err != nil {
			return nil, err
		}
		return mergeRosters(directory, r.resolveExplicit()), nil
	case config.ModeAll:
		return r.resolveAll(ctx)
	default:
		return nil, fmt.Errorf("unknown roster mode %q", r.cfg.Mode)
	}
}

// resolveDirectory queries REDCap for all records matching the filter.
// A record without a remote-source id still yields a descriptor: the
// roster is directory-driven and chat data fills in later.
func (r *Resolver) resolveDirectory(ctx context.Context) ([]Descriptor, error) {
	records, err := r.directory.ExportRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory resolution failed: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(records))
	for _, record := range records {
		recordID := record.Get("record_id")
		remoteID := record.Get(r.redcapCfg.RemoteIDField)

		if recordID == "" && remoteID == "" {
			log.Warn().Msg("Skipping directory record with no record_id and no remote id")
			continue
		}

		descriptors = append(descriptors, Descriptor{
			RedcapID:          recordID,
			RemoteID:          remoteID,
			ResearchAssistant: record.Get(r.redcapCfg.RAField),
		})
	}

	log.Debug().Int("descriptors", len(descriptors)).Msg("Resolved roster from directory")
	return descriptors, nil
}

// resolveExplicit turns the static UID list into descriptors
func (r *Resolver) resolveExplicit() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.cfg.RemoteIDs))
	for _, uid := range r.cfg.RemoteIDs {
		descriptors = append(descriptors, Descriptor{
			RemoteID:          uid,
			ResearchAssistant: externalTesterLabel,
		})
	}
	return descriptors
}

// resolveAll lists every user present in the chat store
func (r *Resolver) resolveAll(ctx context.Context) ([]Descriptor, error) {
	users, err := r.remote.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote user listing failed: %w", err)
	}

	descriptors := make([]Descriptor, 0, len(users))
	for _, user := range users {
		if user.ID == "" {
			continue
		}
		descriptors = append(descriptors, Descriptor{RemoteID: user.ID})
	}
	return descriptors, nil
}

// mergeRosters unions the directory roster with the explicit UID list.
// When both describe the same remote id the two descriptors collapse
// into one, with directory metadata taking precedence.
func mergeRosters(directory, explicit []Descriptor) []Descriptor {
	byRemoteID := make(map[string]int, len(directory))
	merged := make([]Descriptor, len(directory))
	copy(merged, directory)

	for i, d := range directory {
		if d.RemoteID != "" {
			byRemoteID[d.RemoteID] = i
		}
	}

	for _, e := range explicit {
		if i, seen := byRemoteID[e.RemoteID]; seen {
			merged[i] = merge(merged[i], e)
			continue
		}
		merged = append(merged, e)
	}

	return merged
}

// merge combines a directory descriptor with an explicit-list one for
// the same remote id. Directory fields win; explicit-list values only
// fill gaps the directory left empty.
func merge(directory, explicit Descriptor) Descriptor {
	out := directory
	if out.RemoteID == "" {
		out.RemoteID = explicit.RemoteID
	}
	if out.ResearchAssistant == "" {
		out.ResearchAssistant = explicit.ResearchAssistant
	}
	return out
}
