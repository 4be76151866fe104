// Package registry implements the mapping from a host thread identity
// to the TaskId the core uses to tag that producer's chunks.
package registry

import (
	"go.uber.org/zap"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

// Locker is the slice of the Host interface the registry needs:
// mutual exclusion around its own mutation and lookups, per spec.md
// §5 ("TaskRegistry: guarded by a mutex (Host.lock/unlock); mutated at
// producer registration, read on every message for header emission").
type Locker interface {
	Lock()
	Unlock()
}

type entry struct {
	id   chunk.TaskID
	name string
}

// TaskRegistry assigns each distinct host thread handle a TaskId,
// starting at 1 and skipping the reserved INVALID(0) and ISR(255)
// values, up to chunk.MaxRegistered entries.
type TaskRegistry struct {
	host       Locker
	byHandle   map[uint32]entry
	byID       map[chunk.TaskID]string
	subsystems map[chunk.TaskID]string
	next       chunk.TaskID
	allowLog   bool
}

// New constructs an empty registry. allowRegistrationLog mirrors the
// original's mConfig.allowRegistrationLog: when true, every successful
// registration is logged.
func New(host Locker, allowRegistrationLog bool) *TaskRegistry {
	return &TaskRegistry{
		host:       host,
		byHandle:   make(map[uint32]entry, chunk.MaxRegistered),
		byID:       make(map[chunk.TaskID]string, chunk.MaxRegistered),
		subsystems: make(map[chunk.TaskID]string),
		next:       1,
		allowLog:   allowRegistrationLog,
	}
}

// Register assigns handle a TaskId if it doesn't have one yet.
// Idempotent: calling it again for the same handle (even with a
// different name) returns the TaskId already on file. Once
// MaxRegistered producers are registered, further calls return
// (TaskIDInvalid, false) and the caller's chunks are ignored at
// submission time (spec.md §6, §7).
func (r *TaskRegistry) Register(handle uint32, name string) (chunk.TaskID, bool) {
	r.host.Lock()
	defer r.host.Unlock()

	if e, ok := r.byHandle[handle]; ok {
		return e.id, true
	}
	if r.next > chunk.MaxRegistered {
		return chunk.TaskIDInvalid, false
	}
	id := r.next
	r.next++
	r.byHandle[handle] = entry{id: id, name: name}
	r.byID[id] = name
	if r.allowLog {
		zap.L().Info("registered task",
			zap.Uint32("handle", handle),
			zap.String("name", name),
			zap.Uint8("task_id", uint8(id)))
	}
	return id, true
}

// Lookup returns the TaskId already on file for handle, if any.
func (r *TaskRegistry) Lookup(handle uint32) (chunk.TaskID, bool) {
	r.host.Lock()
	defer r.host.Unlock()
	e, ok := r.byHandle[handle]
	if !ok {
		return chunk.TaskIDInvalid, false
	}
	return e.id, true
}

// Name returns the name a producer registered under, if it registered
// one.
func (r *TaskRegistry) Name(handle uint32) (string, bool) {
	r.host.Lock()
	defer r.host.Unlock()
	e, ok := r.byHandle[handle]
	return e.name, ok
}

// NameByID returns the name registered for a TaskId already on file,
// if it registered one. Used by header emission, which only ever
// carries a TaskId, not the originating handle.
func (r *TaskRegistry) NameByID(id chunk.TaskID) (string, bool) {
	r.host.Lock()
	defer r.host.Unlock()
	name, ok := r.byID[id]
	return name, ok
}

// Count reports how many producers are currently registered.
func (r *TaskRegistry) Count() int {
	r.host.Lock()
	defer r.host.Unlock()
	return len(r.byHandle)
}

// RegisterSubsystem binds a prefix to an already-assigned TaskId, the
// way the original's registerApp(app, prefix) does for a LogApp. A
// caller builds for tag via a subsystem builder only after this call;
// until then, that tag has no prefix on file.
func (r *TaskRegistry) RegisterSubsystem(tag chunk.TaskID, prefix string) {
	r.host.Lock()
	defer r.host.Unlock()
	r.subsystems[tag] = prefix
}

// SubsystemPrefix returns the prefix registered for tag, if any.
func (r *TaskRegistry) SubsystemPrefix(tag chunk.TaskID) (string, bool) {
	r.host.Lock()
	defer r.host.Unlock()
	prefix, ok := r.subsystems[tag]
	return prefix, ok
}
