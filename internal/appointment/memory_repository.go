package appointment

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

type idSet map[int64]struct{}

// MemoryRepository keeps appointments in process, indexed by id, owner and
// conflict key. Callers only ever receive copies.
type MemoryRepository struct {
	nextID atomic.Int64

	mu        sync.RWMutex
	byID      map[int64]*Appointment
	byPatient map[int64]idSet
	byDoctor  map[int64]idSet
	byKey     map[ConflictKey]idSet
	byDay     map[DayKey]idSet
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[int64]*Appointment),
		byPatient: make(map[int64]idSet),
		byDoctor:  make(map[int64]idSet),
		byKey:     make(map[ConflictKey]idSet),
		byDay:     make(map[DayKey]idSet),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) (*Appointment, error) {
	rec := *a
	rec.ID = r.nextID.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[rec.ID] = &rec
	r.index(&rec)

	out := rec
	return &out, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *rec
	return &out, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	r.unindex(old)
	rec := *a
	r.byID[rec.ID] = &rec
	r.index(&rec)

	out := rec
	return &out, nil
}

func (r *MemoryRepository) QueryByDoctor(_ context.Context, doctorID int64) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byDoctor[doctorID]), nil
}

func (r *MemoryRepository) QueryByPatient(_ context.Context, patientID int64) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byPatient[patientID]), nil
}

func (r *MemoryRepository) QueryByConflictKey(_ context.Context, key ConflictKey) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byKey[key]), nil
}

func (r *MemoryRepository) QueryByDay(_ context.Context, key DayKey) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byDay[key]), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Appointment, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// collect must be called with r.mu held.
func (r *MemoryRepository) collect(ids idSet) []Appointment {
	out := make([]Appointment, 0, len(ids))
	for id := range ids {
		out = append(out, *r.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) index(a *Appointment) {
	add(r.byPatient, a.PatientID, a.ID)
	add(r.byDoctor, a.DoctorID, a.ID)
	add(r.byKey, a.ConflictKey(), a.ID)
	add(r.byDay, a.DayKey(), a.ID)
}

func (r *MemoryRepository) unindex(a *Appointment) {
	remove(r.byPatient, a.PatientID, a.ID)
	remove(r.byDoctor, a.DoctorID, a.ID)
	remove(r.byKey, a.ConflictKey(), a.ID)
	remove(r.byDay, a.DayKey(), a.ID)
}

func add[K comparable](m map[K]idSet, k K, id int64) {
	s, ok := m[k]
	if !ok {
		s = make(idSet)
		m[k] = s
	}
	s[id] = struct{}{}
}

func remove[K comparable](m map[K]idSet, k K, id int64) {
	s, ok := m[k]
	if !ok {
		return
	}
	delete(s, id)
	if len(s) == 0 {
		delete(m, k)
	}
}
