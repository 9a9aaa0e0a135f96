package mot

import "sort"

// TrackStore holds currently live tracks
type TrackStore struct {
	tracks map[TrackID]*Track
}

// NewTrackStore creates empty store
func NewTrackStore() *TrackStore {
	return &TrackStore{
		tracks: make(map[TrackID]*Track),
	}
}

// Len returns number of live tracks
func (store *TrackStore) Len() int {
	return len(store.tracks)
}

// Get returns track by its identifier
func (store *TrackStore) Get(id TrackID) (*Track, bool) {
	track, ok := store.tracks[id]
	return track, ok
}

// IDs returns identifiers of live tracks in ascending order
func (store *TrackStore) IDs() []TrackID {
	ids := make([]TrackID, 0, len(store.tracks))
	for id := range store.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot copies every live track
func (store *TrackStore) Snapshot() map[TrackID]TrackSnapshot {
	out := make(map[TrackID]TrackSnapshot, len(store.tracks))
	for id, track := range store.tracks {
		out[id] = track.Snapshot()
	}
	return out
}

// ordered returns live tracks in ascending id order. Map iteration order is random,
// but tie-breaking during association must be deterministic.
func (store *TrackStore) ordered() []*Track {
	ids := store.IDs()
	out := make([]*Track, len(ids))
	for i, id := range ids {
		out[i] = store.tracks[id]
	}
	return out
}

func (store *TrackStore) insert(track *Track) {
	store.tracks[track.id] = track
}

func (store *TrackStore) delete(id TrackID) {
	delete(store.tracks, id)
}
