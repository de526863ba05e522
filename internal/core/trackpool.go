package core

import (
	"errors"
	"math/rand/v2"

	"github.com/dkeye/Quiz/internal/domain"
)

var ErrInsufficientTracks = errors.New("insufficient tracks")

// TrackPool holds every track reported by the members of one game and
// remembers which of them were already played.
type TrackPool struct {
	alternatives int
	rnd          *rand.Rand

	// order keeps iteration deterministic for a seeded rnd.
	order []domain.Track
	known map[domain.Track]struct{}
	used  map[domain.Track]struct{}
}

func NewTrackPool(alternatives int, rnd *rand.Rand) *TrackPool {
	return &TrackPool{
		alternatives: alternatives,
		rnd:          rnd,
		known:        make(map[domain.Track]struct{}),
		used:         make(map[domain.Track]struct{}),
	}
}

// AddTracks merges tracks into the pool and returns how many were new.
func (p *TrackPool) AddTracks(tracks []domain.Track) int {
	added := 0
	for _, t := range tracks {
		if _, ok := p.known[t]; ok {
			continue
		}
		p.known[t] = struct{}{}
		p.order = append(p.order, t)
		added++
	}
	return added
}

func (p *TrackPool) Len() int { return len(p.order) }

func (p *TrackPool) UsedLen() int { return len(p.used) }

// DistinctArtists is the upper bound on how many choices a round can offer.
func (p *TrackPool) DistinctArtists() int {
	artists := make(map[string]struct{}, len(p.order))
	for _, t := range p.order {
		artists[t.Artist] = struct{}{}
	}
	return len(artists)
}

// Enough reports whether a full set of choices can be built. It counts
// distinct artists rather than tracks, the stricter of the two checks.
func (p *TrackPool) Enough() bool {
	return p.DistinctArtists() >= p.alternatives
}

// Available returns the pool minus used tracks. When fewer than the number of
// alternatives remain, the used set is cleared and the pool wraps around.
func (p *TrackPool) Available() ([]domain.Track, error) {
	for attempt := 0; attempt < 2; attempt++ {
		out := make([]domain.Track, 0, len(p.order))
		for _, t := range p.order {
			if _, ok := p.used[t]; !ok {
				out = append(out, t)
			}
		}
		if len(out) > 0 && len(out) >= p.alternatives {
			return out, nil
		}
		p.resetUsed()
	}
	return nil, ErrInsufficientTracks
}

// SelectTrack picks a uniformly random available track. The track is not
// marked as used; see MarkUsed.
func (p *TrackPool) SelectTrack() (domain.Track, error) {
	avail, err := p.Available()
	if err != nil {
		return domain.Track{}, err
	}
	return avail[p.rnd.IntN(len(avail))], nil
}

func (p *TrackPool) MarkUsed(t domain.Track) {
	if _, ok := p.known[t]; ok {
		p.used[t] = struct{}{}
	}
}

// GenerateChoices returns the configured number of distinct tracks in random
// order, including correct, with no artist appearing twice.
func (p *TrackPool) GenerateChoices(correct domain.Track) ([]domain.Track, error) {
	for attempt := 0; attempt < 2; attempt++ {
		avail, err := p.Available()
		if err != nil {
			return nil, err
		}
		if choices, ok := p.fill(correct, avail); ok {
			return choices, nil
		}
		// The unused part of the pool is short on artists; try the whole pool.
		if len(p.used) == 0 {
			break
		}
		p.resetUsed()
	}
	return nil, ErrInsufficientTracks
}

func (p *TrackPool) fill(correct domain.Track, candidates []domain.Track) ([]domain.Track, bool) {
	choices := make([]domain.Track, 0, p.alternatives)
	choices = append(choices, correct)
	artists := map[string]struct{}{correct.Artist: {}}

	perm := p.rnd.Perm(len(candidates))
	for _, i := range perm {
		if len(choices) == p.alternatives {
			break
		}
		t := candidates[i]
		if t == correct {
			continue
		}
		if _, dup := artists[t.Artist]; dup {
			continue
		}
		artists[t.Artist] = struct{}{}
		choices = append(choices, t)
	}
	if len(choices) < p.alternatives {
		return nil, false
	}

	p.rnd.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return choices, true
}

func (p *TrackPool) resetUsed() {
	clear(p.used)
}
