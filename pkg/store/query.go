package store

import (
	"fmt"

	"github.com/nicktill/metricring/pkg/channel"
	"github.com/nicktill/metricring/pkg/metrics"
)

// Request names one channel and how many of its most recent samples to read
type Request struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ChannelValues is the newest-first result for one channel of a LastValues query
type ChannelValues struct {
	Name    string            `json:"name"`
	Type    metrics.ValueType `json:"type"`
	Samples []metrics.Sample  `json:"samples"`
}

// ChannelHistory is the oldest-first result for one channel of a History query.
// Samples[i] carries sequence FirstSequence+i.
type ChannelHistory struct {
	Name          string            `json:"name"`
	Type          metrics.ValueType `json:"type"`
	FirstSequence uint64            `json:"first_sequence"`
	Samples       []metrics.Sample  `json:"samples"`
}

// Count returns the number of samples in the window
func (h ChannelHistory) Count() int { return len(h.Samples) }

// resolve looks up every requested channel before any sample is read.
// The first unknown name aborts the whole request.
func (s *Store) resolve(reqs []Request) ([]*channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chans := make([]*channel.Channel, len(reqs))
	for i, r := range reqs {
		ch, ok := s.channels[r.Name]
		if !ok {
			return nil, fmt.Errorf("channel %q: %w", r.Name, metrics.ErrUnknownChannel)
		}
		chans[i] = ch
	}
	return chans, nil
}

// LastValues returns up to Count of the most recent samples of each
// requested channel, newest first, in request order.
func (s *Store) LastValues(reqs []Request) ([]ChannelValues, error) {
	chans, err := s.resolve(reqs)
	if err != nil {
		return nil, err
	}

	out := make([]ChannelValues, len(chans))
	for i, ch := range chans {
		out[i] = ChannelValues{
			Name:    ch.Name(),
			Type:    ch.Type(),
			Samples: ch.Snapshot(reqs[i].Count, channel.NewestFirst),
		}
	}
	return out, nil
}

// History returns, per requested channel, a window of up to Count of the
// most recent samples ordered oldest first.
func (s *Store) History(reqs []Request) ([]ChannelHistory, error) {
	chans, err := s.resolve(reqs)
	if err != nil {
		return nil, err
	}

	out := make([]ChannelHistory, len(chans))
	for i, ch := range chans {
		first, samples := ch.History(reqs[i].Count)
		out[i] = ChannelHistory{
			Name:          ch.Name(),
			Type:          ch.Type(),
			FirstSequence: first,
			Samples:       samples,
		}
	}
	return out, nil
}

// AllHistory returns the full retained history of every channel in
// creation order.
func (s *Store) AllHistory() []ChannelHistory {
	chans := s.channelsSnapshot()
	out := make([]ChannelHistory, len(chans))
	for i, ch := range chans {
		first, samples := ch.History(int(ch.Capacity()))
		out[i] = ChannelHistory{
			Name:          ch.Name(),
			Type:          ch.Type(),
			FirstSequence: first,
			Samples:       samples,
		}
	}
	return out
}
