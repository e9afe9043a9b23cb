package storage

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

type SessionRecordMatch struct {
	SessionID   string
	SessionName string
	RecordIndex int
	Speaker     string
	Message     string
	Preview     string
	Timestamp   time.Time
}

type SearchIndex struct {
	storage *SessionStorage
}

func NewSearchIndex(storage *SessionStorage) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// SearchAllSessions finds records containing query in every stored session.
// A non-empty speaker narrows the hits to speakers fuzzy-matching it, so
// "perp" finds Perplexity.
func (si *SearchIndex) SearchAllSessions(query, speaker string) ([]SessionRecordMatch, error) {
	if query == "" {
		return []SessionRecordMatch{}, nil
	}

	sessionList, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []SessionRecordMatch

	for _, meta := range sessionList {
		session, err := si.storage.Load(meta.ID)
		if err != nil {
			continue
		}

		for i, rec := range session.Records {
			if !strings.Contains(strings.ToLower(rec.Message), queryLower) {
				continue
			}
			if !SpeakerMatches(rec.Speaker, speaker) {
				continue
			}
			matches = append(matches, SessionRecordMatch{
				SessionID:   session.ID,
				SessionName: session.Name,
				RecordIndex: i,
				Speaker:     rec.Speaker,
				Message:     rec.Message,
				Preview:     preview(rec.Message),
				Timestamp:   rec.Timestamp,
			})
		}
	}

	return matches, nil
}

// SpeakerMatches reports whether speaker fuzzy-matches pattern. An empty
// pattern matches everyone.
func SpeakerMatches(speaker, pattern string) bool {
	if pattern == "" {
		return true
	}
	return len(fuzzy.Find(strings.ToLower(pattern), []string{strings.ToLower(speaker)})) > 0
}
