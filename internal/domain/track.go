package domain

import (
	"encoding/json"
	"fmt"
)

// Track is an immutable (uri, artist, title) tuple. On the wire it is a
// three element array.
type Track struct {
	URI    string
	Artist string
	Title  string
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{t.URI, t.Artist, t.Title})
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("track: want 3 fields, got %d", len(tuple))
	}
	if tuple[0] == "" {
		return fmt.Errorf("track: empty uri")
	}
	*t = Track{URI: tuple[0], Artist: tuple[1], Title: tuple[2]}
	return nil
}
