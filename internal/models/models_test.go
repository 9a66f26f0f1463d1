package models

import (
	"reflect"
	"testing"
)

func TestTrackList(t *testing.T) {
	image := "https://i.scdn.co/image/small"
	tl := TrackList{
		{Name: "One", Artists: []string{"A", "B"}, Genres: []string{"indie", "rock"}, Image: &image},
		{Name: "Two", Artists: []string{"C"}, Genres: []string{"rock", "shoegaze"}},
	}

	t.Run("Genres", func(t *testing.T) {
		want := []string{"indie", "rock", "shoegaze"}
		if got := tl.Genres(); !reflect.DeepEqual(got, want) {
			t.Errorf("Genres() = %v, want %v", got, want)
		}
	})

	t.Run("Clone", func(t *testing.T) {
		clone := tl.Clone()
		clone[0].Name = "changed"
		if tl[0].Name != "One" {
			t.Error("Clone() shares the backing array")
		}
		if TrackList(nil).Clone() != nil {
			t.Error("Clone() of nil should be nil")
		}
	})

	t.Run("Track helpers", func(t *testing.T) {
		if got := tl[0].ArtistNames(); got != "A, B" {
			t.Errorf("ArtistNames() = %q", got)
		}
		if got := tl[0].ImageURL(); got != image {
			t.Errorf("ImageURL() = %q", got)
		}
		if got := tl[1].ImageURL(); got != "" {
			t.Errorf("ImageURL() without image = %q", got)
		}
	})
}
