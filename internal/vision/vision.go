// Package vision provides scene description for "what do you see" style
// requests, either through an HTTP detection sidecar or a canned
// describer for simulated operation.
package vision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCameraUnavailable indicates the capture device could not be
	// opened.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrDetectionFailed indicates the detector ran but produced no
	// usable result.
	ErrDetectionFailed = errors.New("scene detection failed")
)

// Describer produces a spoken-friendly description of the current scene.
type Describer interface {
	// DescribeScene captures a frame and describes it. Callers bound
	// the call with the context deadline.
	DescribeScene(ctx context.Context) (string, error)

	// Name returns the describer identifier.
	Name() string
}

// Summarize turns detected object counts into a sentence: "I can see two
// people and a dog." An empty detection set gets an honest answer rather
// than an error.
func Summarize(objects map[string]int) string {
	labels := make([]string, 0, len(objects))
	for label := range objects {
		// Detectors occasionally emit blank labels; they carry nothing
		// worth saying.
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return "I don't see anything I recognize right now."
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, countedNoun(objects[label], label))
	}

	switch len(parts) {
	case 1:
		return fmt.Sprintf("I can see %s.", parts[0])
	case 2:
		return fmt.Sprintf("I can see %s and %s.", parts[0], parts[1])
	default:
		return fmt.Sprintf("I can see %s, and %s.", strings.Join(parts[:len(parts)-1], ", "), parts[len(parts)-1])
	}
}

var smallNumbers = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

func countedNoun(n int, label string) string {
	if n <= 1 {
		article := "a"
		switch label[0] {
		case 'a', 'e', 'i', 'o', 'u':
			article = "an"
		}
		return fmt.Sprintf("%s %s", article, label)
	}

	count := fmt.Sprintf("%d", n)
	if n < len(smallNumbers) {
		count = smallNumbers[n]
	}
	return fmt.Sprintf("%s %s", count, pluralLabel(label))
}

// pluralLabel handles the labels a small object detector actually emits;
// anything irregular beyond "person" just gets an s.
func pluralLabel(label string) string {
	switch label {
	case "person":
		return "people"
	case "sheep":
		return "sheep"
	case "bus":
		return "buses"
	default:
		return label + "s"
	}
}
