package mot

import (
	"fmt"
	"strings"

	"github.com/arthurkushman/go-hungarian"
)

// AssignmentPolicy is algorithm type for matching detections to tracks
type AssignmentPolicy uint16

const (
	// AssignmentGreedy processes detections in input order and binds each one to the nearest
	// not yet matched track. First match wins, no backtracking.
	AssignmentGreedy AssignmentPolicy = iota
	// AssignmentOptimal uses the Hungarian algorithm (Kuhn-Munkres) to maximize total similarity
	AssignmentOptimal
)

func (policy AssignmentPolicy) String() string {
	switch policy {
	case AssignmentOptimal:
		return "optimal"
	default:
		return "greedy"
	}
}

// ParseAssignmentPolicy converts text representation into AssignmentPolicy
func ParseAssignmentPolicy(s string) (AssignmentPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "greedy":
		return AssignmentGreedy, nil
	case "optimal", "hungarian":
		return AssignmentOptimal, nil
	default:
		return AssignmentGreedy, fmt.Errorf("unknown assignment policy %q", s)
	}
}

// assignGreedy returns detection index -> track. Tracks must be in ascending id order:
// equal distances are resolved in favor of the earlier track.
func assignGreedy(tracks []*Track, centers []Point, valid []bool, maxDistance float64) map[int]*Track {
	matches := make(map[int]*Track)
	used := make(map[TrackID]struct{}, len(tracks))
	for i, center := range centers {
		if !valid[i] {
			continue
		}
		var best *Track
		bestDistance := 0.0
		for _, track := range tracks {
			if _, ok := used[track.id]; ok {
				continue
			}
			dist := euclideanDistance(center, track.centroid)
			if best == nil || dist < bestDistance {
				best = track
				bestDistance = dist
			}
		}
		if best != nil && bestDistance <= maxDistance {
			matches[i] = best
			used[best.id] = struct{}{}
		}
	}
	return matches
}

// assignOptimal returns detection index -> track using global assignment.
// Similarity of pair is (maxDistance - distance + 1) when pair is within gate and 0 otherwise.
func assignOptimal(tracks []*Track, centers []Point, valid []bool, maxDistance float64) map[int]*Track {
	matches := make(map[int]*Track)
	detIndices := make([]int, 0, len(centers))
	for i := range centers {
		if valid[i] {
			detIndices = append(detIndices, i)
		}
	}
	numTracks := len(tracks)
	numDetections := len(detIndices)
	if numTracks == 0 || numDetections == 0 {
		return matches
	}
	similarity := make([][]float64, numTracks)
	for i, track := range tracks {
		row := make([]float64, numDetections)
		for j, detIdx := range detIndices {
			dist := euclideanDistance(centers[detIdx], track.centroid)
			if dist <= maxDistance {
				row[j] = maxDistance - dist + 1.0
			}
		}
		similarity[i] = row
	}

	// Pad to square matrix with zeros (no similarity)
	paddedSize := numTracks
	if numDetections > paddedSize {
		paddedSize = numDetections
	}
	padded := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		padded[i] = make([]float64, paddedSize)
		if i < numTracks {
			copy(padded[i], similarity[i])
		}
	}

	assignments := hungarian.SolveMax(padded)
	for trackIdx, rowMap := range assignments {
		for detIdxInStage := range rowMap {
			if trackIdx >= numTracks || detIdxInStage >= numDetections {
				continue
			}
			// Zero similarity means pair is out of gate
			if similarity[trackIdx][detIdxInStage] <= 0 {
				continue
			}
			matches[detIndices[detIdxInStage]] = tracks[trackIdx]
		}
	}
	return matches
}
